package orchestrator

import "errors"

// ErrRepositoryBusy describes a repository that already has an incident in
// flight. ProcessIncident does not return it: a second incident for the same
// repository waits on the per-repository gate until the first one finishes.
var ErrRepositoryBusy = errors.New("orchestrator: repository already has an incident in flight")
