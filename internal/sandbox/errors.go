package sandbox

import "errors"

var (
	// ErrPathEscape is returned when a FileChange's resolved path would land
	// outside the sandbox root.
	ErrPathEscape = errors.New("sandbox: file change path escapes sandbox root")

	// ErrSetupFailed covers copy/mkdir failures during sandbox setup.
	ErrSetupFailed = errors.New("sandbox: setup failed")

	// ErrIDCollision is returned when a unique sandbox id could not be
	// allocated after the retry budget.
	ErrIDCollision = errors.New("sandbox: could not allocate a collision-free id")
)
