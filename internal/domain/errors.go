package domain

import "errors"

// ErrInvalidWeights describes confidence weights that do not sum to 1.0. No
// function in this module returns it; the weight sum is enforced only by the
// package-level init() assertion, which panics.
var ErrInvalidWeights = errors.New("domain: confidence weights do not sum to 1.0")
