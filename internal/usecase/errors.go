package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrDataConsistency       = errors.New("inconsistent upstream data")
	ErrBatchAborted          = errors.New("deadline batch aborted")
)
