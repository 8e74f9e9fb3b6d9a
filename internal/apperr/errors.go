// Package apperr defines the error taxonomy shared across notegraph packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrMissingCredentials = errors.New("missing embedding credentials")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrUnsupportedFormat  = errors.New("unsupported document format")
	ErrCacheMiss          = errors.New("cache miss")
	ErrPathEscapesRoot    = errors.New("path escapes knowledge base root")
)

// DimensionError reports two vectors of different length being compared.
// It matches ErrDimensionMismatch under errors.Is.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
