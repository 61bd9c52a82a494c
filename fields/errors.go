package fields

import (
	"errors"
	"fmt"
)

var (
	ErrMissingParameter = errors.New("missing boundary condition parameter")
	ErrInvalidParameter = errors.New("invalid boundary condition parameter")
	ErrUnknownBC        = errors.New("unknown boundary condition type")
	ErrFormat           = errors.New("malformed field file")
)

// ParameterError names the parameter, patch and field of a bad boundary
// condition specification
type ParameterError struct {
	Param string
	Type  string
	Patch string
	Field string
	Err   error // ErrMissingParameter or ErrInvalidParameter
	Cause error
}

func (e *ParameterError) Error() string {
	s := fmt.Sprintf("field %s patch %s (%s): %v %q", e.Field, e.Patch, e.Type, e.Err, e.Param)
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *ParameterError) Unwrap() error { return e.Err }
