package back

import (
	"fmt"

	"tlog.app/go/loc"
)

type (
	UnknownWordError struct {
		Name string
	}

	UnknownVariantError struct {
		Name string
	}

	UnimplementedError struct {
		Feature string
	}

	InternalError struct {
		Op   string
		Err  error
		From loc.PC
	}
)

func internal(op string, err error) *InternalError {
	return &InternalError{Op: op, Err: err, From: loc.Caller(1)}
}

func (e *UnknownWordError) Error() string {
	return fmt.Sprintf("unknown word: %v", e.Name)
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown variant: %v", e.Name)
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("unimplemented: %v", e.Feature)
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v: %v (%v)", e.Op, e.Err, e.From)
}

func (e *InternalError) Unwrap() error { return e.Err }
