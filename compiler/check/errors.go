package check

import (
	"fmt"
	"strings"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/tp"
)

type (
	// Diag is embedded into every type error to carry the source location.
	Diag struct {
		Loc ast.Loc
	}

	UndefinedWordError struct {
		Diag
		Name string
	}

	UndefinedTypeError struct {
		Diag
		Name string
	}

	StackUnderflowError struct {
		Diag
		Word      string
		Required  int
		Available int
	}

	TypeMismatchError struct {
		Diag
		Expected tp.Type
		Actual   tp.Type
		Context  string
	}

	EffectMismatchError struct {
		Diag
		Expected tp.Effect
		Actual   tp.Effect
		Word     string
	}

	NonExhaustiveMatchError struct {
		Diag
		TypeName string
		Missing  []string
	}

	InconsistentBranchEffectsError struct {
		Diag
		TypeName string
		Expected tp.Effect
		Actual   tp.Effect
		Branch   string
	}

	OtherError struct {
		Diag
		Message string
	}

	located interface {
		error
		at(l ast.Loc)
	}
)

func other(l ast.Loc, format string, args ...any) *OtherError {
	return &OtherError{Diag: Diag{Loc: l}, Message: fmt.Sprintf(format, args...)}
}

// at sets the location unless a more precise one is already known.
func (d *Diag) at(l ast.Loc) {
	if d.Loc.IsZero() {
		d.Loc = l
	}
}

func (d Diag) prefix() string {
	if d.Loc.IsZero() {
		return ""
	}

	return d.Loc.String() + ": "
}

func locate(err error, l ast.Loc) error {
	if e, ok := err.(located); ok {
		e.at(l)
	}

	return err
}

func (e *UndefinedWordError) Error() string {
	return fmt.Sprintf("%sundefined word: %v", e.prefix(), e.Name)
}

func (e *UndefinedTypeError) Error() string {
	return fmt.Sprintf("%sundefined type: %v", e.prefix(), e.Name)
}

func (e *StackUnderflowError) Error() string {
	return fmt.Sprintf("%sstack underflow: %v requires %d values, %d available", e.prefix(), e.Word, e.Required, e.Available)
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%stype mismatch in %v: expected %v, got %v", e.prefix(), e.Context, e.Expected, e.Actual)
}

func (e *EffectMismatchError) Error() string {
	return fmt.Sprintf("%seffect mismatch in %v: declared %v, body has %v", e.prefix(), e.Word, e.Expected, e.Actual)
}

func (e *NonExhaustiveMatchError) Error() string {
	return fmt.Sprintf("%snon-exhaustive match on %v: missing %v", e.prefix(), e.TypeName, strings.Join(e.Missing, ", "))
}

func (e *InconsistentBranchEffectsError) Error() string {
	return fmt.Sprintf("%sinconsistent branch effects in match on %v: branch %v has %v, expected %v", e.prefix(), e.TypeName, e.Branch, e.Actual, e.Expected)
}

func (e *OtherError) Error() string {
	return e.prefix() + e.Message
}
