// Package unify computes substitutions that make types and stack types equal.
package unify

import (
	"fmt"

	"github.com/cemlang/cem/compiler/tp"
)

type (
	// Subst maps type variables and row variables to what they stand for.
	Subst struct {
		Vars map[string]tp.Type
		Rows map[string]tp.StackType
	}

	MismatchError struct {
		A, B   string
		Reason string
	}
)

func Types(a, b tp.Type) (Subst, error) {
	return Subst{}.Types(a, b)
}

func Stacks(a, b tp.StackType) (Subst, error) {
	return Subst{}.Stacks(a, b)
}

// Types extends s so that a and b become equal.
func (s Subst) Types(a, b tp.Type) (Subst, error) {
	a, b = s.Apply(a), s.Apply(b)

	if av, ok := a.(tp.Var); ok {
		return s.bind(av, b)
	}

	if bv, ok := b.(tp.Var); ok {
		return s.bind(bv, a)
	}

	switch x := a.(type) {
	case tp.Named:
		y, ok := b.(tp.Named)
		if !ok || x.Name != y.Name {
			return s, mismatch(a, b, "")
		}

		if len(x.Args) != len(y.Args) {
			return s, mismatch(a, b, "argument count")
		}

		var err error

		for i := range x.Args {
			s, err = s.Types(x.Args[i], y.Args[i])
			if err != nil {
				return s, err
			}
		}

		return s, nil
	case tp.Quotation:
		y, ok := b.(tp.Quotation)
		if !ok {
			return s, mismatch(a, b, "")
		}

		s, err := s.Stacks(x.Effect.In, y.Effect.In)
		if err != nil {
			return s, err
		}

		return s.Stacks(x.Effect.Out, y.Effect.Out)
	}

	if a != b {
		return s, mismatch(a, b, "")
	}

	return s, nil
}

// Stacks extends s so that a and b become equal.
func (s Subst) Stacks(a, b tp.StackType) (_ Subst, err error) {
	for {
		a, b = s.shallow(a), s.shallow(b)

		if ar, ok := a.(tp.RowVar); ok {
			return s.bindRow(ar, b)
		}

		if br, ok := b.(tp.RowVar); ok {
			return s.bindRow(br, a)
		}

		x, xok := a.(*tp.Cons)
		y, yok := b.(*tp.Cons)

		switch {
		case !xok && !yok:
			return s, nil
		case xok != yok:
			return s, &MismatchError{A: a.String(), B: b.String(), Reason: "stack depth"}
		}

		s, err = s.Types(x.Top, y.Top)
		if err != nil {
			return s, err
		}

		a, b = x.Rest, y.Rest
	}
}

func (s Subst) Apply(t tp.Type) tp.Type {
	switch x := t.(type) {
	case tp.Var:
		r, ok := s.Vars[x.Name]
		if !ok {
			return t
		}

		return s.Apply(r)
	case tp.Named:
		if len(x.Args) == 0 {
			return t
		}

		args := make([]tp.Type, len(x.Args))
		for i, a := range x.Args {
			args[i] = s.Apply(a)
		}

		return tp.Named{Name: x.Name, Args: args}
	case tp.Quotation:
		return tp.Quotation{Effect: s.ApplyEffect(x.Effect)}
	default:
		return t
	}
}

func (s Subst) ApplyStack(st tp.StackType) tp.StackType {
	base, l := tp.Slice(st)

	if r, ok := base.(tp.RowVar); ok {
		if b, ok := s.Rows[r.Name]; ok {
			base = s.ApplyStack(b)
		}
	}

	for i, t := range l {
		l[i] = s.Apply(t)
	}

	return tp.FromSlice(base, l)
}

func (s Subst) ApplyEffect(e tp.Effect) tp.Effect {
	return tp.Effect{
		In:  s.ApplyStack(e.In),
		Out: s.ApplyStack(e.Out),
	}
}

func (s Subst) Len() int {
	return len(s.Vars) + len(s.Rows)
}

func (s Subst) shallow(st tp.StackType) tp.StackType {
	for {
		r, ok := st.(tp.RowVar)
		if !ok {
			return st
		}

		b, ok := s.Rows[r.Name]
		if !ok {
			return st
		}

		st = b
	}
}

func (s Subst) bind(v tp.Var, t tp.Type) (Subst, error) {
	if w, ok := t.(tp.Var); ok && w.Name == v.Name {
		return s, nil
	}

	if occurs(v.Name, t) {
		return s, mismatch(v, t, "infinite type")
	}

	r := s.copy()
	r.Vars[v.Name] = t

	return r, nil
}

func (s Subst) bindRow(v tp.RowVar, st tp.StackType) (Subst, error) {
	st = s.ApplyStack(st)

	if w, ok := st.(tp.RowVar); ok && w.Name == v.Name {
		return s, nil
	}

	if occursStack(v.Name, "", st) {
		return s, &MismatchError{A: v.String(), B: st.String(), Reason: "infinite stack"}
	}

	r := s.copy()
	r.Rows[v.Name] = st

	return r, nil
}

// copy keeps substitutions persistent so failed attempts never leak bindings.
func (s Subst) copy() Subst {
	r := Subst{
		Vars: make(map[string]tp.Type, len(s.Vars)+1),
		Rows: make(map[string]tp.StackType, len(s.Rows)+1),
	}

	for k, v := range s.Vars {
		r.Vars[k] = v
	}

	for k, v := range s.Rows {
		r.Rows[k] = v
	}

	return r
}

func occurs(name string, t tp.Type) bool {
	switch x := t.(type) {
	case tp.Var:
		return x.Name == name
	case tp.Named:
		for _, a := range x.Args {
			if occurs(name, a) {
				return true
			}
		}
	case tp.Quotation:
		return occursStack("", name, x.Effect.In) || occursStack("", name, x.Effect.Out)
	}

	return false
}

func occursStack(row, name string, st tp.StackType) bool {
	base, l := tp.Slice(st)

	if r, ok := base.(tp.RowVar); ok && row != "" && r.Name == row {
		return true
	}

	if name == "" {
		return false
	}

	for _, t := range l {
		if occurs(name, t) {
			return true
		}
	}

	return false
}

func mismatch(a, b fmt.Stringer, reason string) *MismatchError {
	return &MismatchError{A: a.String(), B: b.String(), Reason: reason}
}

func (e *MismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot unify %q with %q: %v", e.A, e.B, e.Reason)
	}

	return fmt.Sprintf("cannot unify %q with %q", e.A, e.B)
}
