package tp

import (
	"strings"

	"tlog.app/go/tlog/tlwire"
)

type (
	Type interface {
		String() string
		isType()
	}

	Int    struct{}
	Bool   struct{}
	String struct{}

	// Var is a type variable of a polymorphic effect.
	Var struct {
		Name string
	}

	// Named is an instantiation of a declared sum type.
	Named struct {
		Name string
		Args []Type
	}

	// Quotation is the type of a pushed code block.
	Quotation struct {
		Effect Effect
	}

	Effect struct {
		In  StackType
		Out StackType
	}
)

func (Int) isType()       {}
func (Bool) isType()      {}
func (String) isType()    {}
func (Var) isType()       {}
func (Named) isType()     {}
func (Quotation) isType() {}

func (Int) String() string    { return "Int" }
func (Bool) String() string   { return "Bool" }
func (String) String() string { return "String" }
func (x Var) String() string  { return x.Name }

func (x Named) String() string {
	if len(x.Args) == 0 {
		return x.Name
	}

	var b strings.Builder

	b.WriteString(x.Name)
	b.WriteByte('(')

	for i, a := range x.Args {
		if i != 0 {
			b.WriteByte(' ')
		}

		b.WriteString(a.String())
	}

	b.WriteByte(')')

	return b.String()
}

func (x Quotation) String() string {
	return "[" + x.Effect.inner() + "]"
}

func FromSlices(in, out []Type) Effect {
	return Effect{
		In:  FromSlice(Empty{}, in),
		Out: FromSlice(Empty{}, out),
	}
}

func (e Effect) String() string {
	return "(" + e.inner() + ")"
}

func (e Effect) inner() string {
	var b strings.Builder

	in, out := e.In.String(), e.Out.String()

	b.WriteByte(' ')

	if in != "" {
		b.WriteString(in)
		b.WriteByte(' ')
	}

	b.WriteString("--")

	if out != "" {
		b.WriteByte(' ')
		b.WriteString(out)
	}

	b.WriteByte(' ')

	return b.String()
}

func (e Effect) TlogAppend(b []byte) []byte {
	var le tlwire.LowEncoder

	return le.AppendString(b, e.String())
}

// Equal compares types structurally.
func Equal(a, b Type) bool {
	switch a := a.(type) {
	case Named:
		b, ok := b.(Named)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}

		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}

		return true
	case Quotation:
		b, ok := b.(Quotation)

		return ok && EqualStacks(a.Effect.In, b.Effect.In) && EqualStacks(a.Effect.Out, b.Effect.Out)
	default:
		return a == b
	}
}
