package tp

import (
	"strings"

	"tlog.app/go/tlog/tlwire"
)

type (
	// StackType is a persistent description of the value stack shape.
	StackType interface {
		String() string
		isStack()
	}

	Empty struct{}

	Cons struct {
		Rest StackType
		Top  Type
	}

	// RowVar is an unknown-depth stack tail.
	RowVar struct {
		Name string
	}
)

func (Empty) isStack()  {}
func (*Cons) isStack()  {}
func (RowVar) isStack() {}

func Push(s StackType, t Type) StackType {
	return &Cons{Rest: s, Top: t}
}

func Pop(s StackType) (rest StackType, top Type, ok bool) {
	c, ok := s.(*Cons)
	if !ok {
		return s, nil, false
	}

	return c.Rest, c.Top, true
}

// Depth returns the number of concrete elements and whether the stack is closed by Empty.
func Depth(s StackType) (n int, closed bool) {
	for {
		switch x := s.(type) {
		case *Cons:
			n++
			s = x.Rest
		case Empty:
			return n, true
		default:
			return n, false
		}
	}
}

// Base returns the stack below all the concrete elements.
func Base(s StackType) StackType {
	for {
		c, ok := s.(*Cons)
		if !ok {
			return s
		}

		s = c.Rest
	}
}

// FromSlice pushes l onto base, first element deepest.
func FromSlice(base StackType, l []Type) StackType {
	s := base

	for _, t := range l {
		s = Push(s, t)
	}

	return s
}

// Slice returns the base and the concrete elements bottom to top.
func Slice(s StackType) (base StackType, l []Type) {
	for {
		c, ok := s.(*Cons)
		if !ok {
			break
		}

		l = append(l, c.Top)
		s = c.Rest
	}

	for i, j := 0, len(l)-1; i < j; i, j = i+1, j-1 {
		l[i], l[j] = l[j], l[i]
	}

	return s, l
}

// Concat re-roots the concrete elements of s on base.
func Concat(base, s StackType) StackType {
	_, l := Slice(s)

	return FromSlice(base, l)
}

func EqualStacks(a, b StackType) bool {
	for {
		switch x := a.(type) {
		case *Cons:
			y, ok := b.(*Cons)
			if !ok || !Equal(x.Top, y.Top) {
				return false
			}

			a, b = x.Rest, y.Rest
		default:
			return a == b
		}
	}
}

func (Empty) String() string    { return "" }
func (x RowVar) String() string { return ".." + x.Name }

func (x *Cons) String() string {
	base, l := Slice(x)

	var b strings.Builder

	if s := base.String(); s != "" {
		b.WriteString(s)
	}

	for _, t := range l {
		if b.Len() != 0 {
			b.WriteByte(' ')
		}

		b.WriteString(t.String())
	}

	return b.String()
}

func (x *Cons) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, x.String())
}
