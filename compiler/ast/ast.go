package ast

import (
	"fmt"

	"github.com/cemlang/cem/compiler/tp"
)

type (
	Loc struct {
		File string
		Line int
		Col  int
	}

	Expr interface {
		Pos() Loc
	}

	Base struct {
		Loc Loc
	}

	Program struct {
		TypeDefs []*TypeDef
		WordDefs []*WordDef
	}

	TypeDef struct {
		Base `tlog:",embed"`

		Name     string
		Params   []string
		Variants []Variant
	}

	Variant struct {
		Name   string
		Fields []tp.Type
	}

	WordDef struct {
		Base `tlog:",embed"`

		Name   string
		Effect tp.Effect
		Body   []Expr
	}

	IntLit struct {
		Base `tlog:",embed"`

		Value int64
	}

	BoolLit struct {
		Base `tlog:",embed"`

		Value bool
	}

	StringLit struct {
		Base `tlog:",embed"`

		Value string
	}

	WordCall struct {
		Base `tlog:",embed"`

		Name string
	}

	// Quotation is an anonymous block that sees only the stack it is called with.
	Quotation struct {
		Base `tlog:",embed"`

		Body []Expr
	}

	Match struct {
		Base `tlog:",embed"`

		Branches []MatchBranch
	}

	MatchBranch struct {
		Base `tlog:",embed"`

		Variant string
		Body    []Expr
	}

	If struct {
		Base `tlog:",embed"`

		Then *Quotation
		Else *Quotation
	}

	While struct {
		Base `tlog:",embed"`

		Cond *Quotation
		Body *Quotation
	}
)

func (b Base) Pos() Loc { return b.Loc }

func (l Loc) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Col)
	}

	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

func (l Loc) IsZero() bool {
	return l == Loc{}
}

// Variant returns the index and definition of the named variant or -1.
func (d *TypeDef) Variant(name string) (int, *Variant) {
	for i := range d.Variants {
		if d.Variants[i].Name == name {
			return i, &d.Variants[i]
		}
	}

	return -1, nil
}

// Type returns the type of a value of d with its parameters left as variables.
func (d *TypeDef) Type() tp.Named {
	t := tp.Named{Name: d.Name}

	for _, p := range d.Params {
		t.Args = append(t.Args, tp.Var{Name: p})
	}

	return t
}

func (p *Program) Word(name string) *WordDef {
	for _, w := range p.WordDefs {
		if w.Name == name {
			return w
		}
	}

	return nil
}
