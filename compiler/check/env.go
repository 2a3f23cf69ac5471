package check

import (
	"sort"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/tp"
)

type (
	// Env is the symbol table of one compilation.
	Env struct {
		words    map[string]tp.Effect // checked user words
		declared map[string]tp.Effect // signatures of words not checked yet
		ctors    map[string]tp.Effect

		types    map[string]*ast.TypeDef
		variants map[string]VariantRef
	}

	VariantRef struct {
		Type  *ast.TypeDef
		Index int
	}
)

var (
	varA = tp.Var{Name: "A"}
	varB = tp.Var{Name: "B"}
	varC = tp.Var{Name: "C"}

	integer = tp.Int{}
	boolean = tp.Bool{}
	str     = tp.String{}

	anyQuot = tp.Quotation{Effect: tp.FromSlices(nil, nil)}
)

func eff(in, out []tp.Type) tp.Effect {
	return tp.FromSlices(in, out)
}

func ts(l ...tp.Type) []tp.Type { return l }

var builtins = map[string]tp.Effect{
	"dup":  eff(ts(varA), ts(varA, varA)),
	"drop": eff(ts(varA), nil),
	"swap": eff(ts(varA, varB), ts(varB, varA)),
	"over": eff(ts(varA, varB), ts(varA, varB, varA)),
	"rot":  eff(ts(varA, varB, varC), ts(varB, varC, varA)),

	"+": eff(ts(integer, integer), ts(integer)),
	"-": eff(ts(integer, integer), ts(integer)),
	"*": eff(ts(integer, integer), ts(integer)),
	"/": eff(ts(integer, integer), ts(integer)),

	"add":      eff(ts(integer, integer), ts(integer)),
	"subtract": eff(ts(integer, integer), ts(integer)),
	"multiply": eff(ts(integer, integer), ts(integer)),
	"divide":   eff(ts(integer, integer), ts(integer)),

	"<": eff(ts(integer, integer), ts(boolean)),
	">": eff(ts(integer, integer), ts(boolean)),
	"=": eff(ts(integer, integer), ts(boolean)),

	"less_than":    eff(ts(integer, integer), ts(boolean)),
	"greater_than": eff(ts(integer, integer), ts(boolean)),
	"equal":        eff(ts(integer, integer), ts(boolean)),

	"call": eff(ts(anyQuot), nil),

	"string_length": eff(ts(str), ts(integer)),
	"string_concat": eff(ts(str, str), ts(str)),
	"string_equal":  eff(ts(str, str), ts(boolean)),

	"write_line": eff(ts(str), nil),
	"read_line":  eff(nil, ts(str)),

	"yield": eff(nil, nil),
}

var primitiveTypes = map[string]struct{}{
	"Int":    {},
	"Bool":   {},
	"String": {},
}

func NewEnv() *Env {
	return &Env{
		words:    map[string]tp.Effect{},
		declared: map[string]tp.Effect{},
		ctors:    map[string]tp.Effect{},
		types:    map[string]*ast.TypeDef{},
		variants: map[string]VariantRef{},
	}
}

// AddType registers a sum type and a constructor word for each of its variants.
func (e *Env) AddType(td *ast.TypeDef) error {
	if _, ok := primitiveTypes[td.Name]; ok {
		return other(td.Loc, "type %v redefines a primitive type", td.Name)
	}

	if _, ok := e.types[td.Name]; ok {
		return other(td.Loc, "duplicate type: %v", td.Name)
	}

	if len(td.Variants) == 0 {
		return other(td.Loc, "type %v has no variants", td.Name)
	}

	for i, v := range td.Variants {
		if ref, ok := e.variants[v.Name]; ok {
			return other(td.Loc, "variant %v of %v is already defined by %v", v.Name, td.Name, ref.Type.Name)
		}

		if e.IsBuiltin(v.Name) {
			return other(td.Loc, "variant %v redefines a builtin word", v.Name)
		}

		for j := 0; j < i; j++ {
			if td.Variants[j].Name == v.Name {
				return other(td.Loc, "duplicate variant %v in %v", v.Name, td.Name)
			}
		}
	}

	e.types[td.Name] = td

	res := td.Type()

	for i, v := range td.Variants {
		e.variants[v.Name] = VariantRef{Type: td, Index: i}
		e.ctors[v.Name] = tp.FromSlices(v.Fields, []tp.Type{res})
	}

	return nil
}

// Declare registers the signature of a word before its body is checked.
func (e *Env) Declare(name string, effect tp.Effect) error {
	switch {
	case e.IsBuiltin(name):
		return other(ast.Loc{}, "word %v redefines a builtin", name)
	case e.isCtor(name):
		return other(ast.Loc{}, "word %v redefines a variant constructor", name)
	}

	if _, ok := e.declared[name]; ok {
		return other(ast.Loc{}, "duplicate word: %v", name)
	}

	if _, ok := e.words[name]; ok {
		return other(ast.Loc{}, "duplicate word: %v", name)
	}

	e.declared[name] = effect

	return nil
}

// AddWord records a successfully checked word.
func (e *Env) AddWord(name string, effect tp.Effect) {
	delete(e.declared, name)

	e.words[name] = effect
}

func (e *Env) LookupWord(name string) (tp.Effect, bool) {
	if x, ok := builtins[name]; ok {
		return x, true
	}

	if x, ok := e.ctors[name]; ok {
		return x, true
	}

	if x, ok := e.words[name]; ok {
		return x, true
	}

	x, ok := e.declared[name]

	return x, ok
}

// Checked reports whether the word has passed the checker.
func (e *Env) Checked(name string) bool {
	_, ok := e.words[name]
	return ok
}

func (e *Env) LookupType(name string) (*ast.TypeDef, bool) {
	td, ok := e.types[name]
	return td, ok
}

func (e *Env) VariantOf(name string) (VariantRef, bool) {
	r, ok := e.variants[name]
	return r, ok
}

func (e *Env) IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func (e *Env) isCtor(name string) bool {
	_, ok := e.ctors[name]
	return ok
}

// BuiltinWords returns the names of all builtin words sorted.
func BuiltinWords() []string {
	l := make([]string, 0, len(builtins))

	for name := range builtins {
		l = append(l, name)
	}

	sort.Strings(l)

	return l
}
