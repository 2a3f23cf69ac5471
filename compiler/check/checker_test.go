package check

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/tp"
)

var ctx = context.Background()

func call(name string) ast.Expr { return &ast.WordCall{Name: name} }
func num(v int64) ast.Expr      { return &ast.IntLit{Value: v} }
func truth(v bool) ast.Expr     { return &ast.BoolLit{Value: v} }

func quot(body ...ast.Expr) *ast.Quotation { return &ast.Quotation{Body: body} }

func word(name string, in, out []tp.Type, body ...ast.Expr) *ast.WordDef {
	return &ast.WordDef{Name: name, Effect: tp.FromSlices(in, out), Body: body}
}

func option() *ast.TypeDef {
	return &ast.TypeDef{
		Name:   "Option",
		Params: []string{"T"},
		Variants: []ast.Variant{
			{Name: "Some", Fields: []tp.Type{tp.Var{Name: "T"}}},
			{Name: "None"},
		},
	}
}

func optionOf(t tp.Type) tp.Named {
	return tp.Named{Name: "Option", Args: []tp.Type{t}}
}

func TestUnderflow(t *testing.T) {
	p := &ast.Program{WordDefs: []*ast.WordDef{
		word("bad", nil, ts(integer), call("add")),
	}}

	err := CheckProgram(ctx, p)

	var uf *StackUnderflowError
	require.ErrorAs(t, err, &uf)
	assert.Equal(t, "add", uf.Word)
	assert.Equal(t, 2, uf.Required)
	assert.Equal(t, 0, uf.Available)
}

func TestPolymorphicBuiltins(t *testing.T) {
	c := New()

	st, err := c.checkBody(ctx, []ast.Expr{num(1), &ast.StringLit{Value: "x"}, call("swap"), call("over")}, tp.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "String Int String", st.String())

	st, err = c.checkBody(ctx, []ast.Expr{num(1), truth(true), &ast.StringLit{Value: "s"}, call("rot")}, tp.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "Bool String Int", st.String())
}

func TestSwapDeclaredVars(t *testing.T) {
	// callee variables must not capture the caller's names
	p := &ast.Program{WordDefs: []*ast.WordDef{
		word("flip", ts(varB, varA), ts(varA, varB), call("swap")),
	}}

	require.NoError(t, CheckProgram(ctx, p))

	p = &ast.Program{WordDefs: []*ast.WordDef{
		word("flip", ts(integer, str), ts(integer, str), call("swap")),
	}}

	var em *EffectMismatchError
	require.ErrorAs(t, CheckProgram(ctx, p), &em)
	assert.Equal(t, "flip", em.Word)
	assert.Equal(t, "String Int", em.Actual.Out.String())
}

func TestTypeMismatch(t *testing.T) {
	p := &ast.Program{WordDefs: []*ast.WordDef{
		word("bad", nil, ts(integer), num(1), truth(true), call("+")),
	}}

	var tm *TypeMismatchError
	require.ErrorAs(t, CheckProgram(ctx, p), &tm)
	assert.Equal(t, tp.Type(integer), tm.Expected)
	assert.Equal(t, tp.Type(boolean), tm.Actual)
	assert.Contains(t, tm.Context, "+")
}

func TestUndefinedWord(t *testing.T) {
	p := &ast.Program{WordDefs: []*ast.WordDef{
		word("bad", nil, nil, &ast.WordCall{Base: ast.Base{Loc: ast.Loc{File: "a.cem", Line: 3, Col: 5}}, Name: "nope"}),
	}}

	err := CheckProgram(ctx, p)

	var uw *UndefinedWordError
	require.ErrorAs(t, err, &uw)
	assert.Equal(t, "nope", uw.Name)
	assert.Equal(t, 3, uw.Loc.Line)
	assert.Contains(t, err.Error(), "a.cem:3:5")
}

func TestNonExhaustiveMatch(t *testing.T) {
	p := &ast.Program{
		TypeDefs: []*ast.TypeDef{option()},
		WordDefs: []*ast.WordDef{
			word("unwrap", ts(optionOf(integer)), ts(integer),
				&ast.Match{Branches: []ast.MatchBranch{
					{Variant: "Some"},
				}},
			),
		},
	}

	var ne *NonExhaustiveMatchError
	require.ErrorAs(t, CheckProgram(ctx, p), &ne)
	assert.Equal(t, "Option", ne.TypeName)
	assert.Equal(t, []string{"None"}, ne.Missing)
}

func TestMatch(t *testing.T) {
	unwrap := word("unwrap_or_zero", ts(optionOf(integer)), ts(integer),
		&ast.Match{Branches: []ast.MatchBranch{
			{Variant: "None", Body: []ast.Expr{num(0)}},
			{Variant: "Some"},
		}},
	)

	p := &ast.Program{TypeDefs: []*ast.TypeDef{option()}, WordDefs: []*ast.WordDef{unwrap}}
	require.NoError(t, CheckProgram(ctx, p))

	bad := word("bad", ts(optionOf(integer)), ts(integer),
		&ast.Match{Branches: []ast.MatchBranch{
			{Variant: "Some"},
			{Variant: "None", Body: []ast.Expr{truth(false)}},
		}},
	)

	p = &ast.Program{TypeDefs: []*ast.TypeDef{option()}, WordDefs: []*ast.WordDef{bad}}

	var ib *InconsistentBranchEffectsError
	require.ErrorAs(t, CheckProgram(ctx, p), &ib)
	assert.Equal(t, "None", ib.Branch)
	assert.Equal(t, "Option", ib.TypeName)
}

func TestMatchErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		branches []ast.MatchBranch
	}{
		{"empty", nil},
		{"unknown", []ast.MatchBranch{{Variant: "Some"}, {Variant: "None"}, {Variant: "Other"}}},
		{"duplicate", []ast.MatchBranch{{Variant: "Some"}, {Variant: "Some"}, {Variant: "None"}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := &ast.Program{
				TypeDefs: []*ast.TypeDef{option()},
				WordDefs: []*ast.WordDef{word("w", ts(optionOf(integer)), ts(integer), &ast.Match{Branches: tc.branches})},
			}

			var oe *OtherError
			require.ErrorAs(t, CheckProgram(ctx, p), &oe)
		})
	}

	p := &ast.Program{WordDefs: []*ast.WordDef{
		word("w", ts(integer), nil, &ast.Match{Branches: []ast.MatchBranch{{Variant: "Some"}}}),
	}}

	var oe *OtherError
	require.ErrorAs(t, CheckProgram(ctx, p), &oe, "match on Int")
}

func TestForeignVariantPattern(t *testing.T) {
	shape := &ast.TypeDef{
		Name:     "Shape",
		Variants: []ast.Variant{{Name: "Dot"}, {Name: "Circle", Fields: ts(integer)}},
	}

	p := &ast.Program{
		TypeDefs: []*ast.TypeDef{option(), shape},
		WordDefs: []*ast.WordDef{
			word("w", ts(optionOf(integer)), ts(integer), &ast.Match{Branches: []ast.MatchBranch{
				{Variant: "Some"}, {Variant: "Dot", Body: []ast.Expr{num(0)}},
			}}),
		},
	}

	c := New()

	var oe *OtherError
	require.ErrorAs(t, c.CheckProgram(ctx, p), &oe)
	assert.Equal(t, "Dot is a variant of Shape, not Option", oe.Message)

	ref, ok := c.Env().VariantOf("Circle")
	require.True(t, ok)
	assert.Equal(t, "Shape", ref.Type.Name)
	assert.Equal(t, 1, ref.Index)

	_, ok = c.Env().VariantOf("Missing")
	assert.False(t, ok)
}

func TestConstructors(t *testing.T) {
	p := &ast.Program{
		TypeDefs: []*ast.TypeDef{option()},
		WordDefs: []*ast.WordDef{
			word("some", nil, ts(optionOf(integer)), num(5), call("Some")),
			word("none", nil, ts(optionOf(str)), call("None")),
		},
	}

	require.NoError(t, CheckProgram(ctx, p))
}

func TestIf(t *testing.T) {
	c := New()

	st, err := c.checkBody(ctx, []ast.Expr{truth(true), &ast.If{Then: quot(num(42)), Else: quot(num(0))}}, tp.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "Int", st.String())

	_, err = c.checkBody(ctx, []ast.Expr{truth(true), &ast.If{Then: quot(num(42)), Else: quot()}}, tp.Empty{})
	var oe *OtherError
	require.ErrorAs(t, err, &oe)

	_, err = c.checkBody(ctx, []ast.Expr{num(1), &ast.If{Then: quot(), Else: quot()}}, tp.Empty{})
	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, tp.Type(boolean), tm.Expected)

	_, err = c.checkBody(ctx, []ast.Expr{&ast.If{Then: quot(), Else: quot()}}, tp.Empty{})
	var uf *StackUnderflowError
	require.ErrorAs(t, err, &uf)
}

func TestWhile(t *testing.T) {
	countdown := word("countdown", ts(integer), ts(integer),
		&ast.While{
			Cond: quot(call("dup"), num(0), call(">")),
			Body: quot(num(1), call("-")),
		},
	)

	require.NoError(t, CheckProgram(ctx, &ast.Program{WordDefs: []*ast.WordDef{countdown}}))

	grows := word("grows", ts(integer), ts(integer),
		&ast.While{
			Cond: quot(call("dup"), num(0), call(">")),
			Body: quot(call("dup")),
		},
	)

	var oe *OtherError
	require.ErrorAs(t, CheckProgram(ctx, &ast.Program{WordDefs: []*ast.WordDef{grows}}), &oe)

	noBool := word("nobool", ts(integer), ts(integer),
		&ast.While{Cond: quot(call("dup")), Body: quot()},
	)

	var tm *TypeMismatchError
	require.ErrorAs(t, CheckProgram(ctx, &ast.Program{WordDefs: []*ast.WordDef{noBool}}), &tm)
}

func TestRecursion(t *testing.T) {
	// is_even and is_odd reference each other before either is checked
	p := &ast.Program{WordDefs: []*ast.WordDef{
		word("is_even", ts(integer), ts(boolean),
			call("dup"), num(0), call("="),
			&ast.If{Then: quot(call("drop"), truth(true)), Else: quot(num(1), call("-"), call("is_odd"))},
		),
		word("is_odd", ts(integer), ts(boolean),
			call("dup"), num(0), call("="),
			&ast.If{Then: quot(call("drop"), truth(false)), Else: quot(num(1), call("-"), call("is_even"))},
		),
	}}

	c := New()
	require.NoError(t, c.CheckProgram(ctx, p))
	assert.True(t, c.Env().Checked("is_even"))
	assert.True(t, c.Env().Checked("is_odd"))
}

func TestFailedWordNotAdded(t *testing.T) {
	c := New()

	err := c.CheckProgram(ctx, &ast.Program{WordDefs: []*ast.WordDef{
		word("ok", nil, ts(integer), num(1)),
		word("bad", nil, ts(integer), call("drop")),
	}})
	require.Error(t, err)

	assert.True(t, c.Env().Checked("ok"))
	assert.False(t, c.Env().Checked("bad"))
}

func TestRowVariables(t *testing.T) {
	row := tp.RowVar{Name: "a"}

	c := New()

	dropInt := tp.Effect{In: tp.Push(row, integer), Out: row}

	st, err := c.ApplyEffect(dropInt, tp.FromSlice(tp.Empty{}, ts(str, boolean, integer)), "drop_int")
	require.NoError(t, err)
	assert.Equal(t, "String Bool", st.String())

	keep := word("keep", nil, nil)
	keep.Effect = tp.Effect{In: tp.Push(row, integer), Out: tp.Push(row, integer)}
	keep.Body = []ast.Expr{call("dup"), call("drop")}

	require.NoError(t, c.CheckWord(ctx, keep))
}

func TestQuotationOpaque(t *testing.T) {
	c := New()

	st, err := c.checkBody(ctx, []ast.Expr{quot(num(1)), call("call")}, tp.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "", st.String())
}

func TestDeclarationErrors(t *testing.T) {
	for _, p := range []*ast.Program{
		{WordDefs: []*ast.WordDef{word("dup", nil, nil)}},
		{WordDefs: []*ast.WordDef{word("w", nil, nil), word("w", nil, nil)}},
		{TypeDefs: []*ast.TypeDef{option(), option()}},
		{TypeDefs: []*ast.TypeDef{option()}, WordDefs: []*ast.WordDef{word("Some", nil, nil)}},
	} {
		var oe *OtherError
		assert.ErrorAs(t, CheckProgram(ctx, p), &oe)
	}

	p := &ast.Program{WordDefs: []*ast.WordDef{
		word("w", ts(tp.Named{Name: "List"}), nil, call("drop")),
	}}

	var ut *UndefinedTypeError
	require.ErrorAs(t, CheckProgram(ctx, p), &ut)
	assert.Equal(t, "List", ut.Name)
}

func TestEffectSoundness(t *testing.T) {
	words := []*ast.WordDef{
		word("square", ts(integer), ts(integer), call("dup"), call("*")),
		word("greet", ts(str), nil, &ast.StringLit{Value: "hello "}, call("swap"), call("string_concat"), call("write_line")),
		word("max", ts(integer, integer), ts(integer),
			call("over"), call("over"), call("<"),
			&ast.If{Then: quot(call("swap"), call("drop")), Else: quot(call("drop"))},
		),
	}

	c := New()

	for _, w := range words {
		st, err := c.checkBody(ctx, w.Body, w.Effect.In)
		require.NoError(t, err, "word %v", w.Name)
		assert.True(t, tp.EqualStacks(w.Effect.Out, st), "word %v: %v", w.Name, st)
	}
}

func TestBuiltinWords(t *testing.T) {
	l := BuiltinWords()

	assert.Contains(t, l, "dup")
	assert.Contains(t, l, "yield")
	assert.IsIncreasing(t, l)
}
