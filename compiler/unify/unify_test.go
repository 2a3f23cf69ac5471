package unify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cemlang/cem/compiler/tp"
)

func stack(l ...tp.Type) tp.StackType {
	return tp.FromSlice(tp.Empty{}, l)
}

func TestTypesPrimitive(t *testing.T) {
	s, err := Types(tp.Int{}, tp.Int{})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	_, err = Types(tp.Int{}, tp.Bool{})
	var me *MismatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "Int", me.A)
	assert.Equal(t, "Bool", me.B)
}

func TestTypesBindBothSides(t *testing.T) {
	s, err := Types(tp.Var{Name: "A"}, tp.Int{})
	require.NoError(t, err)
	assert.Equal(t, tp.Int{}, s.Apply(tp.Var{Name: "A"}))

	s, err = Types(tp.String{}, tp.Var{Name: "B"})
	require.NoError(t, err)
	assert.Equal(t, tp.String{}, s.Apply(tp.Var{Name: "B"}))
}

func TestTypesNamed(t *testing.T) {
	a := tp.Named{Name: "Option", Args: []tp.Type{tp.Var{Name: "T"}}}
	b := tp.Named{Name: "Option", Args: []tp.Type{tp.Int{}}}

	s, err := Types(a, b)
	require.NoError(t, err)
	assert.Equal(t, "Option(Int)", s.Apply(a).String())

	_, err = Types(a, tp.Named{Name: "List", Args: []tp.Type{tp.Int{}}})
	assert.Error(t, err)

	_, err = Types(a, tp.Named{Name: "Option"})
	assert.Error(t, err)
}

func TestTypesOccurs(t *testing.T) {
	_, err := Types(tp.Var{Name: "T"}, tp.Named{Name: "List", Args: []tp.Type{tp.Var{Name: "T"}}})

	var me *MismatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "infinite type", me.Reason)
}

func TestStacks(t *testing.T) {
	s, err := Stacks(stack(tp.Int{}, tp.Bool{}), stack(tp.Var{Name: "A"}, tp.Var{Name: "B"}))
	require.NoError(t, err)
	assert.Equal(t, "Int Bool", s.ApplyStack(stack(tp.Var{Name: "A"}, tp.Var{Name: "B"})).String())

	_, err = Stacks(stack(tp.Int{}), stack(tp.Int{}, tp.Int{}))
	assert.Error(t, err)

	_, err = Stacks(stack(tp.Int{}), stack(tp.Bool{}))
	assert.Error(t, err)
}

func TestStacksRowVar(t *testing.T) {
	row := tp.Push(tp.RowVar{Name: "a"}, tp.Int{})

	s, err := Stacks(stack(tp.String{}, tp.Bool{}, tp.Int{}), row)
	require.NoError(t, err)
	assert.Equal(t, "String Bool", s.ApplyStack(tp.RowVar{Name: "a"}).String())

	out := tp.Push(tp.RowVar{Name: "a"}, tp.Bool{})
	assert.Equal(t, "String Bool Bool", s.ApplyStack(out).String())

	_, err = Stacks(tp.RowVar{Name: "a"}, row)
	assert.Error(t, err, "row variable cannot contain itself")
}

func TestSubstPersistent(t *testing.T) {
	s, err := Types(tp.Var{Name: "A"}, tp.Int{})
	require.NoError(t, err)

	_, err = s.Types(tp.Var{Name: "B"}, tp.Bool{})
	require.NoError(t, err)

	assert.Equal(t, tp.Var{Name: "B"}, s.Apply(tp.Var{Name: "B"}), "extension must not modify the receiver")
}

func TestQuotationTypes(t *testing.T) {
	q1 := tp.Quotation{Effect: tp.FromSlices([]tp.Type{tp.Var{Name: "A"}}, nil)}
	q2 := tp.Quotation{Effect: tp.FromSlices([]tp.Type{tp.Int{}}, nil)}

	s, err := Types(q1, q2)
	require.NoError(t, err)
	assert.Equal(t, "[ Int -- ]", s.Apply(q1).String())

	_, err = Types(q1, tp.Quotation{Effect: tp.FromSlices(nil, nil)})
	assert.Error(t, err)
}

func TestSubstBindings(t *testing.T) {
	s := Subst{Vars: map[string]tp.Type{"T": tp.Int{}}}

	s, err := s.Types(tp.Named{Name: "Option", Args: []tp.Type{tp.Var{Name: "T"}}}, tp.Named{Name: "Option", Args: []tp.Type{tp.Var{Name: "U"}}})
	require.NoError(t, err)

	assert.Equal(t, tp.Int{}, s.Vars["U"])
	assert.Equal(t, tp.Int{}, s.Apply(tp.Var{Name: "U"}))
	assert.Equal(t, 2, s.Len())
}
