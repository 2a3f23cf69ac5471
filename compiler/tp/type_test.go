package tp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackDepth(t *testing.T) {
	s := FromSlice(Empty{}, []Type{Int{}, Bool{}})

	n, closed := Depth(s)
	assert.Equal(t, 2, n)
	assert.True(t, closed)

	n, closed = Depth(Push(RowVar{Name: "a"}, Int{}))
	assert.Equal(t, 1, n)
	assert.False(t, closed)

	n, closed = Depth(Empty{})
	assert.Equal(t, 0, n)
	assert.True(t, closed)
}

func TestStackPushPop(t *testing.T) {
	s := Push(Push(Empty{}, Int{}), String{})

	rest, top, ok := Pop(s)
	require.True(t, ok)
	assert.Equal(t, String{}, top)

	rest, top, ok = Pop(rest)
	require.True(t, ok)
	assert.Equal(t, Int{}, top)

	_, _, ok = Pop(rest)
	assert.False(t, ok)

	// popping does not modify s
	n, _ := Depth(s)
	assert.Equal(t, 2, n)
}

func TestStackSliceConcat(t *testing.T) {
	s := FromSlice(RowVar{Name: "r"}, []Type{Int{}, Bool{}, String{}})

	base, l := Slice(s)
	assert.Equal(t, RowVar{Name: "r"}, base)
	assert.Equal(t, []Type{Int{}, Bool{}, String{}}, l)

	c := Concat(Push(Empty{}, Var{Name: "A"}), s)
	assert.Equal(t, "A Int Bool String", c.String())
	assert.Equal(t, Empty{}, Base(c))
}

func TestStrings(t *testing.T) {
	opt := Named{Name: "Option", Args: []Type{Var{Name: "T"}}}

	assert.Equal(t, "Option(T)", opt.String())
	assert.Equal(t, "( Int Int -- Int )", FromSlices([]Type{Int{}, Int{}}, []Type{Int{}}).String())
	assert.Equal(t, "( -- )", Effect{In: Empty{}, Out: Empty{}}.String())
	assert.Equal(t, "[ -- Bool ]", Quotation{Effect: FromSlices(nil, []Type{Bool{}})}.String())
	assert.Equal(t, "..a Int", Push(RowVar{Name: "a"}, Int{}).String())
}

func TestEqual(t *testing.T) {
	a := Named{Name: "List", Args: []Type{Int{}}}
	b := Named{Name: "List", Args: []Type{Int{}}}
	c := Named{Name: "List", Args: []Type{Bool{}}}

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, Int{}))
	assert.True(t, EqualStacks(FromSlice(Empty{}, []Type{a}), FromSlice(Empty{}, []Type{b})))
	assert.False(t, EqualStacks(Push(RowVar{Name: "a"}, Int{}), Push(RowVar{Name: "b"}, Int{})))
}
