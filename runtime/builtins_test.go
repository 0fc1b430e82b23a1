package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// coreFn fetches a clj.core builtin by name, the way VarRef resolution
// would, so these tests exercise the exact Var CoreNamespace stores (not
// a re-implementation).
func coreFn(t *testing.T, name string) func([]Value) (Value, *Error) {
	t.Helper()
	v, ok := CoreNamespace.Resolve(name)
	require.True(t, ok, "no such core builtin: %s", name)
	fn, ok := v.Get().(*BuiltinFn)
	require.True(t, ok, "%s is not a BuiltinFn", name)
	return fn.Fn
}

func TestConjOnEachCollectionType(t *testing.T) {
	conj := coreFn(t, "conj")

	v, err := conj([]Value{NewVector(&Int{Value: 1}), &Int{Value: 2}})
	require.Nil(t, err)
	vec := v.(*Vector)
	require.Equal(t, 2, vec.Count())
	last, _ := vec.Nth(1)
	require.Equal(t, int64(2), last.(*Int).Value)

	l, err := conj([]Value{NewList(&Int{Value: 2}), &Int{Value: 1}})
	require.Nil(t, err)
	lst := l.(*List)
	require.Equal(t, int64(1), lst.Items[0].(*Int).Value, "conj on a list prepends")

	s, err := conj([]Value{NewSet(&Int{Value: 1}), &Int{Value: 2}})
	require.Nil(t, err)
	set := s.(*Set)
	require.Equal(t, 2, set.Count())

	m, err := conj([]Value{NewHashMap(), NewVector(&Str{Value: "k"}, &Int{Value: 1})})
	require.Nil(t, err)
	hm := m.(*HashMap)
	require.Equal(t, 1, hm.Count())
}

func TestAssocOnMapAndVector(t *testing.T) {
	assoc := coreFn(t, "assoc")

	m, err := assoc([]Value{NewArrayMap(), &Str{Value: "a"}, &Int{Value: 1}})
	require.Nil(t, err)
	am := m.(MapLike)
	v, ok := am.Get(&Str{Value: "a"})
	require.True(t, ok)
	require.Equal(t, int64(1), v.(*Int).Value)

	vec, err := assoc([]Value{NewVector(&Int{Value: 0}, &Int{Value: 0}), &Int{Value: 1}, &Int{Value: 99}})
	require.Nil(t, err)
	nv := vec.(*Vector)
	at1, _ := nv.Nth(1)
	require.Equal(t, int64(99), at1.(*Int).Value)
}

func TestAssocRejectsOddArgCount(t *testing.T) {
	assoc := coreFn(t, "assoc")
	_, err := assoc([]Value{NewArrayMap(), &Str{Value: "a"}})
	require.NotNil(t, err)
	require.Equal(t, ArityErrorKind, err.Kind)
}

func TestDissocRemovesFromMap(t *testing.T) {
	dissoc := coreFn(t, "dissoc")
	assoc := coreFn(t, "assoc")

	m, _ := assoc([]Value{NewArrayMap(), &Str{Value: "a"}, &Int{Value: 1}})
	m2, err := dissoc([]Value{m, &Str{Value: "a"}})
	require.Nil(t, err)
	_, ok := m2.(MapLike).Get(&Str{Value: "a"})
	require.False(t, ok)
}

func TestGetWithNotFoundDefault(t *testing.T) {
	get := coreFn(t, "get")

	v, err := get([]Value{NewArrayMap(), &Str{Value: "missing"}, &Int{Value: -1}})
	require.Nil(t, err)
	require.Equal(t, int64(-1), v.(*Int).Value)

	v, err = get([]Value{NewVector(&Int{Value: 7}), &Int{Value: 5}})
	require.Nil(t, err)
	require.IsType(t, &NilVal{}, v)

	s := NewSet(&Keyword{Name: "x"})
	v, err = get([]Value{s, &Keyword{Name: "x"}})
	require.Nil(t, err)
	require.Equal(t, "x", v.(*Keyword).Name)
}

func TestNthWithAndWithoutDefault(t *testing.T) {
	nth := coreFn(t, "nth")

	v, err := nth([]Value{NewVector(&Int{Value: 10}, &Int{Value: 20}), &Int{Value: 1}})
	require.Nil(t, err)
	require.Equal(t, int64(20), v.(*Int).Value)

	v, err = nth([]Value{NewVector(&Int{Value: 10}), &Int{Value: 5}, &Str{Value: "fallback"}})
	require.Nil(t, err)
	require.Equal(t, "fallback", v.(*Str).Value)

	_, err = nth([]Value{NewVector(&Int{Value: 10}), &Int{Value: 5}})
	require.NotNil(t, err)
	require.Equal(t, IndexErrorKind, err.Kind)
}

func TestAtomResetAndSwap(t *testing.T) {
	atomFn := coreFn(t, "atom")
	resetFn := coreFn(t, "reset!")
	swapFn := coreFn(t, "swap!")
	deref := coreFn(t, "deref")

	a, err := atomFn([]Value{&Int{Value: 1}})
	require.Nil(t, err)

	r, err := resetFn([]Value{a, &Int{Value: 5}})
	require.Nil(t, err)
	require.Equal(t, int64(5), r.(*Int).Value)

	inc := &BuiltinFn{Name: "inc", Fn: func(args []Value) (Value, *Error) {
		return Add(args[0], &Int{Value: 1})
	}}
	r, err = swapFn([]Value{a, inc})
	require.Nil(t, err)
	require.Equal(t, int64(6), r.(*Int).Value)

	d, err := deref([]Value{a})
	require.Nil(t, err)
	require.Equal(t, int64(6), d.(*Int).Value)
}

func TestSwapPropagatesCallError(t *testing.T) {
	atomFn := coreFn(t, "atom")
	swapFn := coreFn(t, "swap!")

	a, _ := atomFn([]Value{&Int{Value: 1}})
	failing := &BuiltinFn{Name: "fail", Fn: func(args []Value) (Value, *Error) {
		return nil, NewError(ValueErrorKind, "boom", Pos{})
	}}
	_, err := swapFn([]Value{a, failing})
	require.NotNil(t, err)
	require.Equal(t, ValueErrorKind, err.Kind)
}

func TestCountAcrossTypes(t *testing.T) {
	count := coreFn(t, "count")

	v, err := count([]Value{NewVector(&Int{Value: 1}, &Int{Value: 2})})
	require.Nil(t, err)
	require.Equal(t, int64(2), v.(*Int).Value)

	v, err = count([]Value{TheNil})
	require.Nil(t, err)
	require.Equal(t, int64(0), v.(*Int).Value)

	v, err = count([]Value{&Str{Value: "hello"}})
	require.Nil(t, err)
	require.Equal(t, int64(5), v.(*Int).Value)
}

func TestReduceWithAndWithoutInit(t *testing.T) {
	reduce := coreFn(t, "reduce")
	plus := coreFn(t, "+")
	plusFn := &BuiltinFn{Name: "+", Fn: plus}

	v, err := reduce([]Value{plusFn, NewVector(&Int{Value: 1}, &Int{Value: 2}, &Int{Value: 3})})
	require.Nil(t, err)
	require.Equal(t, int64(6), v.(*Int).Value)

	v, err = reduce([]Value{plusFn, &Int{Value: 10}, NewVector(&Int{Value: 1}, &Int{Value: 2})})
	require.Nil(t, err)
	require.Equal(t, int64(13), v.(*Int).Value)
}
