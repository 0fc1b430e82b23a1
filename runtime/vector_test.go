package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorConjFastPathExtendsInPlaceWhileSoleOwner(t *testing.T) {
	v := NewVector(&Int{Value: 1})
	v2 := v.Conj(&Int{Value: 2})
	require.Equal(t, 1, v.Count())
	require.Equal(t, 2, v2.Count())
	n, err := v2.Nth(1)
	require.Nil(t, err)
	require.Equal(t, int64(2), n.(*Int).Value)
}

func TestVectorConjDoesNotMutateEarlierBranch(t *testing.T) {
	base := NewVector(&Int{Value: 1}, &Int{Value: 2})
	branchA := base.Conj(&Int{Value: 3})
	branchB := base.Conj(&Int{Value: 30})

	a3, err := branchA.Nth(2)
	require.Nil(t, err)
	require.Equal(t, int64(3), a3.(*Int).Value)

	b3, err := branchB.Nth(2)
	require.Nil(t, err)
	require.Equal(t, int64(30), b3.(*Int).Value)

	require.Equal(t, 2, base.Count())
}

func TestVectorAssocIsAlwaysCopyOnWrite(t *testing.T) {
	base := NewVector(&Int{Value: 1}, &Int{Value: 2}, &Int{Value: 3})
	updated, err := base.Assoc(1, &Int{Value: 99})
	require.Nil(t, err)

	orig, err := base.Nth(1)
	require.Nil(t, err)
	require.Equal(t, int64(2), orig.(*Int).Value)

	upd, err := updated.Nth(1)
	require.Nil(t, err)
	require.Equal(t, int64(99), upd.(*Int).Value)
}

func TestVectorAssocOutOfBoundsIsIndexError(t *testing.T) {
	v := NewVector(&Int{Value: 1})
	_, err := v.Assoc(5, &Int{Value: 0})
	require.NotNil(t, err)
	require.Equal(t, IndexErrorKind, err.Kind)
}

func TestVectorNthOutOfBoundsIsIndexError(t *testing.T) {
	v := NewVector(&Int{Value: 1})
	_, err := v.Nth(-1)
	require.NotNil(t, err)
	require.Equal(t, IndexErrorKind, err.Kind)

	_, err = v.Nth(1)
	require.NotNil(t, err)
	require.Equal(t, IndexErrorKind, err.Kind)
}

func TestVectorPopRemovesLastWithoutDisturbingOriginal(t *testing.T) {
	base := NewVector(&Int{Value: 1}, &Int{Value: 2}, &Int{Value: 3})
	popped, err := base.Pop()
	require.Nil(t, err)
	require.Equal(t, 2, popped.Count())
	require.Equal(t, 3, base.Count())
}

func TestVectorPopOnEmptyIsValueError(t *testing.T) {
	_, err := EmptyVector.Pop()
	require.NotNil(t, err)
	require.Equal(t, ValueErrorKind, err.Kind)
}

func TestVectorPopThenConjNeverClobbersPrePopVector(t *testing.T) {
	base := NewVector(&Int{Value: 1}, &Int{Value: 2}, &Int{Value: 3})
	popped, err := base.Pop()
	require.Nil(t, err)

	repushed := popped.Conj(&Int{Value: 99})

	third, err := base.Nth(2)
	require.Nil(t, err)
	require.Equal(t, int64(3), third.(*Int).Value, "popping then conj-ing must not mutate the original vector's backing slot")

	rv, err := repushed.Nth(2)
	require.Nil(t, err)
	require.Equal(t, int64(99), rv.(*Int).Value)
}

func TestEmptyVectorHasZeroCount(t *testing.T) {
	require.Equal(t, 0, EmptyVector.Count())
}
