package runtime

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashMapAssocAndGet(t *testing.T) {
	m := NewHashMap()
	m2 := m.Assoc(&Str{Value: "a"}, &Int{Value: 1})

	_, ok := m.Get(&Str{Value: "a"})
	require.False(t, ok, "original empty map must not see the new key")

	v, ok := m2.Get(&Str{Value: "a"})
	require.True(t, ok)
	require.Equal(t, int64(1), v.(*Int).Value)
	require.Equal(t, 1, m2.Count())
	require.Equal(t, 0, m.Count())
}

func TestHashMapAssocStructuralSharingAcrossBranches(t *testing.T) {
	base := NewHashMap().Assoc(&Str{Value: "shared"}, &Int{Value: 0})
	branchA := base.Assoc(&Str{Value: "a"}, &Int{Value: 1})
	branchB := base.Assoc(&Str{Value: "b"}, &Int{Value: 2})

	_, ok := branchA.Get(&Str{Value: "b"})
	require.False(t, ok)
	_, ok = branchB.Get(&Str{Value: "a"})
	require.False(t, ok)

	sv, ok := branchA.Get(&Str{Value: "shared"})
	require.True(t, ok)
	require.Equal(t, int64(0), sv.(*Int).Value)
}

func TestHashMapAssocOverwritesExistingKeyWithoutChangingCount(t *testing.T) {
	m := NewHashMap().Assoc(&Str{Value: "k"}, &Int{Value: 1})
	m2 := m.Assoc(&Str{Value: "k"}, &Int{Value: 2})

	require.Equal(t, 1, m2.Count())
	v, ok := m2.Get(&Str{Value: "k"})
	require.True(t, ok)
	require.Equal(t, int64(2), v.(*Int).Value)
}

func TestHashMapManyKeysForceDeepBranching(t *testing.T) {
	m := NewHashMap()
	const n = 200
	for i := 0; i < n; i++ {
		m = m.Assoc(&Str{Value: fmt.Sprintf("key-%d", i)}, &Int{Value: int64(i)})
	}
	require.Equal(t, n, m.Count())
	for i := 0; i < n; i++ {
		v, ok := m.Get(&Str{Value: fmt.Sprintf("key-%d", i)})
		require.True(t, ok, "missing key-%d", i)
		require.Equal(t, int64(i), v.(*Int).Value)
	}
}

func TestHashMapDissocRemovesKeyAndDecrementsCount(t *testing.T) {
	m := NewHashMap().Assoc(&Str{Value: "a"}, &Int{Value: 1}).Assoc(&Str{Value: "b"}, &Int{Value: 2})
	m2 := m.Dissoc(&Str{Value: "a"})

	require.Equal(t, 1, m2.Count())
	_, ok := m2.Get(&Str{Value: "a"})
	require.False(t, ok)
	bv, ok := m2.Get(&Str{Value: "b"})
	require.True(t, ok)
	require.Equal(t, int64(2), bv.(*Int).Value)

	// original map is untouched (persistent dissoc)
	require.Equal(t, 2, m.Count())
}

func TestHashMapDissocOfMissingKeyIsNoOp(t *testing.T) {
	m := NewHashMap().Assoc(&Str{Value: "a"}, &Int{Value: 1})
	m2 := m.Dissoc(&Str{Value: "nope"})
	require.Equal(t, m, m2)
}

func TestHashMapEachVisitsEveryEntry(t *testing.T) {
	m := NewHashMap()
	for i := 0; i < 40; i++ {
		m = m.Assoc(&Int{Value: int64(i)}, &Int{Value: int64(i * i)})
	}
	seen := make(map[int64]int64)
	m.Each(func(k, v Value) bool {
		seen[k.(*Int).Value] = v.(*Int).Value
		return true
	})
	require.Len(t, seen, 40)
	for i := int64(0); i < 40; i++ {
		require.Equal(t, i*i, seen[i])
	}
}

func TestHashMapEachStopsEarlyWhenFnReturnsFalse(t *testing.T) {
	m := NewHashMap()
	for i := 0; i < 40; i++ {
		m = m.Assoc(&Int{Value: int64(i)}, &Int{Value: int64(i)})
	}
	visited := 0
	m.Each(func(k, v Value) bool {
		visited++
		return false
	})
	require.Equal(t, 1, visited)
}
