package arenaskip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newIntMap(t testing.TB, opts ...Option) *Map[int, int] {
	t.Helper()
	m, err := NewOrdered[int, int](opts...)
	require.NoError(t, err)
	return m
}

func mustInsert[K, V any](t testing.TB, m *Map[K, V], key K, value V) {
	t.Helper()
	_, err := m.Insert(key, value)
	require.NoError(t, err)
}

// logicallyDelete clears the value of key without marking or unlinking the
// node, leaving it as a concurrent remove would between its two steps.
func logicallyDelete[K, V any](t testing.TB, m *Map[K, V], key K) {
	t.Helper()
	w := m.NewWorker()
	_, _, n, equal := w.find(key, false)
	require.True(t, equal, "key %v not found", key)
	require.NotNil(t, n.val.Swap(nil))
	w.stats.length.Add(-1)
}
