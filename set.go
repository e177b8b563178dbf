package arenaskip

import (
	"cmp"
	"iter"
)

// Set is a concurrent ordered set of values.
type Set[T any] struct {
	m *Map[T, struct{}]
}

// NewSet returns an empty Set ordered by less.
func NewSet[T any](less func(a, b T) bool, opts ...Option) (*Set[T], error) {
	m, err := New[T, struct{}](less, opts...)
	if err != nil {
		return nil, err
	}
	return &Set[T]{m: m}, nil
}

// NewOrderedSet returns an empty Set over a naturally ordered type.
func NewOrderedSet[T cmp.Ordered](opts ...Option) (*Set[T], error) {
	return NewSet[T](cmp.Less[T], opts...)
}

// Insert adds v and reports whether it was absent.
func (s *Set[T]) Insert(v T) (bool, error) { return s.m.Insert(v, struct{}{}) }

// Contains reports whether v is in the set.
func (s *Set[T]) Contains(v T) bool { return s.m.Contains(v) }

// Remove deletes v and reports whether it was present.
func (s *Set[T]) Remove(v T) bool { return s.m.Remove(v) }

// Range returns the members with lo <= v <= hi in ascending order.
func (s *Set[T]) Range(lo, hi T) []T {
	return keysOf(s.m.Range(lo, hi))
}

// BulkInsert sorts values and adds them in order, returning how many were new.
func (s *Set[T]) BulkInsert(values []T) (int, error) {
	entries := make([]Entry[T, struct{}], len(values))
	for i, v := range values {
		entries[i].Key = v
	}
	return s.m.BulkInsert(entries)
}

// BulkRemove sorts values and removes them in order, returning how many were present.
func (s *Set[T]) BulkRemove(values []T) int { return s.m.BulkRemove(values) }

func (s *Set[T]) Len() int     { return s.m.Len() }
func (s *Set[T]) Empty() bool  { return s.m.Empty() }
func (s *Set[T]) Clear()       { s.m.Clear() }
func (s *Set[T]) Values() []T  { return s.m.Keys() }
func (s *Set[T]) Stats() Stats { return s.m.Stats() }

// Kth returns the member at 0-based position k in ascending order.
func (s *Set[T]) Kth(k int) (T, error) {
	e, err := s.m.Kth(k)
	return e.Key, err
}

// All returns an iterator over the members in ascending order.
func (s *Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for k := range s.m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Iterator returns a forward iterator positioned before the first member.
func (s *Set[T]) Iterator() *Iterator[T, struct{}] { return s.m.Iterator() }

func keysOf[K, V any](entries []Entry[K, V]) []K {
	if entries == nil {
		return nil
	}
	keys := make([]K, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}
