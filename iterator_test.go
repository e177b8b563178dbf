package arenaskip

import (
	"sync"
	"testing"
)

func TestIteratorNextTraversesElementsInOrder(t *testing.T) {
	m := newIntMap(t)

	for _, key := range []int{5, 1, 3} {
		mustInsert(t, m, key, key*10)
	}

	it := m.Iterator()

	var keys []int
	for it.Next() {
		k := it.Key()
		v := it.Value()
		keys = append(keys, k)
		if expected := k * 10; v != expected {
			t.Fatalf("expected value %d for key %d, got %d", expected, k, v)
		}
	}

	expectedKeys := []int{1, 3, 5}
	if len(keys) != len(expectedKeys) {
		t.Fatalf("expected %d keys from iterator, got %d", len(expectedKeys), len(keys))
	}
	for i, want := range expectedKeys {
		if keys[i] != want {
			t.Fatalf("expected key %d at position %d, got %d", want, i, keys[i])
		}
	}

	if it.Valid() {
		t.Fatalf("expected iterator to be invalid after exhaustion")
	}
}

func TestIteratorSeekGEPositionsCorrectly(t *testing.T) {
	m, err := NewOrdered[int, string]()
	if err != nil {
		t.Fatal(err)
	}

	mustInsert(t, m, 1, "one")
	mustInsert(t, m, 3, "three")
	mustInsert(t, m, 5, "five")

	it := m.Iterator()

	if !it.SeekGE(2) {
		t.Fatalf("expected SeekGE to locate key >= 2")
	}
	if got := it.Key(); got != 3 {
		t.Fatalf("expected key 3 after SeekGE, got %d", got)
	}
	if got := it.Value(); got != "three" {
		t.Fatalf("expected value 'three', got %q", got)
	}

	if !it.Next() {
		t.Fatalf("expected iterator to advance to next element")
	}
	if got := it.Key(); got != 5 {
		t.Fatalf("expected key 5 after Next, got %d", got)
	}

	if it.Next() {
		t.Fatalf("expected iterator to report exhaustion")
	}

	if it.SeekGE(6) {
		t.Fatalf("expected SeekGE beyond last key to report false")
	}
}

func TestIteratorSkipsLogicallyDeletedNodes(t *testing.T) {
	m := newIntMap(t)

	for i := 1; i <= 3; i++ {
		mustInsert(t, m, i, i)
	}
	logicallyDelete(t, m, 2)

	it := m.Iterator()
	if !it.Next() {
		t.Fatalf("expected iterator to yield first element")
	}
	if got := it.Key(); got != 1 {
		t.Fatalf("expected first key 1, got %d", got)
	}

	if !it.Next() {
		t.Fatalf("expected iterator to skip logically deleted node and continue")
	}
	if got := it.Key(); got != 3 {
		t.Fatalf("expected iterator to skip deleted key and yield 3, got %d", got)
	}

	if it.Next() {
		t.Fatalf("expected iterator to be exhausted after final element")
	}
}

func TestIteratorSeekGESkipsLogicallyDeletedNodes(t *testing.T) {
	m := newIntMap(t)

	mustInsert(t, m, 1, 1)
	mustInsert(t, m, 2, 2)
	mustInsert(t, m, 3, 3)
	logicallyDelete(t, m, 2)

	it := m.Iterator()
	if !it.SeekGE(2) {
		t.Fatalf("expected SeekGE to locate an element >= 2")
	}

	if got := it.Key(); got != 3 {
		t.Fatalf("expected SeekGE to skip deleted key and yield 3, got %d", got)
	}
}

func TestIteratorSkipsNodeDuringConcurrentRemove(t *testing.T) {
	m := newIntMap(t)

	mustInsert(t, m, 1, 1)
	mustInsert(t, m, 2, 2)

	cleared := make(chan struct{})
	resume := make(chan struct{})
	var once sync.Once

	afterLogicalDeleteHook = func(any) {
		once.Do(func() { close(cleared) })
		<-resume
	}
	defer func() { afterLogicalDeleteHook = nil }()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Remove(1)
	}()

	<-cleared

	it := m.Iterator()
	if !it.Next() {
		t.Fatalf("expected iterator to yield successor during removal")
	}
	if got := it.Key(); got != 2 {
		t.Fatalf("expected iterator to skip the key being removed, got %d", got)
	}

	if it.Next() {
		t.Fatalf("expected no additional elements during concurrent remove")
	}

	close(resume)
	wg.Wait()
}

func TestIteratorContinuesAfterCurrentEntryIsRecycled(t *testing.T) {
	m := newIntMap(t, WithWorkerCacheSize(0))

	for i := 1; i <= 4; i++ {
		mustInsert(t, m, i*10, i)
	}

	it := m.Find(20)
	if !it.Valid() {
		t.Fatalf("expected Find(20) to position the iterator")
	}

	if !m.Remove(20) {
		t.Fatalf("expected Remove(20) to succeed")
	}
	m.Compact()
	// The freed slot is reused by the next insert under a new generation.
	mustInsert(t, m, 5, 0)

	if got := it.Key(); got != 20 {
		t.Fatalf("expected iterator snapshot to keep key 20, got %d", got)
	}
	if !it.Next() {
		t.Fatalf("expected iterator to continue after a recycled entry")
	}
	if got := it.Key(); got != 30 {
		t.Fatalf("expected key 30 after the removed entry, got %d", got)
	}
}

func TestInsertOrAssignReturnsPositionedIterator(t *testing.T) {
	m := newIntMap(t)
	mustInsert(t, m, 1, 1)
	mustInsert(t, m, 3, 3)

	it, created, err := m.InsertOrAssign(2, 20)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatalf("expected key 2 to be created")
	}
	if it.Key() != 2 || it.Value() != 20 {
		t.Fatalf("unexpected iterator position %d:%d", it.Key(), it.Value())
	}
	if !it.Next() || it.Key() != 3 {
		t.Fatalf("expected iterator to advance to key 3")
	}
}
