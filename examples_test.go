package arenaskip

import (
	"fmt"
	"os"
)

func ExampleMap_Insert() {
	m, _ := NewOrdered[int, string]()
	m.Insert(1, "one")
	m.Insert(2, "two")
	created, _ := m.Insert(2, "deux")
	fmt.Println(m.Len(), created)
	// Output: 2 false
}

func ExampleMap_Get() {
	m, _ := NewOrdered[int, string]()
	m.Insert(1, "one")
	m.Insert(2, "two")
	val, ok := m.Get(1)
	fmt.Printf("%s %t\n", val, ok)
	// Output: one true
}

func ExampleMap_InsertOrAssign() {
	m, _ := NewOrdered[int, string]()
	m.Insert(1, "one")
	it, created, _ := m.InsertOrAssign(1, "uno")
	fmt.Println(it.Key(), it.Value(), created, m.Len())
	// Output: 1 uno false 1
}

func ExampleMap_Remove() {
	m, _ := NewOrdered[int, string]()
	m.Insert(1, "one")
	m.Insert(2, "two")
	fmt.Println(m.Remove(1), m.Remove(1))
	fmt.Println(m.Len())
	// Output: true false
	// 1
}

func ExampleMap_Iterator() {
	m, _ := NewOrdered[int, string]()
	m.Insert(3, "three")
	m.Insert(1, "one")
	m.Insert(2, "two")
	it := m.Iterator()
	for it.Next() {
		fmt.Printf("%d:%s ", it.Key(), it.Value())
	}
	fmt.Println()
	// Output: 1:one 2:two 3:three
}

func ExampleMap_SeekGE() {
	m, _ := NewOrdered[int, string]()
	m.Insert(1, "one")
	m.Insert(3, "three")
	m.Insert(5, "five")
	it := m.SeekGE(2)
	for it.Valid() {
		fmt.Printf("%d:%s ", it.Key(), it.Value())
		it.Next()
	}
	fmt.Println()
	// Output: 3:three 5:five
}

func ExampleMap_Range() {
	m, _ := NewOrdered[int, struct{}]()
	for _, k := range []int{5, 2, 8, 1} {
		m.Insert(k, struct{}{})
	}
	for _, e := range m.Range(1, 5) {
		fmt.Print(e.Key, " ")
	}
	fmt.Println()
	// Output: 1 2 5
}

func ExampleMap_Kth() {
	m, _ := NewOrdered[string, int]()
	for i, k := range []string{"fig", "apple", "cherry"} {
		m.Insert(k, i)
	}
	e, _ := m.Kth(1)
	fmt.Println(e.Key)
	_, err := m.Kth(3)
	fmt.Println(err)
	// Output: cherry
	// arenaskip: index out of range: index 3, size 3
}

func ExampleMap_Dump() {
	m, _ := NewOrdered[int, int](WithMaxLevel(0))
	for _, k := range []int{5, 2, 8, 1} {
		m.Insert(k, k)
	}
	m.Dump(os.Stdout)
	// Output: level  0: 1 2 5 8
}

func ExampleSet() {
	s, _ := NewOrderedSet[int]()
	s.BulkInsert([]int{4, 1, 3, 1})
	fmt.Println(s.Values(), s.Len())
	// Output: [1 3 4] 3
}
