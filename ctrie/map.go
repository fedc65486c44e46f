/*
Copyright 2015 Workiva, LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ctrie implements Map, a concurrent, lock-free hash trie without
// indirection nodes (a "shallow Ctrie") supporting insertion, lookup,
// removal, conditional update, and an O(1) snapshot operation that yields
// an independently mutable copy of the map.
//
// This is a from-scratch realization of the node/status/helping protocol
// described by Axel Bonet's shallow-ctries paper, not a port of the
// original (I-node, GCAS/RDCSS) Ctrie design some implementations use.
package ctrie

import (
	"bytes"
	"fmt"

	"github.com/go-ctrie/shallowctrie/gatomic"
)

// Map implements a map that can be updated concurrently by multiple
// goroutines and also supports an O(1) amortized Snapshot operation.
type Map[Key, Value any] struct {
	root     *root[Key, Value]
	eqFunc   func(Key, Key) bool
	hashFunc func(Key) uint64
}

// New returns a new empty Map for a Key type that hashes itself.
func New[Key Hasher, Value any]() *Map[Key, Value] {
	return NewWithFuncs[Key, Value](func(k1, k2 Key) bool {
		return k1 == k2
	}, Key.Hash)
}

// NewWithFuncs is like New except that it uses explicit functions for
// comparison and hashing instead of relying on comparison and hashing on
// the Key type itself. A nil eqFunc or hashFunc falls back to a built-in
// implementation for string and []byte keys.
func NewWithFuncs[Key, Value any](
	eqFunc func(k1, k2 Key) bool,
	hashFunc func(Key) uint64,
) *Map[Key, Value] {
	if eqFunc == nil {
		var k Key
		switch (interface{}(k)).(type) {
		case string:
			eqFunc = interface{}(func(k1, k2 string) bool { return k1 == k2 }).(func(Key, Key) bool)
		case []byte:
			eqFunc = interface{}(bytes.Equal).(func(Key, Key) bool)
		default:
			panic(fmt.Errorf("ctrie: no equality function known for %T", k))
		}
	}
	if hashFunc == nil {
		var k Key
		switch (interface{}(k)).(type) {
		case string:
			hashFunc = interface{}(StringHash).(func(Key) uint64)
		case []byte:
			hashFunc = interface{}(BytesHash).(func(Key) uint64)
		default:
			panic(fmt.Errorf("ctrie: no hash function known for %T", k))
		}
	}
	gen := &generation{}
	return &Map[Key, Value]{
		root: &root[Key, Value]{
			child: branchChild(&branch[Key, Value]{gen: gen}),
			gen:   gen,
		},
		eqFunc:   eqFunc,
		hashFunc: hashFunc,
	}
}

func (m *Map[Key, Value]) hashOf(key Key) uint32 {
	return uint32(m.hashFunc(key))
}

// Get returns the value for key and reports whether it is present.
func (m *Map[Key, Value]) Get(key Key) (Value, bool) {
	e := &entry[Key, Value]{key: key, hash: m.hashOf(key)}
	for {
		r := gatomic.LoadPointer(&m.root)
		gen := gatomic.LoadPointer(&r.gen)
		cur := readChild[Key, Value](r, 0, gen)
		val, exists, ok := m.lookup(cur.branch, e, 0, gen)
		if ok {
			return val, exists
		}
	}
}

// Set sets the value for key, replacing any existing value, and returns
// the previous value (if any).
func (m *Map[Key, Value]) Set(key Key, value Value) (Value, bool) {
	e := &entry[Key, Value]{key: key, value: value, hash: m.hashOf(key)}
	for {
		r := gatomic.LoadPointer(&m.root)
		gen := gatomic.LoadPointer(&r.gen)
		cur := readChild[Key, Value](r, 0, gen)
		val, existed, ok := m.upsert(r, 0, cur.branch, e, 0, gen, upsertAlways)
		if ok {
			return val, existed
		}
	}
}

// PutIfAbsent installs value for key only if key is currently absent,
// returning the value already present (if any). It reports whether the
// installation happened.
func (m *Map[Key, Value]) PutIfAbsent(key Key, value Value) (Value, bool) {
	e := &entry[Key, Value]{key: key, value: value, hash: m.hashOf(key)}
	for {
		r := gatomic.LoadPointer(&m.root)
		gen := gatomic.LoadPointer(&r.gen)
		cur := readChild[Key, Value](r, 0, gen)
		val, existed, ok := m.upsert(r, 0, cur.branch, e, 0, gen, upsertIfAbsent)
		if ok {
			return val, !existed
		}
	}
}

// Replace sets the value for key to newValue only if key is currently
// present with a value equal to expected per valueEqual. It reports whether
// the replacement happened.
func (m *Map[Key, Value]) Replace(key Key, expected, newValue Value, valueEqual func(a, b Value) bool) bool {
	e := &entry[Key, Value]{key: key, value: newValue, hash: m.hashOf(key)}
	for {
		r := gatomic.LoadPointer(&m.root)
		gen := gatomic.LoadPointer(&r.gen)
		cur := readChild[Key, Value](r, 0, gen)
		_, outcome := m.conditionalUpsert(r, 0, cur.branch, e, 0, gen, expected, valueEqual)
		if outcome != condRetry {
			return outcome == condOK
		}
	}
}

// Delete removes key, returning the removed value (if any) and whether it
// was present.
func (m *Map[Key, Value]) Delete(key Key) (Value, bool) {
	e := &entry[Key, Value]{key: key, hash: m.hashOf(key)}
	for {
		r := gatomic.LoadPointer(&m.root)
		gen := gatomic.LoadPointer(&r.gen)
		cur := readChild[Key, Value](r, 0, gen)
		val, existed, ok := m.remove(r, 0, cur.branch, e, 0, gen, nil, false)
		if ok {
			return val, existed
		}
	}
}

// RemoveIf removes key only if its current value equals expected (per
// valueEqual), reporting whether it was removed.
func (m *Map[Key, Value]) RemoveIf(key Key, expected Value, valueEqual func(a, b Value) bool) bool {
	e := &entry[Key, Value]{key: key, value: expected, hash: m.hashOf(key)}
	for {
		r := gatomic.LoadPointer(&m.root)
		gen := gatomic.LoadPointer(&r.gen)
		cur := readChild[Key, Value](r, 0, gen)
		_, existed, ok := m.remove(r, 0, cur.branch, e, 0, gen, valueEqual, true)
		if ok {
			return existed
		}
	}
}

// Snapshot returns an O(1) amortized, fully independent copy of m: writes
// to the returned Map are invisible in m and vice versa, for keys written
// after the snapshot point.
func (m *Map[Key, Value]) Snapshot() *Map[Key, Value] {
	r := gatomic.LoadPointer(&m.root)
	frozen := snapshot(r)
	return &Map[Key, Value]{
		root:     frozen,
		eqFunc:   m.eqFunc,
		hashFunc: m.hashFunc,
	}
}

// Len returns the number of keys in the Map. This operation is O(n) and
// does not linearize against concurrent mutation; it walks a Snapshot so
// that concurrent writers cannot change the count mid-walk.
func (m *Map[Key, Value]) Len() int {
	snap := m.Snapshot()
	r := gatomic.LoadPointer(&snap.root)
	return countBranch(r.child.branch)
}

func countBranch[Key, Value any](b *branch[Key, Value]) int {
	n := 0
	for i := range b.children {
		c := gatomic.LoadPointer(&b.children[i])
		switch {
		case c.branch != nil:
			n += countBranch(c.branch)
		case c.single != nil:
			n++
		case c.collisions != nil:
			for ce := c.collisions.head; ce != nil; ce = ce.next {
				n++
			}
		}
	}
	return n
}

func zero[V any]() V {
	var v V
	return v
}
