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

package ctrie

import "math/bits"

const (
	// w is the number of hash bits consumed per level (2^w branches).
	w = 5

	// maxHashBits is the width of the hash space a walk can descend
	// through before it must fall back to a Collisions leaf.
	maxHashBits = 32
)

// generation demarcates snapshot epochs. It is a heap-allocated reference
// rather than an integer so that identity (not value) comparison is what
// matters, and so that it can never wrap around. The struct has a field so
// that two distinct zero-size generations are never accidentally placed at
// the same address.
type generation struct{ _ bool }

// entry is a single key/value association together with the hash computed
// for key at construction time.
type entry[Key, Value any] struct {
	key   Key
	value Value
	hash  uint32
}

// branch is a Branch node: an interior node of the trie holding up to 32
// children densely packed according to bitmap. Apart from Root, Branch is
// the only node kind with mutable fields; both status and every slot of
// children are modified exclusively through the CAS protocol in mutate.go.
type branch[Key, Value any] struct {
	// status records an in-flight mutation or snapshot pinned to this
	// Branch. A nil status means Idle.
	status *status[Key, Value]

	// children holds one *child per occupied logical slot, packed densely:
	// the physical index of logical slot s is popcount(bitmap &
	// ((1<<s)-1)). Each element is individually CAS'd; the slice itself is
	// never resized or reassigned after the Branch is constructed.
	children []*child[Key, Value]

	// bitmap and gen are fixed at construction (immutable).
	bitmap uint32
	gen    *generation
}

// single is a Single leaf: a published, deep-immutable node holding one
// key/value pair.
type single[Key, Value any] struct {
	e *entry[Key, Value]
}

// collisions is a Collisions leaf: a published, deep-immutable node holding
// every pair whose hash collided past maxHashBits. Entries are kept as a
// singly linked, persistent list; insertion order is not preserved across
// updates.
type collisions[Key, Value any] struct {
	head *collEntry[Key, Value]
}

type collEntry[Key, Value any] struct {
	e    *entry[Key, Value]
	next *collEntry[Key, Value]
}

// root is the Root node: the externally addressable entry point of a Map.
// One live Root exists per Map; additional, frozen Roots are produced by
// Snapshot and share structure with the live one on a copy-on-descent
// basis.
type root[Key, Value any] struct {
	status *status[Key, Value]
	// child always wraps a *branch; it is typed as *child for uniformity
	// with Branch's own slots, so that mutate.go's protocol code can treat
	// a Root and a Branch identically via the parentNode interface.
	child *child[Key, Value]
	gen   *generation
}

// child is the tagged union of the three node shapes (Branch, Single,
// Collisions) that may occupy a Branch slot or a Root's child pointer.
// Exactly one field is non-nil. A tagged struct is used instead of an open
// interface so the CAS helpers in gatomic can operate on **child directly;
// this is purely a mechanical choice, not a claim that the node kinds are
// closed against future extension.
type child[Key, Value any] struct {
	branch     *branch[Key, Value]
	single     *single[Key, Value]
	collisions *collisions[Key, Value]
}

func branchChild[Key, Value any](b *branch[Key, Value]) *child[Key, Value] {
	return &child[Key, Value]{branch: b}
}

func singleChild[Key, Value any](s *single[Key, Value]) *child[Key, Value] {
	return &child[Key, Value]{single: s}
}

func collisionsChild[Key, Value any](c *collisions[Key, Value]) *child[Key, Value] {
	return &child[Key, Value]{collisions: c}
}

// flagPos computes, for the hash bits at level lev, the logical-slot flag
// bit and its physical (dense) index within bmp.
func flagPos(hash uint32, lev uint, bmp uint32) (flag uint32, pos int) {
	idx := (hash >> lev) & 0x1f
	flag = uint32(1) << idx
	pos = bits.OnesCount32(bmp & (flag - 1))
	return flag, pos
}

// inserted returns a new Branch with br inserted at the slot for flag,
// tagged with gen. bitmap gains flag; the dense array grows by one.
func (b *branch[Key, Value]) inserted(pos int, flag uint32, br *child[Key, Value], gen *generation) *branch[Key, Value] {
	children := make([]*child[Key, Value], len(b.children)+1)
	copy(children, b.children[:pos])
	children[pos] = br
	copy(children[pos+1:], b.children[pos:])
	return &branch[Key, Value]{
		children: children,
		bitmap:   b.bitmap | flag,
		gen:      gen,
	}
}

// removed returns a new Branch with the slot at pos/flag removed. bitmap
// loses flag; the dense array shrinks by one.
func (b *branch[Key, Value]) removed(pos int, flag uint32, gen *generation) *branch[Key, Value] {
	children := make([]*child[Key, Value], len(b.children)-1)
	copy(children, b.children[:pos])
	copy(children[pos:], b.children[pos+1:])
	return &branch[Key, Value]{
		children: children,
		bitmap:   b.bitmap ^ flag,
		gen:      gen,
	}
}
