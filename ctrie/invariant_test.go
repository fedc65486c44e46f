package ctrie

import (
	"math/bits"
	"strconv"
	"testing"

	"github.com/go-ctrie/shallowctrie/gatomic"
)

// checkBranchShape walks a quiesced subtree (no operation in flight)
// verifying the structural properties every Branch must hold: the bitmap's
// population count matches the dense children array, and every Collisions
// leaf holds at least one entry. A Branch at generation gen must be Idle; a
// Branch at another generation is shared with another Root since a
// Snapshot and may stay pinned to the Mutate that refreshed it there.
func checkBranchShape[Key, Value any](t *testing.T, b *branch[Key, Value], gen *generation) {
	t.Helper()
	if b.status != nil && b.gen == gen {
		t.Errorf("branch has non-Idle status %+v outside of an in-flight operation", b.status)
	}
	if got, want := bits.OnesCount32(b.bitmap), len(b.children); got != want {
		t.Errorf("bitmap has %d bits set but children has %d entries", got, want)
	}
	for _, c := range b.children {
		if c == nil {
			t.Errorf("nil child pointer in a Branch's dense array")
			continue
		}
		switch {
		case c.branch != nil:
			checkBranchShape(t, c.branch, gen)
		case c.single != nil:
			// Leaves carry no generation or status of their own.
		case c.collisions != nil:
			if c.collisions.head == nil {
				t.Errorf("Collisions leaf with no entries")
			}
		default:
			t.Errorf("child with no populated variant")
		}
	}
}

// checkBranchInvariants additionally requires every branch in the subtree to
// share one generation. That only holds for a trie that has never been
// snapshotted: after a Snapshot, only the paths actually touched since are
// refreshed to the new generation, so untouched branches keep the old one.
func checkBranchInvariants[Key, Value any](t *testing.T, b *branch[Key, Value], gen *generation) {
	t.Helper()
	checkBranchShape(t, b, gen)
	var walk func(b *branch[Key, Value])
	walk = func(b *branch[Key, Value]) {
		if b.gen != gen {
			t.Errorf("branch generation does not match the subtree's expected generation")
		}
		for _, c := range b.children {
			if c != nil && c.branch != nil {
				walk(c.branch)
			}
		}
	}
	walk(b)
}

func TestStructuralInvariantsAfterMutation(t *testing.T) {
	m := NewWithFuncs[string, int](nil, StringHash)
	for i := 0; i < 300; i++ {
		m.Set(strconv.Itoa(i), i)
	}
	for i := 0; i < 150; i++ {
		m.Delete(strconv.Itoa(i))
	}

	r := gatomic.LoadPointer(&m.root)
	if r.status != nil {
		t.Errorf("root has non-Idle status %+v after all operations completed", r.status)
	}
	checkBranchInvariants(t, r.child.branch, r.gen)
}

func TestStructuralInvariantsAfterSnapshot(t *testing.T) {
	m := NewWithFuncs[string, int](nil, StringHash)
	for i := 0; i < 100; i++ {
		m.Set(strconv.Itoa(i), i)
	}

	snap := m.Snapshot()
	for i := 100; i < 200; i++ {
		m.Set(strconv.Itoa(i), i)
	}
	for i := 0; i < 50; i++ {
		snap.Set("snap-only-"+strconv.Itoa(i), i)
	}

	// Only shape is checked here, not a uniform generation: post-snapshot,
	// each side only refreshes the branches its own subsequent writes touch,
	// and a stale Branch the other side refreshed stays pinned.
	liveRoot := gatomic.LoadPointer(&m.root)
	checkBranchShape(t, liveRoot.child.branch, liveRoot.gen)

	snapRoot := gatomic.LoadPointer(&snap.root)
	checkBranchShape(t, snapRoot.child.branch, snapRoot.gen)

	if liveRoot.gen == snapRoot.gen {
		t.Errorf("live and frozen roots must carry distinct generations after a snapshot")
	}
}

func TestContractionCollapsesSingleChildBranches(t *testing.T) {
	m := NewWithFuncs[string, int](nil, func(s string) uint64 {
		// "a" and "b" share a slot at level 0 (forcing a sub-Branch to
		// hold both) but diverge at level 1, so removing "b" leaves that
		// sub-Branch with exactly one leaf child, below the top level.
		if s == "a" {
			return 0
		}
		return 1 << 5
	})
	m.Set("a", 1)
	m.Set("b", 2)
	m.Delete("b")

	val, ok := m.Get("a")
	if !ok || val != 1 {
		t.Fatalf("Get(a) = (%d, %v), want (1, true)", val, ok)
	}

	r := gatomic.LoadPointer(&m.root)
	checkBranchInvariants(t, r.child.branch, r.gen)
}
