package ctrie

import "github.com/go-ctrie/shallowctrie/gatomic"

// readChild is the uniform read-with-refresh routine used at every descent.
// Given a container n (a Root or Branch), a slot index, and the generation
// gen the walk expects, it returns the child currently at that slot —
// lazily rewriting any Branch found there at a stale generation into a
// fresh copy tagged with gen first.
//
// Leaves carry no generation of their own and are returned as-is.
func readChild[Key, Value any](n parentNode[Key, Value], index int, gen *generation) *child[Key, Value] {
	for {
		c := gatomic.LoadPointer(n.slotPtr(index))
		if !isBranch(c) || c.branch.gen == gen {
			return c
		}
		refreshed := branchChild(c.branch.renewed(gen))
		// Attempt to install the refreshed copy via the ordinary Mutate
		// protocol; mutate() takes care of pinning the refreshed Branch's
		// status to Mutate before anyone else can observe it. Until the
		// CAS below resolves, any operation that reaches c through this
		// same stale path helps or loses the very same race.
		mutate(n, index, c, refreshed)
		// Whether this thread's attempt won or lost, re-read: either it
		// installed the fresh copy, or a concurrent refresh already did.
	}
}

// renewed returns a shallow clone of b tagged with gen, ready to be
// installed via the ordinary Mutate protocol. Branch children underneath
// are not eagerly copied: each Branch is refreshed at most once per
// generation per reachable path, lazily, on first touch.
func (b *branch[Key, Value]) renewed(gen *generation) *branch[Key, Value] {
	// The slot array itself must be a fresh copy — b and the renewed
	// Branch must be able to evolve independently after a snapshot, and
	// sharing the backing array would alias per-slot CAS between them.
	// The slot *contents* (sub-Branches, leaves) are left shared: they are
	// refreshed lazily, one touch at a time, by this same routine.
	children := make([]*child[Key, Value], len(b.children))
	copy(children, b.children)
	return &branch[Key, Value]{
		children: children,
		bitmap:   b.bitmap,
		gen:      gen,
	}
}
