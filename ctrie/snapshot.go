package ctrie

import "github.com/go-ctrie/shallowctrie/gatomic"

// snapDescriptor is the Snap status object: it freezes a root's subtree
// into a new immutable Root handle and retargets the live Root to a new
// generation.
//
// liveRoot is carried alongside the generation fields so that any thread
// that encounters s purely by reading some Root's status (the helping path,
// via complete in status.go) can drive it to completion without separately
// being told which Root it belongs to.
type snapDescriptor[Key, Value any] struct {
	liveRoot   *root[Key, Value]
	oldGen     *generation
	newTrieGen *generation
	newSnapGen *generation

	// frozen is written exactly once: first writer wins via CAS from nil
	// to present.
	frozen *root[Key, Value]
}

// snapshot runs the freeze protocol against the live Root r, returning the
// frozen Root it publishes. When the initial CAS (step 1) fails it helps
// whatever descriptor currently occupies r's status, as mutate's fast path
// does, and then retries the CAS itself instead of reporting failure.
func snapshot[Key, Value any](r *root[Key, Value]) *root[Key, Value] {
	for {
		s := &snapDescriptor[Key, Value]{
			liveRoot:   r,
			oldGen:     gatomic.LoadPointer(&r.gen),
			newTrieGen: &generation{},
			newSnapGen: &generation{},
		}
		if gatomic.CompareAndSwapPointer(&r.status, (*status[Key, Value])(nil), &status[Key, Value]{snap: s}) {
			completeSnap(s)
			return s.frozen
		}
		complete(gatomic.LoadPointer(&r.status))
	}
}

// completeSnap is the idempotent completion routine that finishes freezing
// a Root once its status has been pinned to s.
func completeSnap[Key, Value any](s *snapDescriptor[Key, Value]) {
	r := s.liveRoot

	// (a) Read the shared subtree-root at the moment of the snap. It
	// cannot change while r.status == s, because every mutation requires
	// r.status to be Idle first.
	sharedChild := gatomic.LoadPointer(&r.child)

	// (b) Allocate a new Root sharing that child, tagged with newSnapGen,
	// and publish it — first writer wins.
	candidate := &root[Key, Value]{
		child: sharedChild,
		gen:   s.newSnapGen,
	}
	gatomic.CompareAndSwapPointer(&s.frozen, (*root[Key, Value])(nil), candidate)

	// (c) Retarget the live Root's generation.
	gatomic.CompareAndSwapPointer(&r.gen, s.oldGen, s.newTrieGen)

	// (d) Release the live Root back to Idle.
	if st := gatomic.LoadPointer(&r.status); st != nil && st.snap == s {
		gatomic.CompareAndSwapPointer(&r.status, st, nil)
	}
}
