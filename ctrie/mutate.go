package ctrie

import "github.com/go-ctrie/shallowctrie/gatomic"

const (
	outcomePending = int32(iota)
	outcomeCommitted
	outcomeFailed
)

// mutateDescriptor is the Mutate status object: d = (parent, child,
// newChild, index). It records an in-flight single-slot installation and
// carries, via completeMutate, the code that drives it to a terminal state.
//
// A descriptor's success could in principle be inferred after the fact
// purely by re-reading state (parent.children[index] == newChild, or
// newChild's own status has moved past d) when newChild is a Branch. But a
// Single or Collisions newChild carries no status field at all, so there is
// nothing to infer from once the slot has moved again. d instead records
// its own resolution explicitly: outcomeCommitted is set as part of step 5,
// outcomeFailed as part of the lost-race short-circuit. For a Branch
// newChild this agrees with the inference rule (step 4 always clears
// newChild.status before step 5 runs); for a leaf newChild it is the only
// available signal.
type mutateDescriptor[Key, Value any] struct {
	parent   parentNode[Key, Value]
	child    *child[Key, Value]
	newChild *child[Key, Value]
	index    int
	outcome  int32
}

// isBranch reports whether c wraps a Branch (as opposed to a Single or
// Collisions leaf). Leaves have no status field and are always treated as
// Idle.
func isBranch[Key, Value any](c *child[Key, Value]) bool {
	return c != nil && c.branch != nil
}

// mutate performs the fast path: it tries to CAS parent's status from Idle
// to a fresh descriptor installing newChild in place of oldChild at index,
// then runs the descriptor to completion. If the initial CAS fails, it
// helps whatever descriptor currently occupies parent's status and reports
// failure — per the envelope contract, the caller retries the whole
// operation from the root rather than spinning on this parent.
func mutate[Key, Value any](parent parentNode[Key, Value], index int, oldChild, newChild *child[Key, Value]) bool {
	d := &mutateDescriptor[Key, Value]{
		parent:   parent,
		child:    oldChild,
		newChild: newChild,
		index:    index,
	}
	// A Branch newChild enters the trie already pinned to the descriptor
	// that is installing it; it is only transitioned to Idle once its
	// parent has adopted the pointer (step 4 below). This stops a reader
	// that glimpses newChild in the slot array mid-install from treating
	// it as settled before the install has actually finished.
	if isBranch(newChild) {
		gatomic.StorePointer(&newChild.branch.status, &status[Key, Value]{mutate: d})
	}
	pst := parent.statusPtr()
	if !gatomic.CompareAndSwapPointer(pst, (*status[Key, Value])(nil), &status[Key, Value]{mutate: d}) {
		complete(gatomic.LoadPointer(pst))
		return false
	}
	return completeMutate(d)
}

// completeMutate is the idempotent, total completion routine for a Mutate
// descriptor. Any thread that observes d (as the status of d.parent) may
// call this; it case-splits on the current (parent.status, child.status)
// pair and always eventually returns whether d committed.
func completeMutate[Key, Value any](d *mutateDescriptor[Key, Value]) bool {
	for {
		pst := gatomic.LoadPointer(d.parent.statusPtr())
		if pst == nil || pst.mutate != d {
			// (¬d, _): parent has already moved past d — d was resolved by
			// whichever thread drove it there.
			return gatomic.LoadInt32(&d.outcome) == outcomeCommitted
		}
		// parent.status == d.
		if isBranch(d.child) {
			cst := gatomic.LoadPointer(&d.child.branch.status)
			switch {
			case cst == nil:
				// (d, Idle-on-child): pin the child to d (step 2), then
				// re-enter to observe the post-pin state.
				gatomic.CompareAndSwapPointer(&d.child.branch.status, (*status[Key, Value])(nil), &status[Key, Value]{mutate: d})
				continue
			case cst.mutate == d:
				// (d, d): fall through to the commit steps below.
			default:
				// (d, other): a different descriptor owns child. If the
				// slot has already moved, we lost the race to install.
				// If other has already committed while child is still in
				// d's slot, other evicted child from another parent (a
				// Branch shared with another Root since a Snapshot); child
				// stays pinned to other for good, so d commits over it.
				// Otherwise help other to completion and re-enter.
				cur := gatomic.LoadPointer(d.parent.slotPtr(d.index))
				if cur != d.child {
					gatomic.CompareAndSwapInt32(&d.outcome, outcomePending, outcomeFailed)
					gatomic.CompareAndSwapPointer(d.parent.statusPtr(), pst, nil)
					return false
				}
				if cst.mutate != nil && gatomic.LoadInt32(&cst.mutate.outcome) == outcomeCommitted {
					break
				}
				complete[Key, Value](cst)
				continue
			}
		}
		// Steps 3, 4, 5 — each a CAS that tolerates having already
		// succeeded via a concurrent helper.
		gatomic.CompareAndSwapPointer(d.parent.slotPtr(d.index), d.child, d.newChild) // step 3
		if isBranch(d.newChild) {
			clearBranchStatus(d.newChild, d) // step 4
		}
		gatomic.CompareAndSwapInt32(&d.outcome, outcomePending, outcomeCommitted)
		gatomic.CompareAndSwapPointer(d.parent.statusPtr(), pst, nil) // step 5
		continue
	}
}

// clearBranchStatus clears c's status to Idle if (and only if) it is still
// pinned to exactly d, tolerating the case where a concurrent helper has
// already cleared it.
func clearBranchStatus[Key, Value any](c *child[Key, Value], d *mutateDescriptor[Key, Value]) {
	for {
		cur := gatomic.LoadPointer(&c.branch.status)
		if cur == nil || cur.mutate != d {
			return
		}
		if gatomic.CompareAndSwapPointer(&c.branch.status, cur, nil) {
			return
		}
	}
}
