package ctrie

import "github.com/go-ctrie/shallowctrie/gatomic"

// upsertMode selects Set's (always overwrite) or PutIfAbsent's (only install
// when missing) behavior inside the shared upsert walk.
type upsertMode int

const (
	upsertAlways upsertMode = iota
	upsertIfAbsent
)

// condOutcome is conditionalUpsert's three-way result: condRetry asks the
// caller to reload the root and retry from scratch (a losing CAS race),
// condOK reports a successful conditional replace, and condMismatch reports
// that the key was absent or its current value didn't match what the caller
// expected.
type condOutcome int

const (
	condRetry condOutcome = iota
	condOK
	condMismatch
)

// lookup walks down from cur looking for e.key, refreshing stale Branches as
// it goes. The third return value is always true: readChild itself retries
// until a refresh race is resolved, so the walk never has to restart.
func (m *Map[Key, Value]) lookup(cur *branch[Key, Value], e *entry[Key, Value], lev uint, gen *generation) (Value, bool, bool) {
	flag, pos := flagPos(e.hash, lev, cur.bitmap)
	if cur.bitmap&flag == 0 {
		return zero[Value](), false, true
	}
	sub := readChild(cur, pos, gen)
	switch {
	case sub.branch != nil:
		return m.lookup(sub.branch, e, lev+w, gen)
	case sub.single != nil:
		if m.eqFunc(sub.single.e.key, e.key) {
			return sub.single.e.value, true, true
		}
		return zero[Value](), false, true
	case sub.collisions != nil:
		v, ok := sub.collisions.lookup(e.key, m.eqFunc)
		return v, ok, true
	default:
		panic("ctrie: map is in an invalid state")
	}
}

// upsert installs e into cur (or a descendant), growing the trie as needed.
// parentOfCur/idxOfCur identify cur's own slot, the CAS target used whenever
// cur's slot array itself must change shape (a free slot being claimed
// replaces the whole slot holding cur). Shape-preserving updates within
// cur's own array (replacing one leaf with another at the same position, or
// a Single diverging into a sub-Branch at that position) CAS directly on cur
// instead.
func (m *Map[Key, Value]) upsert(
	parentOfCur parentNode[Key, Value], idxOfCur int, cur *branch[Key, Value],
	e *entry[Key, Value], lev uint, gen *generation, mode upsertMode,
) (Value, bool, bool) {
	flag, pos := flagPos(e.hash, lev, cur.bitmap)
	if cur.bitmap&flag == 0 {
		// The CAS must name the exact *child currently in cur's slot.
		old := gatomic.LoadPointer(parentOfCur.slotPtr(idxOfCur))
		if old.branch != cur {
			return zero[Value](), false, false
		}
		grown := cur.inserted(pos, flag, singleChild(&single[Key, Value]{e: e}), gen)
		if !mutate(parentOfCur, idxOfCur, old, branchChild(grown)) {
			return zero[Value](), false, false
		}
		return zero[Value](), false, true
	}

	sub := readChild(cur, pos, gen)
	switch {
	case sub.branch != nil:
		return m.upsert(cur, pos, sub.branch, e, lev+w, gen, mode)
	case sub.single != nil:
		sn := sub.single
		if m.eqFunc(sn.e.key, e.key) {
			if mode == upsertIfAbsent {
				return sn.e.value, true, true
			}
			if !mutate(cur, pos, sub, singleChild(&single[Key, Value]{e: e})) {
				return zero[Value](), false, false
			}
			return sn.e.value, true, true
		}
		diverged := expand(sn.e, e, lev+w, gen)
		if !mutate(cur, pos, sub, diverged) {
			return zero[Value](), false, false
		}
		return zero[Value](), false, true
	case sub.collisions != nil:
		col := sub.collisions
		if mode == upsertIfAbsent {
			if v, ok := col.lookup(e.key, m.eqFunc); ok {
				return v, true, true
			}
		}
		prev, existed := col.lookup(e.key, m.eqFunc)
		if !mutate(cur, pos, sub, collisionsChild(col.inserted(e, m.eqFunc))) {
			return zero[Value](), false, false
		}
		return prev, existed, true
	default:
		panic("ctrie: map is in an invalid state")
	}
}

// conditionalUpsert replaces e.key's value with e.value only if its current
// value equals expected per valueEqual, per the Replace operation.
func (m *Map[Key, Value]) conditionalUpsert(
	parentOfCur parentNode[Key, Value], idxOfCur int, cur *branch[Key, Value],
	e *entry[Key, Value], lev uint, gen *generation,
	expected Value, valueEqual func(a, b Value) bool,
) (Value, condOutcome) {
	flag, pos := flagPos(e.hash, lev, cur.bitmap)
	if cur.bitmap&flag == 0 {
		return zero[Value](), condMismatch
	}
	sub := readChild(cur, pos, gen)
	switch {
	case sub.branch != nil:
		return m.conditionalUpsert(cur, pos, sub.branch, e, lev+w, gen, expected, valueEqual)
	case sub.single != nil:
		sn := sub.single
		if !m.eqFunc(sn.e.key, e.key) || !valueEqual(sn.e.value, expected) {
			return zero[Value](), condMismatch
		}
		if !mutate(cur, pos, sub, singleChild(&single[Key, Value]{e: e})) {
			return zero[Value](), condRetry
		}
		return sn.e.value, condOK
	case sub.collisions != nil:
		col := sub.collisions
		v, ok := col.lookup(e.key, m.eqFunc)
		if !ok || !valueEqual(v, expected) {
			return zero[Value](), condMismatch
		}
		if !mutate(cur, pos, sub, collisionsChild(col.inserted(e, m.eqFunc))) {
			return zero[Value](), condRetry
		}
		return v, condOK
	default:
		panic("ctrie: map is in an invalid state")
	}
}

// remove deletes e.key from cur (or a descendant). When conditional is true,
// the removal only proceeds if the current value equals e.value per
// valueEqual; valueEqual may be nil when conditional is false.
func (m *Map[Key, Value]) remove(
	parentOfCur parentNode[Key, Value], idxOfCur int, cur *branch[Key, Value],
	e *entry[Key, Value], lev uint, gen *generation,
	valueEqual func(a, b Value) bool, conditional bool,
) (Value, bool, bool) {
	flag, pos := flagPos(e.hash, lev, cur.bitmap)
	if cur.bitmap&flag == 0 {
		return zero[Value](), false, true
	}
	sub := readChild(cur, pos, gen)
	switch {
	case sub.branch != nil:
		return m.remove(cur, pos, sub.branch, e, lev+w, gen, valueEqual, conditional)
	case sub.single != nil:
		sn := sub.single
		if !m.eqFunc(sn.e.key, e.key) {
			return zero[Value](), false, true
		}
		if conditional && !valueEqual(sn.e.value, e.value) {
			return zero[Value](), false, true
		}
		// The CAS must name the exact *child currently in cur's slot.
		old := gatomic.LoadPointer(parentOfCur.slotPtr(idxOfCur))
		if old.branch != cur {
			return zero[Value](), false, false
		}
		shrunk := cur.removed(pos, flag, gen)
		newChild := branchChild(shrunk)
		if lev > 0 && len(shrunk.children) == 1 && shrunk.children[0].single != nil {
			// A Branch with exactly one leaf child left, below the top
			// level, contracts down to that leaf directly.
			newChild = shrunk.children[0]
		}
		if !mutate(parentOfCur, idxOfCur, old, newChild) {
			return zero[Value](), false, false
		}
		return sn.e.value, true, true
	case sub.collisions != nil:
		col := sub.collisions
		v, existed := col.lookup(e.key, m.eqFunc)
		if !existed {
			return zero[Value](), false, true
		}
		if conditional && !valueEqual(v, e.value) {
			return zero[Value](), false, true
		}
		remaining := col.removed(e.key, m.eqFunc)
		var newChild *child[Key, Value]
		if remaining.head != nil && remaining.head.next == nil {
			newChild = singleChild(&single[Key, Value]{e: remaining.head.e})
		} else {
			newChild = collisionsChild(remaining)
		}
		if !mutate(cur, pos, sub, newChild) {
			return zero[Value](), false, false
		}
		return v, true, true
	default:
		panic("ctrie: map is in an invalid state")
	}
}

// expand builds the replacement for a slot where two entries, x already
// resident and y newly arriving, hash to the same position at the level one
// above lev. It recurses level by level until their hashes diverge, and
// falls back to a Collisions leaf once the hash is fully exhausted.
func expand[Key, Value any](x, y *entry[Key, Value], lev uint, gen *generation) *child[Key, Value] {
	if lev >= maxHashBits {
		return collisionsChild(&collisions[Key, Value]{
			head: &collEntry[Key, Value]{e: y, next: &collEntry[Key, Value]{e: x}},
		})
	}
	xFlag, _ := flagPos(x.hash, lev, 0)
	yFlag, _ := flagPos(y.hash, lev, 0)
	bitmap := xFlag | yFlag
	if xFlag == yFlag {
		return branchChild(&branch[Key, Value]{
			children: []*child[Key, Value]{expand(x, y, lev+w, gen)},
			bitmap:   bitmap,
			gen:      gen,
		})
	}
	children := []*child[Key, Value]{singleChild(&single[Key, Value]{e: x}), singleChild(&single[Key, Value]{e: y})}
	if xFlag > yFlag {
		children[0], children[1] = children[1], children[0]
	}
	return branchChild(&branch[Key, Value]{children: children, bitmap: bitmap, gen: gen})
}
