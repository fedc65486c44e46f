package ctrie

// status is the tagged variant attached to every Branch and Root describing
// an in-flight mutation or snapshot. A nil *status represents Idle;
// otherwise exactly one of mutate or snap is non-nil. A tagged struct is
// used rather than an interface because the set of descriptor kinds is
// closed and fixed.
//
// Descriptor identity is reference identity throughout this package: two
// statuses, two mutateDescriptors or two snapDescriptors are never compared
// by value, only by pointer, and the protocol never interns or deduplicates
// them.
type status[Key, Value any] struct {
	mutate *mutateDescriptor[Key, Value]
	snap   *snapDescriptor[Key, Value]
}

// parentNode abstracts over Root and Branch, the two node kinds that ever
// act as the "parent" half of a (parent, index) pair in the mutation
// protocol. It exists purely so mutate.go's CAS sequence can be written
// once instead of once per container kind.
type parentNode[Key, Value any] interface {
	statusPtr() **status[Key, Value]
	slotPtr(index int) **child[Key, Value]
}

func (r *root[Key, Value]) statusPtr() **status[Key, Value]       { return &r.status }
func (r *root[Key, Value]) slotPtr(int) **child[Key, Value]       { return &r.child }
func (b *branch[Key, Value]) statusPtr() **status[Key, Value]     { return &b.status }
func (b *branch[Key, Value]) slotPtr(i int) **child[Key, Value]   { return &b.children[i] }

// complete drives whatever descriptor s carries to a terminal state. It is
// the dispatch point any thread uses to "help" a status it encounters that
// is neither nil (Idle) nor its own descriptor.
func complete[Key, Value any](s *status[Key, Value]) {
	switch {
	case s == nil:
		return
	case s.mutate != nil:
		completeMutate(s.mutate)
	case s.snap != nil:
		completeSnap(s.snap)
	default:
		panic("ctrie: status in an invalid state")
	}
}
