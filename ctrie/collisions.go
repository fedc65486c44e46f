package ctrie

// lookup returns the value associated with key in the Collisions list, if
// any.
func (c *collisions[Key, Value]) lookup(key Key, eq func(Key, Key) bool) (Value, bool) {
	for ce := c.head; ce != nil; ce = ce.next {
		if eq(ce.e.key, key) {
			return ce.e.value, true
		}
	}
	return zero[Value](), false
}

// inserted returns a new Collisions list with e inserted, replacing any
// existing entry for e.key. Collisions is deep-immutable once published;
// inserted always builds a fresh list rather than mutating c.
func (c *collisions[Key, Value]) inserted(e *entry[Key, Value], eq func(Key, Key) bool) *collisions[Key, Value] {
	return &collisions[Key, Value]{
		head: &collEntry[Key, Value]{e: e, next: c.removedEntry(e.key, eq)},
	}
}

// removed returns a new Collisions list with the entry for key removed, if
// present.
func (c *collisions[Key, Value]) removed(key Key, eq func(Key, Key) bool) *collisions[Key, Value] {
	return &collisions[Key, Value]{head: c.removedEntry(key, eq)}
}

func (c *collisions[Key, Value]) removedEntry(key Key, eq func(Key, Key) bool) *collEntry[Key, Value] {
	if c == nil {
		return nil
	}
	return c.head.without(key, eq)
}

func (ce *collEntry[Key, Value]) without(key Key, eq func(Key, Key) bool) *collEntry[Key, Value] {
	if ce == nil {
		return nil
	}
	if eq(ce.e.key, key) {
		return ce.next
	}
	return &collEntry[Key, Value]{e: ce.e, next: ce.next.without(key, eq)}
}
