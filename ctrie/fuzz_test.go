package ctrie_test

import (
	"testing"

	fuzz "github.com/google/gofuzz"

	"github.com/go-ctrie/shallowctrie/ctrie"
)

// TestFuzzRandomKeysAgainstReferenceMap drives the Map through a long
// sequence of randomly generated Set/Delete/PutIfAbsent operations and
// checks every observation against a plain Go map kept in lockstep.
func TestFuzzRandomKeysAgainstReferenceMap(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 1)
	m := ctrie.NewWithFuncs[string, int](nil, ctrie.StringHash)
	reference := map[string]int{}

	var keys []string
	f.Fuzz(&keys)
	for len(keys) < 64 {
		var k string
		f.Fuzz(&k)
		keys = append(keys, k)
	}

	for round := 0; round < 2000; round++ {
		key := keys[round%len(keys)]
		var value int
		f.Fuzz(&value)

		switch round % 5 {
		case 0, 1, 2:
			m.Set(key, value)
			reference[key] = value
		case 3:
			_, existed := reference[key]
			_, installed := m.PutIfAbsent(key, value)
			if installed == existed {
				t.Fatalf("PutIfAbsent(%q) installed=%v, reference already has it=%v", key, installed, existed)
			}
			if !existed {
				reference[key] = value
			}
		case 4:
			refVal, existed := reference[key]
			val, ok := m.Delete(key)
			if ok != existed {
				t.Fatalf("Delete(%q) ok=%v, reference existed=%v", key, ok, existed)
			}
			if ok && val != refVal {
				t.Fatalf("Delete(%q) = %d, want %d", key, val, refVal)
			}
			delete(reference, key)
		}
	}

	for _, key := range keys {
		refVal, existed := reference[key]
		val, ok := m.Get(key)
		if ok != existed {
			t.Fatalf("Get(%q) ok=%v, want %v", key, ok, existed)
		}
		if existed && val != refVal {
			t.Fatalf("Get(%q) = %d, want %d", key, val, refVal)
		}
	}
	if m.Len() != len(reference) {
		t.Fatalf("Len() = %d, want %d", m.Len(), len(reference))
	}
}

// TestFuzzCollidingHashesStressesCollisionsLeaf forces every key through the
// same hash bucket so inserts and deletes exercise the Collisions leaf path
// instead of the ordinary Branch descent.
func TestFuzzCollidingHashesStressesCollisionsLeaf(t *testing.T) {
	f := fuzz.New().NilChance(0)
	m := ctrie.NewWithFuncs[string, int](nil, func(string) uint64 { return 7 })
	reference := map[string]int{}

	var keys []string
	for len(keys) < 40 {
		var k string
		f.Fuzz(&k)
		if k == "" {
			continue
		}
		keys = append(keys, k)
	}

	for i, key := range keys {
		m.Set(key, i)
		reference[key] = i
	}
	for key, want := range reference {
		got, ok := m.Get(key)
		if !ok || got != want {
			t.Fatalf("Get(%q) = (%d, %v), want (%d, true)", key, got, ok, want)
		}
	}

	for i, key := range keys {
		if i%2 == 0 {
			continue
		}
		m.Delete(key)
		delete(reference, key)
	}
	for key, want := range reference {
		got, ok := m.Get(key)
		if !ok || got != want {
			t.Fatalf("after deletes, Get(%q) = (%d, %v), want (%d, true)", key, got, ok, want)
		}
	}
	if m.Len() != len(reference) {
		t.Fatalf("Len() = %d, want %d", m.Len(), len(reference))
	}
}
