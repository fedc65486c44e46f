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

import "hash/maphash"

var seed = maphash.MakeSeed()

// StringHash computes a 64-bit hash of a string using a process-wide
// maphash seed. Only the low bits are consumed per trie level; keys are
// expected to hash with enough entropy that divergence happens well before
// the trie bottoms out into a Collisions leaf.
func StringHash(key string) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(key)
	return h.Sum64()
}

// BytesHash computes a 64-bit hash of a byte slice using a process-wide
// maphash seed.
func BytesHash(key []byte) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.Write(key)
	return h.Sum64()
}

// String is a convenience wrapper adding Hash() to the builtin string type
// so it satisfies Hasher.
type String string

// Hash implements Hasher.
func (s String) Hash() uint64 { return StringHash(string(s)) }

// Hasher is satisfied by any comparable key type that knows how to hash
// itself. New requires this; NewWithFuncs accepts any Key and takes
// explicit hash/equality functions instead.
type Hasher interface {
	comparable
	Hash() uint64
}
