// Package trienode defines the three node shapes of a Merkle Patricia
// trie and their RLP codec.
package trienode

import (
	"encoding/hex"
	"fmt"

	"merkletrie/nibble"
)

// Ref is a reference to a node: either the node's raw RLP encoding, when
// that encoding is shorter than 32 bytes (an "inline" reference), or the
// 32-byte Keccak-256 digest of the encoding (a "hashed" reference). The
// empty Ref denotes "no reference".
type Ref []byte

// IsEmpty reports whether r denotes "no reference".
func (r Ref) IsEmpty() bool { return len(r) == 0 }

// IsHash reports whether r is a 32-byte hash reference, as opposed to an
// inline encoding.
func (r Ref) IsHash() bool { return len(r) == 32 }

func (r Ref) String() string {
	if r.IsEmpty() {
		return "<empty>"
	}
	return hex.EncodeToString(r)
}

// Node is the tagged union of the three node shapes a Merkle Patricia
// trie is built from.
type Node interface {
	isNode()
	String() string
}

// Leaf is a terminal node carrying the remaining key suffix and the
// value associated with the key that ends there.
type Leaf struct {
	Path  nibble.Path
	Value []byte
}

// Extension is a non-terminal node carrying a shared, non-empty key
// segment and a reference to exactly one child, which always resolves to
// a Branch.
type Extension struct {
	Path nibble.Path
	Next Ref
}

// Branch is a 16-way fan-out on a single nibble. It may additionally
// carry a value for keys that end exactly at this position. An empty
// slot is represented by the empty Ref.
type Branch struct {
	Slots [16]Ref
	Value []byte
}

func (Leaf) isNode()      {}
func (Extension) isNode() {}
func (Branch) isNode()    {}

func (l Leaf) String() string {
	return fmt.Sprintf("Leaf{path: %d nibbles, value: %d bytes}", l.Path.Len(), len(l.Value))
}

func (e Extension) String() string {
	return fmt.Sprintf("Extension{path: %d nibbles, next: %s}", e.Path.Len(), e.Next)
}

func (b Branch) String() string {
	used := 0
	for _, s := range b.Slots {
		if !s.IsEmpty() {
			used++
		}
	}
	return fmt.Sprintf("Branch{slots used: %d, value: %d bytes}", used, len(b.Value))
}

// NonEmptySlotCount returns how many of the branch's 16 slots hold a
// reference.
func (b Branch) NonEmptySlotCount() int {
	n := 0
	for _, s := range b.Slots {
		if !s.IsEmpty() {
			n++
		}
	}
	return n
}

// HasValue reports whether the branch carries a value of its own.
func (b Branch) HasValue() bool { return len(b.Value) > 0 }
