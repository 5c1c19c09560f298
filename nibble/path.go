// Package nibble implements the nibble-path algebra used to address nodes
// in a Merkle Patricia trie: a logical sequence of 4-bit nibbles backed by
// a byte buffer plus a leading-skip offset.
package nibble

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned by At when the requested index falls outside
// the logical length of the path. It indicates a programming bug in the
// caller, not a data-level condition.
var ErrOutOfBounds = errors.New("nibble: index out of bounds")

// Path is an immutable view over a byte buffer, exposed as a sequence of
// nibbles with offset leading nibbles skipped. Two Paths referencing the
// same buffer with different offsets are independent value types; no
// operation on a Path mutates its own or another Path's backing buffer.
type Path struct {
	data   []byte
	offset int
}

// Empty is the zero-length path.
var Empty = Path{}

// Len returns the number of nibbles in the path.
func (p Path) Len() int {
	if len(p.data) == 0 {
		return 0
	}
	n := 2*len(p.data) - p.offset
	if n < 0 {
		return 0
	}
	return n
}

// At returns the nibble at logical index i.
func (p Path) At(i int) (byte, error) {
	if i < 0 || i >= p.Len() {
		return 0, fmt.Errorf("%w: index %d, length %d", ErrOutOfBounds, i, p.Len())
	}

	phys := p.offset + i
	b := p.data[phys/2]
	if phys%2 == 0 {
		return b >> 4, nil
	}
	return b & 0x0F, nil
}

// MustAt is like At but panics on an out-of-bounds index. It is meant for
// call sites that have already established i is in range, e.g. loops
// bounded by Len().
func (p Path) MustAt(i int) byte {
	n, err := p.At(i)
	if err != nil {
		panic(err)
	}
	return n
}

// Equal reports whether p and other hold the same sequence of nibbles.
func (p Path) Equal(other Path) bool {
	if p.Len() != other.Len() {
		return false
	}
	for i := 0; i < p.Len(); i++ {
		if p.MustAt(i) != other.MustAt(i) {
			return false
		}
	}
	return true
}

// StartsWith reports whether other is a prefix of p.
func (p Path) StartsWith(other Path) bool {
	if other.Len() > p.Len() {
		return false
	}
	for i := 0; i < other.Len(); i++ {
		if p.MustAt(i) != other.MustAt(i) {
			return false
		}
	}
	return true
}

// CommonPrefix returns the longest shared prefix of a and b as a freshly
// materialised Path. When the shared length is odd, the returned Path has
// offset 1 so its first byte's high nibble is unused.
func CommonPrefix(a, b Path) Path {
	max := a.Len()
	if b.Len() < max {
		max = b.Len()
	}

	i := 0
	for i < max && a.MustAt(i) == b.MustAt(i) {
		i++
	}

	nibbles := make([]byte, i)
	for j := 0; j < i; j++ {
		nibbles[j] = a.MustAt(j)
	}
	return pack(nibbles)
}

// Combine concatenates a and b into a newly materialised Path such that
// Combine(a, b).At(i) == a.At(i) for i < a.Len(), and
// Combine(a, b).At(i) == b.At(i - a.Len()) otherwise.
func Combine(a, b Path) Path {
	nibbles := make([]byte, a.Len()+b.Len())
	for i := 0; i < a.Len(); i++ {
		nibbles[i] = a.MustAt(i)
	}
	for i := 0; i < b.Len(); i++ {
		nibbles[a.Len()+i] = b.MustAt(i)
	}
	return pack(nibbles)
}

// Consume returns the tail of p with the leading n nibbles dropped. It
// never copies the backing buffer; it only advances the offset of the
// returned Path, so p itself remains a valid, unchanged view.
func (p Path) Consume(n int) Path {
	if n < 0 || n > p.Len() {
		panic(fmt.Errorf("nibble: consume %d exceeds length %d", n, p.Len()))
	}
	return Path{data: p.data, offset: p.offset + n}
}

// FromKey turns a raw byte-string key into its nibble-path form, high
// nibble first, with no leading skip.
func FromKey(key []byte) Path {
	return Path{data: key, offset: 0}
}

// Single returns the one-nibble Path holding nib.
func Single(nib byte) Path {
	return pack([]byte{nib})
}

// pack materialises a Path holding exactly the given nibbles, choosing
// offset 0 (even length) or offset 1 (odd length) so the buffer packs
// cleanly without a trailing partial byte.
func pack(nibbles []byte) Path {
	n := len(nibbles)
	if n == 0 {
		return Empty
	}

	if n%2 == 0 {
		data := make([]byte, n/2)
		for i := 0; i < len(data); i++ {
			data[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
		}
		return Path{data: data, offset: 0}
	}

	data := make([]byte, n/2+1)
	data[0] = nibbles[0] & 0x0F
	rest := nibbles[1:]
	for i := 0; i < len(rest)/2; i++ {
		data[1+i] = rest[2*i]<<4 | rest[2*i+1]
	}
	return Path{data: data, offset: 1}
}

// Encode emits the on-wire compact (hex-prefix) form of p: one prefix byte
// whose high nibble carries the parity and leaf/extension flags (with the
// first data nibble packed into its low half when the length is odd),
// followed by one byte per subsequent nibble pair.
func (p Path) Encode(isLeaf bool) []byte {
	n := p.Len()
	odd := n%2 == 1

	var prefix byte
	start := 0
	if odd {
		prefix = 0x10 | p.MustAt(0)
		start = 1
	}
	if isLeaf {
		prefix |= 0x20
	}

	out := make([]byte, 1, 1+(n-start)/2)
	out[0] = prefix
	for i := start; i < n; i += 2 {
		out = append(out, p.MustAt(i)<<4|p.MustAt(i+1))
	}
	return out
}

// DecodePath inverts Encode, recovering the Path and the leaf/extension
// flag. It reuses b as the backing buffer instead of copying it.
func DecodePath(b []byte) (path Path, isLeaf bool, err error) {
	if len(b) == 0 {
		return Empty, false, fmt.Errorf("nibble: empty compact path")
	}

	typeAndParity := b[0] >> 4
	isLeaf = typeAndParity&0x2 != 0
	odd := typeAndParity&0x1 != 0

	if odd {
		return Path{data: b, offset: 1}, isLeaf, nil
	}
	return Path{data: b, offset: 2}, isLeaf, nil
}

// Bytes returns the raw key bytes represented by p. It is only valid to
// call when p has an even logical length (i.e. it was built from, or
// represents, a whole byte string) — the common case being a fully
// consumed trie key.
func (p Path) Bytes() []byte {
	n := p.Len()
	out := make([]byte, 0, (n+1)/2)
	for i := 0; i+1 < n; i += 2 {
		out = append(out, p.MustAt(i)<<4|p.MustAt(i+1))
	}
	if n%2 == 1 {
		out = append(out, p.MustAt(n-1)<<4)
	}
	return out
}
