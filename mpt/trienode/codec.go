package trienode

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"merkletrie/nibble"
)

// ErrDecode is returned when a node's RLP encoding is malformed or has an
// unexpected list arity. It is fatal for the operation in progress.
var ErrDecode = errors.New("trienode: malformed node encoding")

const (
	shortNodeItems = 2  // Leaf or Extension: [path, value-or-next]
	fullNodeItems  = 17 // Branch: 16 slots + value
)

// Encode produces the canonical RLP encoding of n. For Leaf and Extension
// this is a 2-item list; for Branch, a 17-item list. Inline child
// references are embedded as nested lists, hashed references as 32-byte
// strings, and empty slots as the empty string.
func Encode(n Node) ([]byte, error) {
	switch v := n.(type) {
	case Leaf:
		return rlp.EncodeToBytes([]interface{}{v.Path.Encode(true), v.Value})
	case Extension:
		return rlp.EncodeToBytes([]interface{}{v.Path.Encode(false), refElement(v.Next)})
	case Branch:
		items := make([]interface{}, fullNodeItems)
		for i, slot := range v.Slots {
			items[i] = refElement(slot)
		}
		items[fullNodeItems-1] = v.Value
		return rlp.EncodeToBytes(items)
	default:
		return nil, fmt.Errorf("trienode: unknown node type %T", n)
	}
}

// Decode inverts Encode, resolving the 2-vs-17 item list ambiguity and the
// Leaf-vs-Extension flag carried in the path's compact encoding.
func Decode(data []byte) (Node, error) {
	var items []interface{}
	if err := rlp.DecodeBytes(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch len(items) {
	case shortNodeItems:
		return decodeShortNode(items)
	case fullNodeItems:
		return decodeBranchNode(items)
	default:
		return nil, fmt.Errorf("%w: unexpected list length %d", ErrDecode, len(items))
	}
}

func decodeShortNode(items []interface{}) (Node, error) {
	compact, ok := items[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: short node path is not a byte string", ErrDecode)
	}

	path, isLeaf, err := nibble.DecodePath(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if isLeaf {
		value, ok := items[1].([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: leaf value is not a byte string", ErrDecode)
		}
		return Leaf{Path: path, Value: value}, nil
	}

	next, err := decodeRefElement(items[1])
	if err != nil {
		return nil, fmt.Errorf("%w: extension child: %v", ErrDecode, err)
	}
	return Extension{Path: path, Next: next}, nil
}

func decodeBranchNode(items []interface{}) (Node, error) {
	var b Branch
	for i := 0; i < fullNodeItems-1; i++ {
		ref, err := decodeRefElement(items[i])
		if err != nil {
			return nil, fmt.Errorf("%w: branch slot %d: %v", ErrDecode, i, err)
		}
		b.Slots[i] = ref
	}

	value, ok := items[fullNodeItems-1].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: branch value is not a byte string", ErrDecode)
	}
	b.Value = value

	return b, nil
}

// refElement converts a Ref to the RLP element used to represent it on
// the wire: the empty string for an empty Ref, a 32-byte string for a
// hashed Ref, or the reference's own bytes emitted raw (so they are
// re-parsed as a nested list) for an inline Ref.
func refElement(r Ref) interface{} {
	switch {
	case r.IsEmpty():
		return []byte{}
	case r.IsHash():
		return []byte(r)
	default:
		return rlp.RawValue(r)
	}
}

// decodeRefElement inverts refElement. A nested list (received because
// the child's reference was inline) is re-encoded to its canonical RLP
// bytes so that, from here on, the engine only ever deals with
// references as byte strings.
func decodeRefElement(v interface{}) (Ref, error) {
	switch t := v.(type) {
	case []byte:
		if len(t) == 0 {
			return Ref{}, nil
		}
		return Ref(t), nil
	case []interface{}:
		reencoded, err := rlp.EncodeToBytes(t)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode inline reference: %w", err)
		}
		return Ref(reencoded), nil
	default:
		return nil, fmt.Errorf("unexpected RLP element type %T", v)
	}
}

// IntoReference computes the reference for n: the encoding itself if
// shorter than 32 bytes, otherwise the Keccak-256 digest of the encoding.
func IntoReference(n Node) (Ref, error) {
	enc, err := Encode(n)
	if err != nil {
		return nil, err
	}
	if len(enc) < 32 {
		return Ref(enc), nil
	}
	return Ref(crypto.Keccak256(enc)), nil
}
