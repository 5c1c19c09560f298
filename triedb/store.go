// Package triedb adapts an opaque content-addressed blob store into the
// node-level resolve/persist operations the trie engine builds on.
package triedb

import (
	"errors"
	"fmt"

	"merkletrie/mpt/trienode"
	"merkletrie/storage"
)

// ErrStorageCorruption is returned by Resolve when a 32-byte reference has
// no corresponding entry in the backing store. Unlike a key-level miss at
// the trie layer, this indicates the backing store itself is inconsistent
// and is always fatal.
var ErrStorageCorruption = errors.New("triedb: referenced node missing from storage")

// Store resolves and persists trie nodes against a backing key-value
// store, keyed by the node's 32-byte hash reference. Inline references
// (encodings shorter than 32 bytes) never touch the backing store.
type Store struct {
	db storage.KeyValStore
}

// New wraps db as a node store.
func New(db storage.KeyValStore) *Store {
	return &Store{db: db}
}

// Resolve decodes the node ref points to. If ref is 32 bytes, its
// encoding is looked up in the backing store; a missing entry is
// reported as ErrStorageCorruption. Otherwise ref is treated as the
// node's own inline encoding.
func (s *Store) Resolve(ref trienode.Ref) (trienode.Node, error) {
	enc := []byte(ref)
	if ref.IsHash() {
		found, err := s.db.Get(enc)
		if err != nil {
			if errors.Is(err, storage.ErrKeyNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrStorageCorruption, ref)
			}
			return nil, fmt.Errorf("triedb: failed to read node %s: %w", ref, err)
		}
		enc = found
	}

	node, err := trienode.Decode(enc)
	if err != nil {
		return nil, fmt.Errorf("triedb: failed to decode node %s: %w", ref, err)
	}
	return node, nil
}

// Persist computes n's reference and, if it is a hash reference, writes
// the node's encoding under it. Persist is idempotent: persisting the
// same node twice writes the same key-value pair.
func (s *Store) Persist(n trienode.Node) (trienode.Ref, error) {
	ref, err := trienode.IntoReference(n)
	if err != nil {
		return nil, fmt.Errorf("triedb: failed to compute reference: %w", err)
	}

	if ref.IsHash() {
		enc, err := trienode.Encode(n)
		if err != nil {
			return nil, fmt.Errorf("triedb: failed to encode node: %w", err)
		}
		if err := s.db.Put([]byte(ref), enc); err != nil {
			return nil, fmt.Errorf("triedb: failed to write node %s: %w", ref, err)
		}
	}

	return ref, nil
}
