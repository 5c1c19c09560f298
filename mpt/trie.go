// Package mpt implements a Merkle Patricia trie: a key-value map whose
// root reference commits to the entire contents, bit-exact with
// Ethereum's trie encoding.
package mpt

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"merkletrie/internal/log"
	"merkletrie/mpt/trienode"
	"merkletrie/nibble"
)

// Store resolves and persists trie nodes by reference. *triedb.Store
// satisfies this interface.
type Store interface {
	Resolve(ref trienode.Ref) (trienode.Node, error)
	Persist(n trienode.Node) (trienode.Ref, error)
}

// Trie is a Merkle Patricia trie over an externally owned Store. A Trie
// is not safe for concurrent use; distinct Trie instances may safely
// share a read-only Store.
type Trie struct {
	store  Store
	root   trienode.Ref
	secure bool
	log    log.Logger
}

// Open returns a Trie backed by store, rooted at root. An empty root
// denotes an empty trie. When secure is true, every key is replaced by
// its Keccak-256 digest before traversal.
func Open(store Store, root trienode.Ref, secure bool, logger log.Logger) *Trie {
	return &Trie{
		store:  store,
		root:   root,
		secure: secure,
		log:    logger.With("component", "mpt"),
	}
}

// Root returns the trie's current root reference, which may be an
// inline encoding rather than a hash.
func (t *Trie) Root() trienode.Ref {
	return t.root
}

// RootHash returns the 32-byte digest committing to the trie's current
// contents, regardless of whether the root reference is itself inline.
func (t *Trie) RootHash() []byte {
	if t.root.IsEmpty() {
		return types.EmptyRootHash.Bytes()
	}
	if t.root.IsHash() {
		return []byte(t.root)
	}
	return crypto.Keccak256(t.root)
}

// Get returns the value stored under key, or ErrKeyNotFound if no such
// entry exists.
func (t *Trie) Get(key []byte) ([]byte, error) {
	path := nibble.FromKey(t.transformKey(key))
	return t.get(t.root, path)
}

func (t *Trie) get(ref trienode.Ref, path nibble.Path) ([]byte, error) {
	if ref.IsEmpty() {
		return nil, ErrKeyNotFound
	}

	node, err := t.store.Resolve(ref)
	if err != nil {
		return nil, err
	}

	switch n := node.(type) {
	case trienode.Leaf:
		if !n.Path.Equal(path) {
			return nil, ErrKeyNotFound
		}
		return n.Value, nil

	case trienode.Extension:
		if !path.StartsWith(n.Path) {
			return nil, ErrKeyNotFound
		}
		return t.get(n.Next, path.Consume(n.Path.Len()))

	case trienode.Branch:
		if path.Len() == 0 {
			if !n.HasValue() {
				return nil, ErrKeyNotFound
			}
			return n.Value, nil
		}
		slot := path.MustAt(0)
		return t.get(n.Slots[slot], path.Consume(1))

	default:
		return nil, fmt.Errorf("mpt: unknown node type %T", node)
	}
}

// Update inserts or replaces the value stored under key. value must be
// non-empty; to remove a key, call Delete.
func (t *Trie) Update(key, value []byte) error {
	if len(value) == 0 {
		return ErrEmptyValue
	}

	path := nibble.FromKey(t.transformKey(key))
	ref, err := t.insert(t.root, path, value)
	if err != nil {
		return err
	}

	t.root = ref
	return nil
}

func (t *Trie) insert(ref trienode.Ref, path nibble.Path, value []byte) (trienode.Ref, error) {
	if ref.IsEmpty() {
		return t.store.Persist(trienode.Leaf{Path: path, Value: value})
	}

	node, err := t.store.Resolve(ref)
	if err != nil {
		return nil, err
	}

	switch n := node.(type) {
	case trienode.Leaf:
		return t.insertIntoLeaf(n, path, value)
	case trienode.Extension:
		return t.insertIntoExtension(n, path, value)
	case trienode.Branch:
		return t.insertIntoBranch(n, path, value)
	default:
		return nil, fmt.Errorf("mpt: unknown node type %T", node)
	}
}

func (t *Trie) insertIntoLeaf(n trienode.Leaf, path nibble.Path, value []byte) (trienode.Ref, error) {
	if n.Path.Equal(path) {
		t.log.Debug("replace leaf value", "path", path.Len())
		return t.store.Persist(trienode.Leaf{Path: path, Value: value})
	}

	cp := nibble.CommonPrefix(path, n.Path)
	branchRef, err := t.splitIntoBranch(cp, path, value, n.Path, n.Value)
	if err != nil {
		return nil, err
	}
	return t.wrapInExtension(cp, branchRef)
}

func (t *Trie) insertIntoExtension(n trienode.Extension, path nibble.Path, value []byte) (trienode.Ref, error) {
	if path.StartsWith(n.Path) {
		childRef, err := t.insert(n.Next, path.Consume(n.Path.Len()), value)
		if err != nil {
			return nil, err
		}
		return t.store.Persist(trienode.Extension{Path: n.Path, Next: childRef})
	}

	cp := nibble.CommonPrefix(path, n.Path)
	remainingPath := path.Consume(cp.Len())
	remainingExt := n.Path.Consume(cp.Len())

	var branch trienode.Branch
	if remainingPath.Len() == 0 {
		branch.Value = value
	} else {
		leafRef, err := t.store.Persist(trienode.Leaf{Path: remainingPath.Consume(1), Value: value})
		if err != nil {
			return nil, err
		}
		branch.Slots[remainingPath.MustAt(0)] = leafRef
	}

	var extChildRef trienode.Ref
	if remainingExt.Len() == 1 {
		extChildRef = n.Next
	} else {
		ref, err := t.store.Persist(trienode.Extension{Path: remainingExt.Consume(1), Next: n.Next})
		if err != nil {
			return nil, err
		}
		extChildRef = ref
	}
	branch.Slots[remainingExt.MustAt(0)] = extChildRef

	branchRef, err := t.store.Persist(branch)
	if err != nil {
		return nil, err
	}
	return t.wrapInExtension(cp, branchRef)
}

func (t *Trie) insertIntoBranch(n trienode.Branch, path nibble.Path, value []byte) (trienode.Ref, error) {
	if path.Len() == 0 {
		n.Value = value
		return t.store.Persist(n)
	}

	slot := path.MustAt(0)
	childRef, err := t.insert(n.Slots[slot], path.Consume(1), value)
	if err != nil {
		return nil, err
	}
	n.Slots[slot] = childRef
	return t.store.Persist(n)
}

// splitIntoBranch builds the Branch that results from two paths
// diverging after their common prefix cp, which it strips from both
// full paths itself: aPath/aValue is the newly inserted entry,
// bPath/bValue the pre-existing one.
func (t *Trie) splitIntoBranch(cp nibble.Path, aPath nibble.Path, aValue []byte, bPath nibble.Path, bValue []byte) (trienode.Ref, error) {
	a := aPath.Consume(cp.Len())
	b := bPath.Consume(cp.Len())

	var branch trienode.Branch
	switch {
	case a.Len() == 0:
		branch.Value = aValue
	case b.Len() == 0:
		branch.Value = bValue
	}

	if a.Len() > 0 {
		ref, err := t.store.Persist(trienode.Leaf{Path: a.Consume(1), Value: aValue})
		if err != nil {
			return nil, err
		}
		branch.Slots[a.MustAt(0)] = ref
	}
	if b.Len() > 0 {
		ref, err := t.store.Persist(trienode.Leaf{Path: b.Consume(1), Value: bValue})
		if err != nil {
			return nil, err
		}
		branch.Slots[b.MustAt(0)] = ref
	}

	return t.store.Persist(branch)
}

// wrapInExtension wraps ref in an Extension over prefix, unless prefix
// is empty, in which case ref is returned unwrapped.
func (t *Trie) wrapInExtension(prefix nibble.Path, ref trienode.Ref) (trienode.Ref, error) {
	if prefix.Len() == 0 {
		return ref, nil
	}
	return t.store.Persist(trienode.Extension{Path: prefix, Next: ref})
}

// transformKey applies the secure-mode key transformation, if enabled.
func (t *Trie) transformKey(key []byte) []byte {
	if !t.secure {
		return key
	}
	return crypto.Keccak256(key)
}
