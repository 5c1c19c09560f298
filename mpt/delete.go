package mpt

import (
	"fmt"

	"merkletrie/mpt/trienode"
	"merkletrie/nibble"
)

// deleteSignal classifies how a subtree changed in response to a delete,
// so the parent frame can decide whether it must also change shape.
type deleteSignal int

const (
	// sigDeleted means the subtree became empty; the caller must clear
	// its reference to it.
	sigDeleted deleteSignal = iota
	// sigUpdated means the subtree kept its shape but its reference
	// changed.
	sigUpdated
	// sigUselessBranch means the subtree collapsed into a single
	// successor that must be merged into the parent.
	sigUselessBranch
)

// deleteResult is the three-valued signal a recursive delete step
// returns to its caller. path is only meaningful alongside
// sigUselessBranch, where it carries the surviving nibble path the
// parent must prepend when merging.
type deleteResult struct {
	signal deleteSignal
	path   nibble.Path
	ref    trienode.Ref
}

// Delete removes key from the trie. It is a no-op if the trie is empty,
// and returns ErrKeyNotFound if key is absent.
func (t *Trie) Delete(key []byte) error {
	if t.root.IsEmpty() {
		return nil
	}

	path := nibble.FromKey(t.transformKey(key))
	result, err := t.delete(t.root, path)
	if err != nil {
		return err
	}

	switch result.signal {
	case sigDeleted:
		t.root = trienode.Ref{}
	case sigUpdated, sigUselessBranch:
		t.root = result.ref
	}
	return nil
}

func (t *Trie) delete(ref trienode.Ref, path nibble.Path) (deleteResult, error) {
	node, err := t.store.Resolve(ref)
	if err != nil {
		return deleteResult{}, err
	}

	switch n := node.(type) {
	case trienode.Leaf:
		return t.deleteFromLeaf(n, path)
	case trienode.Extension:
		return t.deleteFromExtension(n, path)
	case trienode.Branch:
		return t.deleteFromBranch(n, path)
	default:
		return deleteResult{}, fmt.Errorf("mpt: unknown node type %T", node)
	}
}

func (t *Trie) deleteFromLeaf(n trienode.Leaf, path nibble.Path) (deleteResult, error) {
	if !n.Path.Equal(path) {
		return deleteResult{}, ErrKeyNotFound
	}
	return deleteResult{signal: sigDeleted}, nil
}

func (t *Trie) deleteFromExtension(n trienode.Extension, path nibble.Path) (deleteResult, error) {
	if !path.StartsWith(n.Path) {
		return deleteResult{}, ErrKeyNotFound
	}

	child, err := t.delete(n.Next, path.Consume(n.Path.Len()))
	if err != nil {
		return deleteResult{}, err
	}

	switch child.signal {
	case sigDeleted:
		return deleteResult{signal: sigDeleted}, nil

	case sigUpdated:
		ref, err := t.store.Persist(trienode.Extension{Path: n.Path, Next: child.ref})
		if err != nil {
			return deleteResult{}, err
		}
		return deleteResult{signal: sigUpdated, ref: ref}, nil

	case sigUselessBranch:
		merged, err := t.mergeChild(n.Path, child.path, child.ref)
		if err != nil {
			return deleteResult{}, err
		}
		ref, err := t.store.Persist(merged)
		if err != nil {
			return deleteResult{}, err
		}
		return deleteResult{signal: sigUpdated, ref: ref}, nil

	default:
		return deleteResult{}, fmt.Errorf("mpt: unknown delete signal %d", child.signal)
	}
}

func (t *Trie) deleteFromBranch(n trienode.Branch, path nibble.Path) (deleteResult, error) {
	if path.Len() == 0 {
		if !n.HasValue() {
			return deleteResult{}, ErrKeyNotFound
		}
		n.Value = nil
		return t.finishBranchDelete(n)
	}

	slot := path.MustAt(0)
	if n.Slots[slot].IsEmpty() {
		return deleteResult{}, ErrKeyNotFound
	}

	child, err := t.delete(n.Slots[slot], path.Consume(1))
	if err != nil {
		return deleteResult{}, err
	}

	switch child.signal {
	case sigDeleted:
		n.Slots[slot] = trienode.Ref{}
		return t.finishBranchDelete(n)

	case sigUpdated, sigUselessBranch:
		n.Slots[slot] = child.ref
		ref, err := t.store.Persist(n)
		if err != nil {
			return deleteResult{}, err
		}
		return deleteResult{signal: sigUpdated, ref: ref}, nil

	default:
		return deleteResult{}, fmt.Errorf("mpt: unknown delete signal %d", child.signal)
	}
}

// finishBranchDelete decides the outcome once a branch's own value or one
// of its slots has just been cleared, per the canonical-form invariant
// that no Branch may retain fewer than two useful slots (its own value
// counting as one).
func (t *Trie) finishBranchDelete(n trienode.Branch) (deleteResult, error) {
	count := n.NonEmptySlotCount()

	switch {
	case count == 0 && !n.HasValue():
		return deleteResult{signal: sigDeleted}, nil

	case count == 0 && n.HasValue():
		ref, err := t.store.Persist(trienode.Leaf{Path: nibble.Empty, Value: n.Value})
		if err != nil {
			return deleteResult{}, err
		}
		return deleteResult{signal: sigUselessBranch, path: nibble.Empty, ref: ref}, nil

	case count == 1 && !n.HasValue():
		slot := soleNonEmptySlot(n)
		prefix := nibble.Single(byte(slot))

		merged, err := t.mergeChild(prefix, nibble.Empty, n.Slots[slot])
		if err != nil {
			return deleteResult{}, err
		}
		ref, err := t.store.Persist(merged)
		if err != nil {
			return deleteResult{}, err
		}
		return deleteResult{signal: sigUselessBranch, path: prefix, ref: ref}, nil

	default:
		ref, err := t.store.Persist(n)
		if err != nil {
			return deleteResult{}, err
		}
		return deleteResult{signal: sigUpdated, ref: ref}, nil
	}
}

// mergeChild resolves the node at childRef and folds it under prefix,
// absorbing prefix into the child's own path for Leaf and Extension, or
// wrapping the child in a new Extension of exactly prefix+signalPath
// when it is a Branch (which cannot itself carry a path).
func (t *Trie) mergeChild(prefix, signalPath nibble.Path, childRef trienode.Ref) (trienode.Node, error) {
	child, err := t.store.Resolve(childRef)
	if err != nil {
		return nil, err
	}

	switch c := child.(type) {
	case trienode.Leaf:
		return trienode.Leaf{Path: nibble.Combine(prefix, c.Path), Value: c.Value}, nil
	case trienode.Extension:
		return trienode.Extension{Path: nibble.Combine(prefix, c.Path), Next: c.Next}, nil
	case trienode.Branch:
		return trienode.Extension{Path: nibble.Combine(prefix, signalPath), Next: childRef}, nil
	default:
		return nil, fmt.Errorf("mpt: unknown node type %T", child)
	}
}

func soleNonEmptySlot(n trienode.Branch) int {
	for i, s := range n.Slots {
		if !s.IsEmpty() {
			return i
		}
	}
	return -1
}
