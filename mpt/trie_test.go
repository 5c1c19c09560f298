package mpt

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/rand"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"merkletrie/internal/log"
	"merkletrie/mpt/trienode"
	"merkletrie/storage"
	"merkletrie/storage/mem"
	"merkletrie/triedb"
)

func newTestTrie(t *testing.T, secure bool) (*Trie, storage.KeyValStore) {
	t.Helper()
	db := mem.New()
	t.Cleanup(func() { _ = db.Close() })
	store := triedb.New(db)
	return Open(store, trienode.Ref{}, secure, testLogger()), db
}

func testLogger() log.Logger {
	return log.New(log.NewTerminalHandler())
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture %q: %v", s, err)
	}
	return b
}

func TestScenario_InsertFourCheckRoot(t *testing.T) {
	t.Run("should match the known four-key root hash", func(t *testing.T) {
		trie, _ := newTestTrie(t, false)

		entries := []struct{ k, v string }{
			{"do", "verb"},
			{"dog", "puppy"},
			{"doge", "coin"},
			{"horse", "stallion"},
		}
		for _, e := range entries {
			if err := trie.Update([]byte(e.k), []byte(e.v)); err != nil {
				t.Fatalf("update(%q): unexpected error: %v", e.k, err)
			}
		}

		want := mustHex(t, "5991bb8c6514148a29db676a14ac506cd2cd5775ace63c30a4fe457715e9ac84")
		if got := trie.RootHash(); !bytes.Equal(got, want) {
			t.Errorf("root hash mismatch: got %x, want %x", got, want)
		}
	})
}

func TestScenario_RootStabilityUnderInsertThenDelete(t *testing.T) {
	t.Run("should return to the original root after inserting then deleting the same keys", func(t *testing.T) {
		trie, _ := newTestTrie(t, false)

		base := []struct{ k, v string }{
			{"do", "verb"},
			{"dog", "puppy"},
			{"doge", "coin"},
			{"horse", "stallion"},
		}
		for _, e := range base {
			if err := trie.Update([]byte(e.k), []byte(e.v)); err != nil {
				t.Fatalf("update(%q): unexpected error: %v", e.k, err)
			}
		}
		baseRoot := append([]byte(nil), trie.RootHash()...)

		extra := []struct{ k, v string }{
			{"a", "aaa"},
			{"some_key", "some_value"},
			{"dodog", "do_dog"},
		}
		for _, e := range extra {
			if err := trie.Update([]byte(e.k), []byte(e.v)); err != nil {
				t.Fatalf("update(%q): unexpected error: %v", e.k, err)
			}
		}
		for _, e := range extra {
			if err := trie.Delete([]byte(e.k)); err != nil {
				t.Fatalf("delete(%q): unexpected error: %v", e.k, err)
			}
		}

		if got := trie.RootHash(); !bytes.Equal(got, baseRoot) {
			t.Errorf("root hash mismatch after insert-then-delete: got %x, want %x", got, baseRoot)
		}
	})
}

func TestScenario_DeterministicLongRandomBatch(t *testing.T) {
	t.Run("should insert, verify, and fully delete a seeded random batch", func(t *testing.T) {
		trie, _ := newTestTrie(t, false)

		rng := rand.New(rand.NewSource(42))
		seen := make(map[int]bool)
		var keys []string
		for len(keys) < 100 {
			n := rng.Intn(1_000_000) + 1
			if seen[n] {
				continue
			}
			seen[n] = true
			keys = append(keys, strconv.Itoa(n))
		}

		for _, k := range keys {
			v := []byte(k + k)
			if err := trie.Update([]byte(k), v); err != nil {
				t.Fatalf("update(%q): unexpected error: %v", k, err)
			}
		}
		for _, k := range keys {
			got, err := trie.Get([]byte(k))
			if err != nil {
				t.Fatalf("get(%q): unexpected error: %v", k, err)
			}
			if want := []byte(k + k); !bytes.Equal(got, want) {
				t.Errorf("get(%q): got %q, want %q", k, got, want)
			}
		}
		for _, k := range keys {
			if err := trie.Delete([]byte(k)); err != nil {
				t.Fatalf("delete(%q): unexpected error: %v", k, err)
			}
		}

		if got := trie.RootHash(); !bytes.Equal(got, emptyRootHash(t)) {
			t.Errorf("expected empty-trie root after deleting all keys, got %x", got)
		}
	})
}

func TestScenario_SplitOnPrefixCollision(t *testing.T) {
	t.Run("should root an extension over a branch on prefix collision", func(t *testing.T) {
		trie, _ := newTestTrie(t, false)

		if err := trie.Update([]byte("dog"), []byte("puppy")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := trie.Update([]byte("doge"), []byte("coin")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		root, err := trie.store.Resolve(trie.Root())
		if err != nil {
			t.Fatalf("unexpected error resolving root: %v", err)
		}
		ext, ok := root.(trienode.Extension)
		if !ok {
			t.Fatalf("expected root to be an Extension, got %T", root)
		}

		branchNode, err := trie.store.Resolve(ext.Next)
		if err != nil {
			t.Fatalf("unexpected error resolving branch: %v", err)
		}
		branch, ok := branchNode.(trienode.Branch)
		if !ok {
			t.Fatalf("expected Extension to lead to a Branch, got %T", branchNode)
		}

		if !branch.HasValue() || !bytes.Equal(branch.Value, []byte("puppy")) {
			t.Errorf("expected branch to carry dog's value, got %q", branch.Value)
		}
		if branch.NonEmptySlotCount() != 1 {
			t.Errorf("expected exactly one populated slot, got %d", branch.NonEmptySlotCount())
		}
	})
}

func TestScenario_OpenAtPriorRoot(t *testing.T) {
	t.Run("should let a second trie observe a snapshot unaffected by later writes", func(t *testing.T) {
		trie, db := newTestTrie(t, false)

		if err := trie.Update([]byte("do"), []byte("verb")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := trie.Update([]byte("dog"), []byte("puppy")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		r0 := trie.Root()

		if err := trie.Delete([]byte("dog")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := trie.Update([]byte("do"), []byte("not_a_verb")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snapshot := Open(triedb.New(db), r0, false, testLogger())

		if v, err := snapshot.Get([]byte("do")); err != nil || !bytes.Equal(v, []byte("verb")) {
			t.Errorf("snapshot.get(do): got (%q, %v), want (verb, nil)", v, err)
		}
		if v, err := snapshot.Get([]byte("dog")); err != nil || !bytes.Equal(v, []byte("puppy")) {
			t.Errorf("snapshot.get(dog): got (%q, %v), want (puppy, nil)", v, err)
		}

		if v, err := trie.Get([]byte("do")); err != nil || !bytes.Equal(v, []byte("not_a_verb")) {
			t.Errorf("trie.get(do): got (%q, %v), want (not_a_verb, nil)", v, err)
		}
		if _, err := trie.Get([]byte("dog")); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("trie.get(dog): expected ErrKeyNotFound, got %v", err)
		}
	})
}

func TestScenario_SecureModeDivergence(t *testing.T) {
	t.Run("should diverge from non-secure mode and match the hashed-key equivalent", func(t *testing.T) {
		key := []byte("mykey")
		value := []byte("myvalue")

		plain, _ := newTestTrie(t, false)
		if err := plain.Update(key, value); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		secure, _ := newTestTrie(t, true)
		if err := secure.Update(key, value); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if bytes.Equal(plain.RootHash(), secure.RootHash()) {
			t.Fatalf("expected secure and non-secure roots to diverge")
		}

		equivalent, _ := newTestTrie(t, false)
		hashedKey := crypto.Keccak256(key)
		if err := equivalent.Update(hashedKey, value); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !bytes.Equal(secure.RootHash(), equivalent.RootHash()) {
			t.Errorf("expected secure trie's root to equal a plain trie over the hashed key")
		}
	})
}

func TestGet_UnknownKey(t *testing.T) {
	t.Run("should return ErrKeyNotFound for an absent key", func(t *testing.T) {
		trie, _ := newTestTrie(t, false)
		if err := trie.Update([]byte("dog"), []byte("puppy")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := trie.Get([]byte("cat")); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})
}

func TestUpdate_RejectsEmptyValue(t *testing.T) {
	t.Run("should reject an empty value", func(t *testing.T) {
		trie, _ := newTestTrie(t, false)
		if err := trie.Update([]byte("dog"), nil); !errors.Is(err, ErrEmptyValue) {
			t.Errorf("expected ErrEmptyValue, got %v", err)
		}
	})
}

func TestDelete_EmptyTrieIsNoOp(t *testing.T) {
	t.Run("should not error when deleting from an empty trie", func(t *testing.T) {
		trie, _ := newTestTrie(t, false)
		if err := trie.Delete([]byte("dog")); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestDelete_AbsentKey(t *testing.T) {
	t.Run("should return ErrKeyNotFound for an absent key in a non-empty trie", func(t *testing.T) {
		trie, _ := newTestTrie(t, false)
		if err := trie.Update([]byte("dog"), []byte("puppy")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := trie.Delete([]byte("cat")); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})
}

func TestRootHash_EmptyTrie(t *testing.T) {
	t.Run("should be the well-known empty-trie digest", func(t *testing.T) {
		trie, _ := newTestTrie(t, false)
		if got := trie.RootHash(); !bytes.Equal(got, emptyRootHash(t)) {
			t.Errorf("got %x, want %x", got, emptyRootHash(t))
		}
	})
}

func emptyRootHash(t *testing.T) []byte {
	t.Helper()
	return mustHex(t, "56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")
}
