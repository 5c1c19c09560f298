package mpt

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Account is an example RLP-encodable value, representing an Ethereum
// account exactly as it is stored at a leaf of the state trie. It is not
// interpreted by the trie engine itself; it exists so callers have a
// realistic, structured value type to store and retrieve.
type Account struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// Encode returns a's canonical RLP encoding, suitable for use as the
// value passed to Trie.Update.
func (a Account) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(a)
}

// DecodeAccount inverts Encode.
func DecodeAccount(data []byte) (Account, error) {
	var a Account
	if err := rlp.DecodeBytes(data, &a); err != nil {
		return Account{}, err
	}
	return a, nil
}
