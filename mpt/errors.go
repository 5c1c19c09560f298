package mpt

import "errors"

// ErrKeyNotFound is returned by Get and Delete when the requested key has
// no entry in the trie. It is recoverable: the trie is left unchanged.
var ErrKeyNotFound = errors.New("mpt: key not found")

// ErrEmptyValue is returned by Update when called with a zero-length
// value. Callers that mean to remove a key must call Delete explicitly.
var ErrEmptyValue = errors.New("mpt: update requires a non-empty value")
