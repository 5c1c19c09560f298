package config

import (
	"fmt"

	"merkletrie/internal/log"
)

const (
	backendMem    = "mem"
	backendBadger = "badger"
)

// parser handles the conversion of raw config data into a structured
// TrieConfig.
type parser struct {
	log log.Logger
}

// newParser creates a new parser with the specified logger.
func newParser(logger log.Logger) *parser {
	return &parser{
		log: logger.With("component", "config-parser"),
	}
}

// parse validates and normalises the raw config. An unset backend
// defaults to the in-memory store.
func (p *parser) parse(raw *config) (*TrieConfig, error) {
	backend := raw.Backend
	if backend == "" {
		p.log.Debug("no backend specified, defaulting to in-memory store")
		backend = backendMem
	}

	switch backend {
	case backendMem:
		// no further validation required
	case backendBadger:
		if raw.DBPath == "" {
			return nil, fmt.Errorf("db_path is required for the %s backend", backendBadger)
		}
	default:
		return nil, fmt.Errorf("unsupported backend %q (want %q or %q)", backend, backendMem, backendBadger)
	}

	p.log.Debug("parsed config", "backend", backend, "secure", raw.Secure)

	return &TrieConfig{
		Backend: backend,
		DBPath:  raw.DBPath,
		Secure:  raw.Secure,
	}, nil
}
