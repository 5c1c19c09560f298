package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"merkletrie/internal/log"
)

// TrieConfig holds the resolved configuration for a trie instance: which
// storage backend to use and whether secure mode is enabled.
type TrieConfig struct {
	Backend string
	DBPath  string
	Secure  bool
}

// config is the raw YAML structure of the config file.
type config struct {
	Backend string `yaml:"backend"`
	DBPath  string `yaml:"db_path"`
	Secure  bool   `yaml:"secure"`
}

// Loader reads and validates the trie config file.
type Loader struct {
	log    log.Logger
	parser *parser
}

// NewLoader creates a new config Loader with the specified logging
// context attached.
func NewLoader(logger log.Logger) *Loader {
	logger = logger.With("component", "config-loader")
	return &Loader{
		log:    logger,
		parser: newParser(logger),
	}
}

// Load reads the config file at the specified path.
func (l *Loader) Load(path string) (*TrieConfig, error) {
	l.log.Info("load config", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw config
	if err = yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	parsed, err := l.parser.parse(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return parsed, nil
}
