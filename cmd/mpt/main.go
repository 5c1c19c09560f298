// Command mpt is a small CLI front end for the trie engine: put, get,
// delete, and root-hash operations against a trie stored in the configured
// backend (badger on disk, or the in-memory store, which is the default
// and keeps nothing between runs).
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	internalconfig "merkletrie/internal/config"
	"merkletrie/internal/log"
	"merkletrie/mpt"
	"merkletrie/mpt/trienode"
	"merkletrie/storage"
	"merkletrie/storage/badger"
	"merkletrie/storage/mem"
	"merkletrie/triedb"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	rootFlag := flag.String("root", "", "Hex-encoded root reference to open the trie at (default: empty trie)")

	if v := os.Getenv("CONFIG_PATH"); v != "" {
		flag.Set("config", v)
	}
	if v := os.Getenv("TRIE_ROOT"); v != "" {
		flag.Set("root", v)
	}

	flag.Parse()
	args := flag.Args()

	logger := log.New(log.NewTerminalHandler()).With("component", "main")

	if len(args) < 1 {
		logger.Error("missing subcommand")
		printUsage()
		os.Exit(2)
	}

	loader := internalconfig.NewLoader(logger)
	cfg, err := loader.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger.Info("using config", "backend", cfg.Backend, "secure", cfg.Secure)

	db, err := openBackend(cfg)
	if err != nil {
		logger.Error("failed to open storage backend", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	root, err := parseRoot(*rootFlag)
	if err != nil {
		logger.Error("failed to parse root", "err", err)
		os.Exit(2)
	}

	trie := mpt.Open(triedb.New(db), root, cfg.Secure, logger)

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "get":
		err = runGet(trie, cmdArgs)
	case "put":
		err = runPut(trie, cmdArgs)
	case "del":
		err = runDelete(trie, cmdArgs)
	case "root":
		runRoot(trie)
	default:
		logger.Error("unknown subcommand", "cmd", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "cmd", cmd, "err", err)
		os.Exit(1)
	}
}

func openBackend(cfg *internalconfig.TrieConfig) (storage.KeyValStore, error) {
	switch cfg.Backend {
	case "badger":
		return badger.New(cfg.DBPath)
	default:
		return mem.New(), nil
	}
}

func parseRoot(s string) (trienode.Ref, error) {
	if s == "" {
		return trienode.Ref{}, nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid root reference: %w", err)
	}
	return trienode.Ref(decoded), nil
}

func runGet(trie *mpt.Trie, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mpt get <key>")
	}
	value, err := trie.Get([]byte(args[0]))
	if err != nil {
		return err
	}
	fmt.Println(string(value))
	return nil
}

func runPut(trie *mpt.Trie, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: mpt put <key> <value>")
	}
	if err := trie.Update([]byte(args[0]), []byte(args[1])); err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(trie.Root()))
	return nil
}

func runDelete(trie *mpt.Trie, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mpt del <key>")
	}
	if err := trie.Delete([]byte(args[0])); err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(trie.Root()))
	return nil
}

func runRoot(trie *mpt.Trie) {
	fmt.Println(common.BytesToHash(trie.RootHash()).Hex())
}

func printUsage() {
	fmt.Println("usage: mpt [-config path] [-root hex] <get|put|del|root> [args...]")
}
