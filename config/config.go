// Package config handles node runtime configuration: data directory
// layout, P2P networking settings, the forging key source, and
// logging. None of it is a consensus rule — every node can run a
// different config and still agree on chain state.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies which gossip network a node joins.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds node-specific runtime configuration.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	P2P   P2PConfig
	Forge ForgeConfig
	Log   LogConfig
}

// P2PConfig holds peer-to-peer network settings (§4.G).
type P2PConfig struct {
	// ListenAddr is a full libp2p multiaddr override; empty means listen
	// on every interface at Port.
	ListenAddr string   `conf:"p2p.listen"`
	Port       int      `conf:"p2p.port"`
	Seeds      []string `conf:"p2p.seeds"`
	MaxPeers   int      `conf:"p2p.maxpeers"`
	NoDiscover bool     `conf:"p2p.nodiscover"`
	DHTServer  bool     `conf:"p2p.dhtserver"`
	ClearBans  bool     // not persisted in the config file
}

// ForgeConfig selects whether and how this node forges blocks (§4.H).
// A forging node derives its key deterministically from a BIP-39
// mnemonic via internal/wallet, the same derivation a wallet would use
// for its first account, rather than storing a raw private key on
// disk.
type ForgeConfig struct {
	Enabled      bool   `conf:"forge.enabled"`
	MnemonicFile string `conf:"forge.mnemonicfile"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.tofuri
//	macOS:   ~/Library/Application Support/Tofuri
//	Windows: %APPDATA%\Tofuri
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tofuri"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Tofuri")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Tofuri")
		}
		return filepath.Join(home, "AppData", "Roaming", "Tofuri")
	default:
		return filepath.Join(home, ".tofuri")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// StoreDir returns the badger database directory.
func (c *Config) StoreDir() string {
	return filepath.Join(c.ChainDataDir(), "store")
}

// PeerstoreDir is an alias of StoreDir kept for readability at call
// sites that only touch the peer namespace of the same database.
func (c *Config) PeerstoreDir() string {
	return c.StoreDir()
}

// IdentityDir returns the directory the libp2p node identity key is
// kept in.
func (c *Config) IdentityDir() string {
	return filepath.Join(c.ChainDataDir(), "identity")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "tofuri.conf")
}

// EnsureDataDirs creates the data directory structure, idempotently.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.StoreDir(),
		cfg.IdentityDir(),
		cfg.LogsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
