package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pangivault/native/vault"

	"github.com/BurntSushi/toml"
)

// Storage backends understood by the node.
const (
	StorageLevelDB = "leveldb"
	StorageBolt    = "bolt"
	StorageMemory  = "memory"
)

type Config struct {
	DataDir string           `toml:"DataDir"`
	Storage string           `toml:"Storage"`
	Vault   vault.Params     `toml:"vault"`
	Pauses  Pauses           `toml:"pauses"`
	Genesis []GenesisBalance `toml:"genesis"`
}

// Default returns the configuration written when no file exists yet.
func Default() *Config {
	return &Config{
		DataDir: "./vault-data",
		Storage: StorageLevelDB,
		Vault:   vault.DefaultParams(),
		Genesis: []GenesisBalance{},
	}
}

// Load loads the configuration from the given path. Parameters missing from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown field %s", path, undecoded[0].String())
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	if cfg.Storage == "" {
		cfg.Storage = StorageLevelDB
	}
	if cfg.Genesis == nil {
		cfg.Genesis = []GenesisBalance{}
	}
	if err := ValidateConfig(*cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// StoragePath resolves the on-disk location of the ledger database.
func (c *Config) StoragePath() string {
	switch c.Storage {
	case StorageBolt:
		return filepath.Join(c.DataDir, "ledger.bolt")
	default:
		return filepath.Join(c.DataDir, "ledger")
	}
}
