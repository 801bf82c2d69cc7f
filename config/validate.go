package config

import "fmt"

func ValidateConfig(c Config) error {
	if c.Storage != StorageMemory && c.DataDir == "" {
		return fmt.Errorf("DataDir is required for %s storage", c.Storage)
	}
	switch c.Storage {
	case StorageLevelDB, StorageBolt, StorageMemory:
	default:
		return fmt.Errorf("storage: unsupported backend %q", c.Storage)
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if _, err := c.Allocations(); err != nil {
		return err
	}
	for i, entry := range c.Genesis {
		if entry.Amount == 0 {
			return fmt.Errorf("genesis[%d]: amount must be positive", i)
		}
	}
	return nil
}
