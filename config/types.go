package config

import (
	"fmt"
	"strings"

	"pangivault/core"
	"pangivault/crypto"
	"pangivault/native/vault"
)

// Pauses lists the module switches an operator can flip without a redeploy.
type Pauses struct {
	Vault bool `toml:"Vault"`
}

// IsPaused implements common.PauseView.
func (p Pauses) IsPaused(module string) bool {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case vault.ModuleName:
		return p.Vault
	default:
		return false
	}
}

// GenesisBalance credits Amount base units of Mint to Owner on first start.
type GenesisBalance struct {
	Owner  string `toml:"Owner"`
	Mint   string `toml:"Mint"`
	Amount uint64 `toml:"Amount"`
}

// Allocations decodes the configured genesis balances.
func (c *Config) Allocations() ([]core.Allocation, error) {
	out := make([]core.Allocation, 0, len(c.Genesis))
	for i, entry := range c.Genesis {
		owner, err := crypto.DecodePublicKey(entry.Owner)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d].Owner: %w", i, err)
		}
		mint, err := crypto.DecodePublicKey(entry.Mint)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d].Mint: %w", i, err)
		}
		out = append(out, core.Allocation{Owner: owner, Mint: mint, Amount: entry.Amount})
	}
	return out, nil
}
