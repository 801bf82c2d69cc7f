package state

import (
	"fmt"

	"pangivault/crypto"
	"pangivault/native/vault"
)

type storedVault struct {
	Address                 crypto.PublicKey
	Authority               crypto.PublicKey
	CreatorMint             crypto.PublicKey
	TokenMint               crypto.PublicKey
	CustodyAccount          crypto.PublicKey
	RewardRateBps           uint16
	LockDuration            uint64
	TotalStaked             uint64
	TotalPenaltiesCollected uint64
	CreatedAt               uint64
	LastRewardUpdate        uint64
	IsActive                bool
}

func newStoredVault(v *vault.Vault) (*storedVault, error) {
	lock, err := fromUnix("lock duration", v.LockDuration)
	if err != nil {
		return nil, err
	}
	created, err := fromUnix("created at", v.CreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := fromUnix("last reward update", v.LastRewardUpdate)
	if err != nil {
		return nil, err
	}
	return &storedVault{
		Address:                 v.Address,
		Authority:               v.Authority,
		CreatorMint:             v.CreatorMint,
		TokenMint:               v.TokenMint,
		CustodyAccount:          v.CustodyAccount,
		RewardRateBps:           v.RewardRateBps,
		LockDuration:            lock,
		TotalStaked:             v.TotalStaked,
		TotalPenaltiesCollected: v.TotalPenaltiesCollected,
		CreatedAt:               created,
		LastRewardUpdate:        updated,
		IsActive:                v.IsActive,
	}, nil
}

func (s *storedVault) toVault() *vault.Vault {
	return &vault.Vault{
		Address:                 s.Address,
		Authority:               s.Authority,
		CreatorMint:             s.CreatorMint,
		TokenMint:               s.TokenMint,
		CustodyAccount:          s.CustodyAccount,
		RewardRateBps:           s.RewardRateBps,
		LockDuration:            toUnix(s.LockDuration),
		TotalStaked:             s.TotalStaked,
		TotalPenaltiesCollected: s.TotalPenaltiesCollected,
		CreatedAt:               toUnix(s.CreatedAt),
		LastRewardUpdate:        toUnix(s.LastRewardUpdate),
		IsActive:                s.IsActive,
	}
}

type storedStake struct {
	Vault        crypto.PublicKey
	Holder       crypto.PublicKey
	Amount       uint64
	StakedAt     uint64
	UnlockAt     uint64
	LastClaim    uint64
	TotalClaimed uint64
}

func newStoredStake(s *vault.StakeRecord) (*storedStake, error) {
	stakedAt, err := fromUnix("staked at", s.StakedAt)
	if err != nil {
		return nil, err
	}
	unlockAt, err := fromUnix("unlock at", s.UnlockAt)
	if err != nil {
		return nil, err
	}
	lastClaim, err := fromUnix("last claim", s.LastClaim)
	if err != nil {
		return nil, err
	}
	return &storedStake{
		Vault:        s.Vault,
		Holder:       s.Holder,
		Amount:       s.Amount,
		StakedAt:     stakedAt,
		UnlockAt:     unlockAt,
		LastClaim:    lastClaim,
		TotalClaimed: s.TotalClaimed,
	}, nil
}

func (s *storedStake) toStake() *vault.StakeRecord {
	return &vault.StakeRecord{
		Vault:        s.Vault,
		Holder:       s.Holder,
		Amount:       s.Amount,
		StakedAt:     toUnix(s.StakedAt),
		UnlockAt:     toUnix(s.UnlockAt),
		LastClaim:    toUnix(s.LastClaim),
		TotalClaimed: s.TotalClaimed,
	}
}

// VaultGet loads the vault stored at addr.
func (m *Manager) VaultGet(addr crypto.PublicKey) (*vault.Vault, bool, error) {
	if err := m.checkScope(addr); err != nil {
		return nil, false, err
	}
	stored := new(storedVault)
	ok, err := m.KVGet(VaultRecordKey(addr), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toVault(), true, nil
}

// VaultPut stores the vault, registering it in the vault index on first write.
func (m *Manager) VaultPut(v *vault.Vault) error {
	if v == nil {
		return fmt.Errorf("state: vault must not be nil")
	}
	if err := m.checkScope(v.Address); err != nil {
		return err
	}
	stored, err := newStoredVault(v)
	if err != nil {
		return err
	}
	exists, err := m.KVGet(VaultRecordKey(v.Address), nil)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.checkScope(VaultIndexAddress); err != nil {
			return err
		}
		if err := m.KVAppend(VaultIndexKey(), v.Address.Bytes()); err != nil {
			return err
		}
	}
	return m.KVPut(VaultRecordKey(v.Address), stored)
}

// VaultList returns the address of every vault in creation order.
func (m *Manager) VaultList() ([]crypto.PublicKey, error) {
	list, err := m.KVList(VaultIndexKey())
	if err != nil {
		return nil, err
	}
	return decodeAddresses(list)
}

// StakeGet loads the stake record of holder in the vault.
func (m *Manager) StakeGet(vaultAddr crypto.PublicKey, holder crypto.PublicKey) (*vault.StakeRecord, bool, error) {
	addr := vault.StakeAddress(vaultAddr, holder)
	if err := m.checkScope(addr); err != nil {
		return nil, false, err
	}
	stored := new(storedStake)
	ok, err := m.KVGet(StakeRecordKey(addr), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toStake(), true, nil
}

// StakePut stores the stake record, registering the holder with the vault on
// first write. Records are never removed.
func (m *Manager) StakePut(s *vault.StakeRecord) error {
	if s == nil {
		return fmt.Errorf("state: stake must not be nil")
	}
	addr := vault.StakeAddress(s.Vault, s.Holder)
	if err := m.checkScope(addr); err != nil {
		return err
	}
	stored, err := newStoredStake(s)
	if err != nil {
		return err
	}
	exists, err := m.KVGet(StakeRecordKey(addr), nil)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.checkScope(s.Vault); err != nil {
			return err
		}
		if err := m.KVAppend(VaultHoldersKey(s.Vault), s.Holder.Bytes()); err != nil {
			return err
		}
	}
	return m.KVPut(StakeRecordKey(addr), stored)
}

// VaultHolders returns every holder that ever opened a position in the vault.
func (m *Manager) VaultHolders(vaultAddr crypto.PublicKey) ([]crypto.PublicKey, error) {
	if err := m.checkScope(vaultAddr); err != nil {
		return nil, err
	}
	list, err := m.KVList(VaultHoldersKey(vaultAddr))
	if err != nil {
		return nil, err
	}
	return decodeAddresses(list)
}
