package state

// GenesisApplied reports whether the genesis allocations were already credited.
func (m *Manager) GenesisApplied() (bool, error) {
	if err := m.checkScope(GenesisAddress); err != nil {
		return false, err
	}
	var applied bool
	ok, err := m.KVGet(genesisMarkerKeyBytes, &applied)
	if err != nil {
		return false, err
	}
	return ok && applied, nil
}

// MarkGenesisApplied records that genesis allocations were credited.
func (m *Manager) MarkGenesisApplied() error {
	if err := m.checkScope(GenesisAddress); err != nil {
		return err
	}
	return m.KVPut(genesisMarkerKeyBytes, true)
}
