// Package state hosts the ledger structures the native engines operate on:
// an in-memory, mutex-serialized store with a copy-on-write journal for
// all-or-nothing operations and JSON persistence into a storage.Database.
package state

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/native/vault"
	"stakevault/storage"
)

type stakeKey struct {
	collection uint64
	owner      [20]byte
}

type tokenKey struct {
	collection uint64
	tokenID    uint64
}

// Manager satisfies the state interfaces of the staking engine, the vault
// engine and the claim coordinator. Every externally invoked operation must
// run between Lock and Unlock; mutations become durable only on Commit.
type Manager struct {
	mu sync.Mutex
	db storage.Database

	status       nativecommon.Status
	roles        map[string]map[[20]byte]struct{}
	collections  map[uint64]*staking.CollectionConfig
	stakes       map[stakeKey]*staking.StakeRecord
	tokenStakers map[tokenKey][20]byte
	traits       map[tokenKey]*staking.TraitOverride
	accounts     map[[20]byte]*staking.PointsAccount
	entries      map[uint64]*vault.Entry
	redemptions  map[uint64][]vault.Redemption

	journal []func()
	dirty   map[string]struct{}
}

// NewManager creates a manager over the given database and loads any
// previously persisted state.
func NewManager(db storage.Database) (*Manager, error) {
	m := &Manager{
		db:           db,
		status:       nativecommon.StatusPublic,
		roles:        make(map[string]map[[20]byte]struct{}),
		collections:  make(map[uint64]*staking.CollectionConfig),
		stakes:       make(map[stakeKey]*staking.StakeRecord),
		tokenStakers: make(map[tokenKey][20]byte),
		traits:       make(map[tokenKey]*staking.TraitOverride),
		accounts:     make(map[[20]byte]*staking.PointsAccount),
		entries:      make(map[uint64]*vault.Entry),
		redemptions:  make(map[uint64][]vault.Redemption),
		dirty:        make(map[string]struct{}),
	}
	if db != nil {
		if err := m.load(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Lock serializes an externally invoked operation. No internal threading:
// each public operation runs to completion under this lock.
func (m *Manager) Lock() { m.mu.Lock() }

// Unlock releases the operation lock.
func (m *Manager) Unlock() { m.mu.Unlock() }

// Snapshot marks the current journal position.
func (m *Manager) Snapshot() int { return len(m.journal) }

// RevertToSnapshot rolls back every mutation recorded after the snapshot.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		m.journal[i]()
	}
	m.journal = m.journal[:id]
}

func (m *Manager) record(undo func()) {
	m.journal = append(m.journal, undo)
}

func (m *Manager) markDirty(section string) {
	m.dirty[section] = struct{}{}
}

// DiscardJournal drops accumulated undo entries after a successful operation.
func (m *Manager) DiscardJournal() {
	m.journal = m.journal[:0]
}

// Status implements nativecommon.StatusView.
func (m *Manager) Status() nativecommon.Status { return m.status }

// SetStatus transitions the system gate. Authorization is the caller's
// responsibility (RPC admin surface).
func (m *Manager) SetStatus(status nativecommon.Status) {
	prev := m.status
	m.record(func() { m.status = prev })
	m.status = status
	m.markDirty(sectionMeta)
}

// HasRole reports whether addr holds the named role.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	holders, ok := m.roles[role]
	if !ok {
		return false
	}
	_, ok = holders[addr]
	return ok
}

// GrantRole adds addr to the named role.
func (m *Manager) GrantRole(role string, addr [20]byte) {
	holders, ok := m.roles[role]
	if !ok {
		holders = make(map[[20]byte]struct{})
		m.roles[role] = holders
	}
	if _, exists := holders[addr]; exists {
		return
	}
	m.record(func() { delete(holders, addr) })
	holders[addr] = struct{}{}
	m.markDirty(sectionMeta)
}

// CollectionConfig implements staking.State.
func (m *Manager) CollectionConfig(id uint64) (*staking.CollectionConfig, bool, error) {
	cfg, ok := m.collections[id]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

// PutCollectionConfig implements staking.State.
func (m *Manager) PutCollectionConfig(cfg *staking.CollectionConfig) error {
	if cfg == nil {
		return errors.New("state: nil collection config")
	}
	prev, had := m.collections[cfg.ID]
	m.record(func() {
		if had {
			m.collections[cfg.ID] = prev
		} else {
			delete(m.collections, cfg.ID)
		}
	})
	m.collections[cfg.ID] = cfg.Clone()
	m.markDirty(sectionCollections)
	return nil
}

// StakeRecord implements staking.State.
func (m *Manager) StakeRecord(collection uint64, owner [20]byte) (*staking.StakeRecord, bool, error) {
	rec, ok := m.stakes[stakeKey{collection: collection, owner: owner}]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// PutStakeRecord implements staking.State. Records that become empty are
// deleted rather than stored.
func (m *Manager) PutStakeRecord(collection uint64, owner [20]byte, rec *staking.StakeRecord) error {
	key := stakeKey{collection: collection, owner: owner}
	prev, had := m.stakes[key]
	m.record(func() {
		if had {
			m.stakes[key] = prev
		} else {
			delete(m.stakes, key)
		}
	})
	if rec == nil || rec.Empty() {
		delete(m.stakes, key)
	} else {
		m.stakes[key] = rec.Clone()
	}
	m.markDirty(sectionStakes)
	return nil
}

// TokenStaker implements staking.State.
func (m *Manager) TokenStaker(collection, tokenID uint64) ([20]byte, bool, error) {
	owner, ok := m.tokenStakers[tokenKey{collection: collection, tokenID: tokenID}]
	return owner, ok, nil
}

// SetTokenStaker implements staking.State.
func (m *Manager) SetTokenStaker(collection, tokenID uint64, owner [20]byte) error {
	key := tokenKey{collection: collection, tokenID: tokenID}
	prev, had := m.tokenStakers[key]
	m.record(func() {
		if had {
			m.tokenStakers[key] = prev
		} else {
			delete(m.tokenStakers, key)
		}
	})
	m.tokenStakers[key] = owner
	m.markDirty(sectionStakes)
	return nil
}

// ClearTokenStaker implements staking.State.
func (m *Manager) ClearTokenStaker(collection, tokenID uint64) error {
	key := tokenKey{collection: collection, tokenID: tokenID}
	prev, had := m.tokenStakers[key]
	if !had {
		return nil
	}
	m.record(func() { m.tokenStakers[key] = prev })
	delete(m.tokenStakers, key)
	m.markDirty(sectionStakes)
	return nil
}

// TraitOverride implements staking.State.
func (m *Manager) TraitOverride(collection, tokenID uint64) (*staking.TraitOverride, bool, error) {
	override, ok := m.traits[tokenKey{collection: collection, tokenID: tokenID}]
	if !ok {
		return nil, false, nil
	}
	copied := *override
	return &copied, true, nil
}

// PutTraitOverride implements staking.State.
func (m *Manager) PutTraitOverride(collection, tokenID uint64, override *staking.TraitOverride) error {
	if override == nil {
		return errors.New("state: nil trait override")
	}
	key := tokenKey{collection: collection, tokenID: tokenID}
	prev, had := m.traits[key]
	m.record(func() {
		if had {
			m.traits[key] = prev
		} else {
			delete(m.traits, key)
		}
	})
	copied := *override
	m.traits[key] = &copied
	m.markDirty(sectionTraits)
	return nil
}

// PointsAccount implements staking.State and claims.State. A missing account
// reads as zeroed, never as an error.
func (m *Manager) PointsAccount(owner [20]byte) (*staking.PointsAccount, error) {
	account, ok := m.accounts[owner]
	if !ok {
		return staking.NewPointsAccount(), nil
	}
	return account.Clone(), nil
}

// PutPointsAccount implements staking.State and claims.State.
func (m *Manager) PutPointsAccount(owner [20]byte, account *staking.PointsAccount) error {
	if account == nil {
		return errors.New("state: nil points account")
	}
	prev, had := m.accounts[owner]
	m.record(func() {
		if had {
			m.accounts[owner] = prev
		} else {
			delete(m.accounts, owner)
		}
	})
	m.accounts[owner] = account.Clone()
	m.markDirty(sectionAccounts)
	return nil
}

// VaultEntry implements vault.State.
func (m *Manager) VaultEntry(id uint64) (*vault.Entry, bool, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, false, nil
	}
	return entry.Clone(), true, nil
}

// PutVaultEntry implements vault.State.
func (m *Manager) PutVaultEntry(entry *vault.Entry) error {
	if entry == nil {
		return errors.New("state: nil vault entry")
	}
	prev, had := m.entries[entry.ID]
	m.record(func() {
		if had {
			m.entries[entry.ID] = prev
		} else {
			delete(m.entries, entry.ID)
		}
	})
	m.entries[entry.ID] = entry.Clone()
	m.markDirty(sectionEntries)
	return nil
}

// AppendRedemption implements vault.State.
func (m *Manager) AppendRedemption(catalog uint64, redemption vault.Redemption) error {
	prev := m.redemptions[catalog]
	m.record(func() { m.redemptions[catalog] = prev })
	m.redemptions[catalog] = append(append([]vault.Redemption(nil), prev...), redemption)
	m.markDirty(sectionRedemptions)
	return nil
}

// Redemptions implements vault.State.
func (m *Manager) Redemptions(catalog uint64) ([]vault.Redemption, error) {
	return append([]vault.Redemption(nil), m.redemptions[catalog]...), nil
}

// CollectionIDs lists the configured collections for reporting.
func (m *Manager) CollectionIDs() []uint64 {
	ids := make([]uint64, 0, len(m.collections))
	for id := range m.collections {
		ids = append(ids, id)
	}
	return ids
}

// EntryIDs lists the configured catalog entries for reporting.
func (m *Manager) EntryIDs() []uint64 {
	ids := make([]uint64, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids
}

func formatAddr(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func parseAddr(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, err
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("state: address %q has %d bytes", s, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}
