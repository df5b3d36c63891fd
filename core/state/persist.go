package state

import (
	"encoding/json"
	"errors"
	"fmt"

	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/native/vault"
	"stakevault/storage"
)

const (
	sectionMeta        = "stakevault/meta"
	sectionCollections = "stakevault/collections"
	sectionStakes      = "stakevault/stakes"
	sectionTraits      = "stakevault/traits"
	sectionAccounts    = "stakevault/accounts"
	sectionEntries     = "stakevault/entries"
	sectionRedemptions = "stakevault/redemptions"
)

type metaDoc struct {
	Status uint8     `json:"status"`
	Roles  []roleDoc `json:"roles"`
}

type roleDoc struct {
	Role    string   `json:"role"`
	Holders []string `json:"holders"`
}

type stakeDoc struct {
	Collection uint64               `json:"collection"`
	Owner      string               `json:"owner"`
	Record     *staking.StakeRecord `json:"record"`
}

type stakesDoc struct {
	Records      []stakeDoc       `json:"records"`
	TokenStakers []tokenStakerDoc `json:"tokenStakers"`
}

type tokenStakerDoc struct {
	Collection uint64 `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
	Owner      string `json:"owner"`
}

type traitDoc struct {
	Collection uint64 `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
	Premium    uint8  `json:"premium"`
	Secondary  uint8  `json:"secondary"`
}

type accountDoc struct {
	Owner   string                 `json:"owner"`
	Account *staking.PointsAccount `json:"account"`
}

type redemptionsDoc struct {
	Catalog uint64             `json:"catalog"`
	Entries []vault.Redemption `json:"entries"`
}

// Commit flushes every dirty section to the backing database. Callers invoke
// it after a successful operation; failed operations revert their journal
// instead and never reach here with their mutations intact.
func (m *Manager) Commit() error {
	if m.db == nil {
		m.DiscardJournal()
		return nil
	}
	for section := range m.dirty {
		payload, err := m.encodeSection(section)
		if err != nil {
			return err
		}
		if err := m.db.Put([]byte(section), payload); err != nil {
			return err
		}
		delete(m.dirty, section)
	}
	m.DiscardJournal()
	return nil
}

func (m *Manager) encodeSection(section string) ([]byte, error) {
	switch section {
	case sectionMeta:
		doc := metaDoc{Status: uint8(m.status)}
		for role, holders := range m.roles {
			entry := roleDoc{Role: role}
			for addr := range holders {
				entry.Holders = append(entry.Holders, formatAddr(addr))
			}
			doc.Roles = append(doc.Roles, entry)
		}
		return json.Marshal(doc)
	case sectionCollections:
		docs := make([]*staking.CollectionConfig, 0, len(m.collections))
		for _, cfg := range m.collections {
			docs = append(docs, cfg)
		}
		return json.Marshal(docs)
	case sectionStakes:
		doc := stakesDoc{}
		for key, rec := range m.stakes {
			doc.Records = append(doc.Records, stakeDoc{Collection: key.collection, Owner: formatAddr(key.owner), Record: rec})
		}
		for key, owner := range m.tokenStakers {
			doc.TokenStakers = append(doc.TokenStakers, tokenStakerDoc{Collection: key.collection, TokenID: key.tokenID, Owner: formatAddr(owner)})
		}
		return json.Marshal(doc)
	case sectionTraits:
		docs := make([]traitDoc, 0, len(m.traits))
		for key, override := range m.traits {
			docs = append(docs, traitDoc{Collection: key.collection, TokenID: key.tokenID, Premium: override.PremiumLevel, Secondary: override.SecondaryLevel})
		}
		return json.Marshal(docs)
	case sectionAccounts:
		docs := make([]accountDoc, 0, len(m.accounts))
		for owner, account := range m.accounts {
			docs = append(docs, accountDoc{Owner: formatAddr(owner), Account: account})
		}
		return json.Marshal(docs)
	case sectionEntries:
		docs := make([]*vault.Entry, 0, len(m.entries))
		for _, entry := range m.entries {
			docs = append(docs, entry)
		}
		return json.Marshal(docs)
	case sectionRedemptions:
		docs := make([]redemptionsDoc, 0, len(m.redemptions))
		for catalog, entries := range m.redemptions {
			docs = append(docs, redemptionsDoc{Catalog: catalog, Entries: entries})
		}
		return json.Marshal(docs)
	default:
		return nil, fmt.Errorf("state: unknown section %q", section)
	}
}

func (m *Manager) loadSection(section string, decode func([]byte) error) error {
	raw, err := m.db.Get([]byte(section))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := decode(raw); err != nil {
		return fmt.Errorf("state: decoding %s: %w", section, err)
	}
	return nil
}

func (m *Manager) load() error {
	if err := m.loadSection(sectionMeta, func(raw []byte) error {
		var doc metaDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		m.status = nativecommon.Status(doc.Status)
		for _, role := range doc.Roles {
			holders := make(map[[20]byte]struct{}, len(role.Holders))
			for _, encoded := range role.Holders {
				addr, err := parseAddr(encoded)
				if err != nil {
					return err
				}
				holders[addr] = struct{}{}
			}
			m.roles[role.Role] = holders
		}
		return nil
	}); err != nil {
		return err
	}
	if err := m.loadSection(sectionCollections, func(raw []byte) error {
		var docs []*staking.CollectionConfig
		if err := json.Unmarshal(raw, &docs); err != nil {
			return err
		}
		for _, cfg := range docs {
			m.collections[cfg.ID] = cfg.Normalize()
		}
		return nil
	}); err != nil {
		return err
	}
	if err := m.loadSection(sectionStakes, func(raw []byte) error {
		var doc stakesDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		for _, rec := range doc.Records {
			owner, err := parseAddr(rec.Owner)
			if err != nil {
				return err
			}
			if rec.Record == nil {
				continue
			}
			if rec.Record.StakedAt == nil {
				rec.Record.StakedAt = make(map[uint64]uint64)
			}
			m.stakes[stakeKey{collection: rec.Collection, owner: owner}] = rec.Record
		}
		for _, ts := range doc.TokenStakers {
			owner, err := parseAddr(ts.Owner)
			if err != nil {
				return err
			}
			m.tokenStakers[tokenKey{collection: ts.Collection, tokenID: ts.TokenID}] = owner
		}
		return nil
	}); err != nil {
		return err
	}
	if err := m.loadSection(sectionTraits, func(raw []byte) error {
		var docs []traitDoc
		if err := json.Unmarshal(raw, &docs); err != nil {
			return err
		}
		for _, doc := range docs {
			m.traits[tokenKey{collection: doc.Collection, tokenID: doc.TokenID}] = &staking.TraitOverride{
				PremiumLevel:   doc.Premium,
				SecondaryLevel: doc.Secondary,
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := m.loadSection(sectionAccounts, func(raw []byte) error {
		var docs []accountDoc
		if err := json.Unmarshal(raw, &docs); err != nil {
			return err
		}
		for _, doc := range docs {
			owner, err := parseAddr(doc.Owner)
			if err != nil {
				return err
			}
			if doc.Account != nil {
				m.accounts[owner] = doc.Account.Normalize()
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := m.loadSection(sectionEntries, func(raw []byte) error {
		var docs []*vault.Entry
		if err := json.Unmarshal(raw, &docs); err != nil {
			return err
		}
		for _, entry := range docs {
			m.entries[entry.ID] = entry.Normalize()
		}
		return nil
	}); err != nil {
		return err
	}
	return m.loadSection(sectionRedemptions, func(raw []byte) error {
		var docs []redemptionsDoc
		if err := json.Unmarshal(raw, &docs); err != nil {
			return err
		}
		for _, doc := range docs {
			m.redemptions[doc.Catalog] = doc.Entries
		}
		return nil
	})
}
