// Package core wires the staking engine, the vault engine and the claim
// coordinator over a single ledger and exposes the operations the hosting
// surfaces (RPC, gateway, daemon) call. Every operation runs under the ledger
// lock and commits only on success.
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"

	"stakevault/core/state"
	"stakevault/native/assets"
	"stakevault/native/claims"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/native/vault"
	"stakevault/observability/metrics"
)

// Node owns the ledger and the engines operating on it.
type Node struct {
	state       *state.Manager
	staking     *staking.Engine
	vault       *vault.Engine
	coordinator *claims.Coordinator
	logger      *slog.Logger
	metrics     *metrics.StakevaultMetrics
}

// NewNode assembles the engines over the given ledger and asset source.
// custody is the address the vault dispenses held inventory from.
func NewNode(manager *state.Manager, source assets.Source, custody [20]byte, logger *slog.Logger) (*Node, error) {
	if manager == nil {
		return nil, fmt.Errorf("core: nil state manager")
	}
	if source == nil {
		return nil, fmt.Errorf("core: nil asset source")
	}
	if logger == nil {
		logger = slog.Default()
	}
	stakingEngine := staking.NewEngine(manager, source)
	stakingEngine.SetStatusView(manager)
	vaultEngine := vault.NewEngine(manager, source, custody)
	coordinator := claims.NewCoordinator(manager, stakingEngine, vaultEngine)
	coordinator.SetStatusView(manager)
	return &Node{
		state:       manager,
		staking:     stakingEngine,
		vault:       vaultEngine,
		coordinator: coordinator,
		logger:      logger,
		metrics:     metrics.Stakevault(),
	}, nil
}

// State exposes the underlying ledger for host wiring (seeding, status view).
func (n *Node) State() *state.Manager { return n.state }

// withState runs fn under the ledger lock and commits its mutations. Any
// error unwinds everything fn touched.
func (n *Node) withState(fn func() error) error {
	n.state.Lock()
	defer n.state.Unlock()
	snapshot := n.state.Snapshot()
	if err := fn(); err != nil {
		n.state.RevertToSnapshot(snapshot)
		return err
	}
	return n.state.Commit()
}

// readState runs fn under the ledger lock without committing. Queries only.
func (n *Node) readState(fn func() error) error {
	n.state.Lock()
	defer n.state.Unlock()
	return fn()
}

// Stake stakes unique identifiers for the caller.
func (n *Node) Stake(caller [20]byte, collection uint64, tokenIDs []uint64, proofs []*staking.TraitProof) error {
	err := n.withState(func() error {
		return n.staking.Stake(caller, collection, tokenIDs, proofs)
	})
	if err != nil {
		return err
	}
	n.metrics.ObserveStake(strconv.FormatUint(collection, 10))
	n.logger.Info("stake", "collection", collection, "tokens", len(tokenIDs))
	return nil
}

// StakeAmount stakes a pooled or fungible amount for the caller.
func (n *Node) StakeAmount(caller [20]byte, collection uint64, amount *big.Int) error {
	err := n.withState(func() error {
		return n.staking.StakeAmount(caller, collection, amount)
	})
	if err != nil {
		return err
	}
	n.metrics.ObserveStake(strconv.FormatUint(collection, 10))
	return nil
}

// Unstake releases the caller's unique identifiers and banks their accrual.
func (n *Node) Unstake(caller [20]byte, collection uint64, tokenIDs []uint64) error {
	err := n.withState(func() error {
		return n.staking.Unstake(caller, collection, tokenIDs)
	})
	if err != nil {
		return err
	}
	n.metrics.ObserveUnstake(strconv.FormatUint(collection, 10))
	return nil
}

// AdminUnstake releases owner's identifiers on an admin's authority.
func (n *Node) AdminUnstake(caller, owner [20]byte, collection uint64, tokenIDs []uint64) error {
	err := n.withState(func() error {
		return n.staking.AdminUnstake(caller, owner, collection, tokenIDs)
	})
	if err != nil {
		return err
	}
	n.metrics.ObserveUnstake(strconv.FormatUint(collection, 10))
	return nil
}

// UnstakeAmount releases the caller's amount position.
func (n *Node) UnstakeAmount(caller [20]byte, collection uint64) error {
	err := n.withState(func() error {
		return n.staking.UnstakeAmount(caller, collection)
	})
	if err != nil {
		return err
	}
	n.metrics.ObserveUnstake(strconv.FormatUint(collection, 10))
	return nil
}

// AdminUnstakeAmount releases owner's amount position on an admin's authority.
func (n *Node) AdminUnstakeAmount(caller, owner [20]byte, collection uint64) error {
	err := n.withState(func() error {
		return n.staking.AdminUnstakeAmount(caller, owner, collection)
	})
	if err != nil {
		return err
	}
	n.metrics.ObserveUnstake(strconv.FormatUint(collection, 10))
	return nil
}

// Balance reports owner's spendable points. verify re-checks external
// ownership the way a claim would; display callers pass false.
func (n *Node) Balance(owner [20]byte, collections []uint64, verify bool) (*big.Int, error) {
	var balance *big.Int
	err := n.readState(func() error {
		var err error
		balance, err = n.staking.SpendablePoints(owner, collections, verify)
		return err
	})
	return balance, err
}

// Position returns owner's stake record for a collection.
func (n *Node) Position(owner [20]byte, collection uint64) (*staking.StakeRecord, error) {
	var record *staking.StakeRecord
	err := n.readState(func() error {
		var err error
		record, err = n.staking.Position(owner, collection)
		return err
	})
	return record, err
}

// VaultEntry returns a catalog entry.
func (n *Node) VaultEntry(catalog uint64) (*vault.Entry, error) {
	var entry *vault.Entry
	err := n.readState(func() error {
		var err error
		entry, err = n.vault.Entry(catalog)
		return err
	})
	return entry, err
}

// Claim spends the caller's points across catalog entries, all-or-nothing.
func (n *Node) Claim(caller [20]byte, catalogIDs, quantities, stakingCollections []uint64) (*claims.Result, error) {
	var result *claims.Result
	err := n.withState(func() error {
		var err error
		result, err = n.coordinator.Claim(caller, catalogIDs, quantities, stakingCollections)
		return err
	})
	if err != nil {
		n.metrics.ObserveClaimFailure(claimFailureReason(err))
		return nil, err
	}
	for _, catalog := range catalogIDs {
		n.metrics.ObserveClaim(strconv.FormatUint(catalog, 10))
	}
	spent, _ := new(big.Float).SetInt(result.TotalCost).Float64()
	n.metrics.AddPointsSpent(spent)
	n.logger.Info("claim", "catalogs", catalogIDs, "cost", result.TotalCost.String())
	return result, nil
}

// claimFailureReason folds a claim error into one of a fixed set of label
// values. Raw error text carries ids and amounts and would blow up metric
// cardinality.
func claimFailureReason(err error) string {
	switch {
	case errors.Is(err, claims.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, claims.ErrNoPoints):
		return "no_points"
	case errors.Is(err, claims.ErrEmptyClaim), errors.Is(err, claims.ErrLengthMismatch):
		return "malformed_request"
	case errors.Is(err, vault.ErrUnknownEntry):
		return "unknown_entry"
	case errors.Is(err, vault.ErrBelowHurdle):
		return "below_hurdle"
	case errors.Is(err, vault.ErrClaimCapExceeded):
		return "cap_exceeded"
	case errors.Is(err, vault.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, vault.ErrPoolExhausted), errors.Is(err, vault.ErrPickFailed):
		return "pool_exhausted"
	case errors.Is(err, staking.ErrNotOwner):
		return "ownership_changed"
	case errors.Is(err, nativecommon.ErrNotPublic):
		return "not_public"
	default:
		return "internal"
	}
}

// ClaimHistory returns the physical redemption log for a catalog entry.
func (n *Node) ClaimHistory(catalog uint64) ([]vault.Redemption, error) {
	var log []vault.Redemption
	err := n.readState(func() error {
		var err error
		log, err = n.vault.RedemptionLog(catalog)
		return err
	})
	return log, err
}

// Status reports the system gate.
func (n *Node) Status() nativecommon.Status {
	n.state.Lock()
	defer n.state.Unlock()
	return n.state.Status()
}

// SetStatus transitions the system gate. Admin-only.
func (n *Node) SetStatus(caller [20]byte, status nativecommon.Status) error {
	return n.withState(func() error {
		if !n.state.HasRole(staking.RoleAdmin, caller) {
			return staking.ErrUnauthorized
		}
		n.state.SetStatus(status)
		return nil
	})
}

// GrantPoints applies an admin correction to owner's granted points.
func (n *Node) GrantPoints(caller, owner [20]byte, delta *big.Int) error {
	return n.withState(func() error {
		return n.staking.GrantPoints(caller, owner, delta)
	})
}

// AdminSetTraits records a bonus override without a proof. Admin-only.
func (n *Node) AdminSetTraits(caller [20]byte, collection, tokenID uint64, premium, secondary uint8) error {
	return n.withState(func() error {
		return n.staking.AdminSetTraits(caller, collection, tokenID, premium, secondary)
	})
}

// RegisterCollection creates or replaces a stakeable collection. Admin-only.
func (n *Node) RegisterCollection(caller [20]byte, cfg *staking.CollectionConfig) error {
	return n.withState(func() error {
		return n.staking.RegisterCollection(caller, cfg)
	})
}

// SetTraitRoot rotates a collection's trait root. Admin-only.
func (n *Node) SetTraitRoot(caller [20]byte, collection uint64, root [32]byte) error {
	return n.withState(func() error {
		return n.staking.SetTraitRoot(caller, collection, root)
	})
}

// UpsertVaultEntry creates or replaces a catalog entry. Admin-only.
func (n *Node) UpsertVaultEntry(caller [20]byte, entry *vault.Entry) error {
	err := n.withState(func() error {
		return n.vault.UpsertEntry(caller, entry)
	})
	if err != nil {
		return err
	}
	if entry != nil && entry.Kind == vault.KindPoolNFT {
		n.metrics.SetPoolSize(strconv.FormatUint(entry.ID, 10), float64(len(entry.Pool)))
	}
	return nil
}

// AddPoolTokens loads identifiers into a pool entry. Admin-only.
func (n *Node) AddPoolTokens(caller [20]byte, catalog uint64, tokenIDs []uint64) error {
	return n.withState(func() error {
		return n.vault.AddPoolTokens(caller, catalog, tokenIDs)
	})
}

// GrantAdmin gives addr the admin role. Host wiring only, not exposed over
// RPC.
func (n *Node) GrantAdmin(addr [20]byte) error {
	return n.withState(func() error {
		n.state.GrantRole(staking.RoleAdmin, addr)
		return nil
	})
}
