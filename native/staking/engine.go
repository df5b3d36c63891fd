package staking

import (
	"fmt"
	"math/big"
	"time"

	"stakevault/core/events"
	"stakevault/native/assets"
	nativecommon "stakevault/native/common"
)

// RoleAdmin authorizes collection configuration, trait overrides, point
// grants and admin unstakes.
const RoleAdmin = "ROLE_STAKEVAULT_ADMIN"

// State describes the persistence the staking engine needs from the hosting
// ledger. Snapshot/RevertToSnapshot supply the all-or-nothing guarantee for
// multi-identifier operations.
type State interface {
	CollectionConfig(id uint64) (*CollectionConfig, bool, error)
	PutCollectionConfig(cfg *CollectionConfig) error
	StakeRecord(collection uint64, owner [20]byte) (*StakeRecord, bool, error)
	PutStakeRecord(collection uint64, owner [20]byte, rec *StakeRecord) error
	TokenStaker(collection, tokenID uint64) ([20]byte, bool, error)
	SetTokenStaker(collection, tokenID uint64, owner [20]byte) error
	ClearTokenStaker(collection, tokenID uint64) error
	TraitOverride(collection, tokenID uint64) (*TraitOverride, bool, error)
	PutTraitOverride(collection, tokenID uint64, override *TraitOverride) error
	PointsAccount(owner [20]byte) (*PointsAccount, error)
	PutPointsAccount(owner [20]byte, account *PointsAccount) error
	HasRole(role string, addr [20]byte) bool
	Snapshot() int
	RevertToSnapshot(id int)
}

// Engine orchestrates stake and unstake transitions over the accrual ledger.
// Staking is non-custodial: ownership stays with the staker in the external
// registry and is re-verified, never cached.
type Engine struct {
	state   State
	assets  assets.Source
	status  nativecommon.StatusView
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a staking engine with a no-op emitter.
func NewEngine(state State, source assets.Source) *Engine {
	return &Engine{
		state:   state,
		assets:  source,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetStatusView configures the system status gate checked by every mutation.
func (e *Engine) SetStatusView(v nativecommon.StatusView) { e.status = v }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return uint64(e.nowFn())
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.assets == nil {
		return ErrNilAssets
	}
	return nil
}

func (e *Engine) activeCollection(id uint64) (*CollectionConfig, error) {
	cfg, ok, err := e.state.CollectionConfig(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCollectionNotFound, id)
	}
	if !cfg.Active {
		return nil, fmt.Errorf("%w: %d", ErrCollectionInactive, id)
	}
	return cfg.Normalize(), nil
}

// Stake records the caller's unique identifiers as staked from now on. The
// caller must currently own every identifier in the external registry and no
// identifier may already be staked by anyone. Valid trait proofs commit a
// TraitOverride for the identifier; invalid or absent proofs record nothing
// and do not fail the stake. The whole call is all-or-nothing.
func (e *Engine) Stake(caller [20]byte, collection uint64, tokenIDs []uint64, proofs []*TraitProof) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.status); err != nil {
		return err
	}
	if len(tokenIDs) == 0 {
		return fmt.Errorf("%w: no identifiers", ErrInvalidAmount)
	}
	if proofs != nil && len(proofs) != len(tokenIDs) {
		return fmt.Errorf("staking: proofs length %d does not match identifiers %d", len(proofs), len(tokenIDs))
	}
	cfg, err := e.activeCollection(collection)
	if err != nil {
		return err
	}
	if cfg.Kind != KindUniqueNFT {
		return fmt.Errorf("%w: collection %d", ErrWrongCollectionKind, collection)
	}
	registry, err := e.assets.NFT(collection)
	if err != nil {
		return err
	}

	snapshot := e.state.Snapshot()
	if err := e.stakeUnique(caller, cfg, registry, tokenIDs, proofs); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	return nil
}

func (e *Engine) stakeUnique(caller [20]byte, cfg *CollectionConfig, registry assets.NFTRegistry, tokenIDs []uint64, proofs []*TraitProof) error {
	record, ok, err := e.state.StakeRecord(cfg.ID, caller)
	if err != nil {
		return err
	}
	if !ok {
		record = NewStakeRecord()
	} else {
		record = record.Clone()
	}
	now := e.now()
	for i, tokenID := range tokenIDs {
		if _, staked, err := e.state.TokenStaker(cfg.ID, tokenID); err != nil {
			return err
		} else if staked {
			return fmt.Errorf("%w: token %d", ErrAlreadyStaked, tokenID)
		}
		owner, err := registry.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		if owner != caller {
			return fmt.Errorf("%w: token %d", ErrNotOwner, tokenID)
		}
		if proofs != nil {
			e.commitTraitProof(cfg, tokenID, proofs[i])
		}
		record.TokenIDs = append(record.TokenIDs, tokenID)
		record.StakedAt[tokenID] = now
		if err := e.state.SetTokenStaker(cfg.ID, tokenID, caller); err != nil {
			return err
		}
	}
	if err := e.state.PutStakeRecord(cfg.ID, caller, record); err != nil {
		return err
	}
	e.emit(events.StakingStaked{Owner: caller, Collection: cfg.ID, TokenIDs: append([]uint64(nil), tokenIDs...), StakedAt: now})
	return nil
}

// commitTraitProof records a TraitOverride when the proof verifies against
// the collection's current root. Verification failure is silent.
func (e *Engine) commitTraitProof(cfg *CollectionConfig, tokenID uint64, proof *TraitProof) {
	if proof == nil {
		return
	}
	if !VerifyTraitProof(cfg.TraitRoot, tokenID, proof) {
		return
	}
	override := &TraitOverride{PremiumLevel: proof.PremiumLevel, SecondaryLevel: proof.SecondaryLevel}
	if err := e.state.PutTraitOverride(cfg.ID, tokenID, override); err != nil {
		return
	}
	e.emit(events.StakingTraitBound{
		Collection:     cfg.ID,
		TokenID:        tokenID,
		PremiumLevel:   proof.PremiumLevel,
		SecondaryLevel: proof.SecondaryLevel,
	})
}

// StakeAmount records a pooled or fungible stake. A staker holds at most one
// amount position per collection; the external balance must cover the amount
// at call time.
func (e *Engine) StakeAmount(caller [20]byte, collection uint64, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.status); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.activeCollection(collection)
	if err != nil {
		return err
	}
	balance, err := e.externalBalance(cfg, caller)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientBalance, balance, amount)
	}
	record, ok, err := e.state.StakeRecord(collection, caller)
	if err != nil {
		return err
	}
	if ok && record.Amount != nil && record.Amount.Sign() > 0 {
		return fmt.Errorf("%w: amount position exists", ErrAlreadyStaked)
	}
	if !ok {
		record = NewStakeRecord()
	} else {
		record = record.Clone()
	}
	now := e.now()
	record.Amount = new(big.Int).Set(amount)
	record.AmountStakedAt = now
	if err := e.state.PutStakeRecord(collection, caller, record); err != nil {
		return err
	}
	e.emit(events.StakingStaked{Owner: caller, Collection: collection, Amount: new(big.Int).Set(amount), StakedAt: now})
	return nil
}

func (e *Engine) externalBalance(cfg *CollectionConfig, owner [20]byte) (*big.Int, error) {
	switch cfg.Kind {
	case KindPooledNFT:
		registry, err := e.assets.Slot(cfg.ID)
		if err != nil {
			return nil, err
		}
		return registry.BalanceOf(owner, cfg.SlotID)
	case KindFungible:
		registry, err := e.assets.Fungible(cfg.ID)
		if err != nil {
			return nil, err
		}
		return registry.BalanceOf(owner)
	default:
		return nil, fmt.Errorf("%w: collection %d", ErrWrongCollectionKind, cfg.ID)
	}
}

// Unstake removes the caller's identifiers from the staked set, folding their
// accrued points into the caller's account. All-or-nothing across the batch.
func (e *Engine) Unstake(caller [20]byte, collection uint64, tokenIDs []uint64) error {
	return e.unstake(caller, caller, collection, tokenIDs)
}

// AdminUnstake runs the same algorithm as Unstake on behalf of owner. The
// caller must hold RoleAdmin.
func (e *Engine) AdminUnstake(caller, owner [20]byte, collection uint64, tokenIDs []uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.state.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	return e.unstake(caller, owner, collection, tokenIDs)
}

func (e *Engine) unstake(caller, owner [20]byte, collection uint64, tokenIDs []uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.status); err != nil {
		return err
	}
	if len(tokenIDs) == 0 {
		return fmt.Errorf("%w: no identifiers", ErrInvalidAmount)
	}
	cfg, ok, err := e.state.CollectionConfig(collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrCollectionNotFound, collection)
	}
	cfg = cfg.Normalize()
	if cfg.Kind != KindUniqueNFT {
		return fmt.Errorf("%w: collection %d", ErrWrongCollectionKind, collection)
	}

	snapshot := e.state.Snapshot()
	banked, err := e.unstakeUnique(owner, cfg, tokenIDs)
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	evt := events.StakingUnstaked{Owner: owner, Collection: collection, TokenIDs: append([]uint64(nil), tokenIDs...), PointsBanked: banked}
	if caller != owner {
		evt.AdminCaller = caller
	}
	e.emit(evt)
	return nil
}

func (e *Engine) unstakeUnique(owner [20]byte, cfg *CollectionConfig, tokenIDs []uint64) (*big.Int, error) {
	record, ok, err := e.state.StakeRecord(cfg.ID, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no position", ErrNotStaked)
	}
	record = record.Clone()
	now := e.now()
	banked := big.NewInt(0)
	for _, tokenID := range tokenIDs {
		stakedAt, present := record.StakedAt[tokenID]
		if !present {
			return nil, fmt.Errorf("%w: token %d", ErrNotStaked, tokenID)
		}
		// locate then swap-with-last; staked sets are small, so the scan
		// is acceptable.
		idx := -1
		for i, id := range record.TokenIDs {
			if id == tokenID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: token %d", ErrNotStaked, tokenID)
		}
		last := len(record.TokenIDs) - 1
		record.TokenIDs[idx] = record.TokenIDs[last]
		record.TokenIDs = record.TokenIDs[:last]
		delete(record.StakedAt, tokenID)

		override, _, err := e.state.TraitOverride(cfg.ID, tokenID)
		if err != nil {
			return nil, err
		}
		banked.Add(banked, accruedUnique(cfg, override, stakedAt, now))
		if err := e.state.ClearTokenStaker(cfg.ID, tokenID); err != nil {
			return nil, err
		}
	}
	if err := e.state.PutStakeRecord(cfg.ID, owner, record); err != nil {
		return nil, err
	}
	if banked.Sign() > 0 {
		if err := e.bankPoints(owner, banked); err != nil {
			return nil, err
		}
	}
	return banked, nil
}

// UnstakeAmount releases the caller's entire pooled or fungible position,
// folding its accrued points into the caller's account.
func (e *Engine) UnstakeAmount(caller [20]byte, collection uint64) error {
	return e.unstakeAmount(caller, caller, collection)
}

// AdminUnstakeAmount releases owner's pooled or fungible position. The caller
// must hold RoleAdmin.
func (e *Engine) AdminUnstakeAmount(caller, owner [20]byte, collection uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.state.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	return e.unstakeAmount(caller, owner, collection)
}

func (e *Engine) unstakeAmount(caller, owner [20]byte, collection uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.status); err != nil {
		return err
	}
	cfg, ok, err := e.state.CollectionConfig(collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrCollectionNotFound, collection)
	}
	cfg = cfg.Normalize()
	if cfg.Kind == KindUniqueNFT {
		return fmt.Errorf("%w: collection %d", ErrWrongCollectionKind, collection)
	}
	record, ok, err := e.state.StakeRecord(collection, owner)
	if err != nil {
		return err
	}
	if !ok || record.Amount == nil || record.Amount.Sign() == 0 {
		return fmt.Errorf("%w: no amount position", ErrNotStaked)
	}
	record = record.Clone()
	now := e.now()
	banked := accruedAmount(cfg, record.Amount, record.AmountStakedAt, now)

	snapshot := e.state.Snapshot()
	amount := new(big.Int).Set(record.Amount)
	record.Amount = big.NewInt(0)
	record.AmountStakedAt = 0
	if err := e.state.PutStakeRecord(collection, owner, record); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	if banked.Sign() > 0 {
		if err := e.bankPoints(owner, banked); err != nil {
			e.state.RevertToSnapshot(snapshot)
			return err
		}
	}
	evt := events.StakingUnstaked{Owner: owner, Collection: collection, Amount: amount, PointsBanked: banked}
	if caller != owner {
		evt.AdminCaller = caller
	}
	e.emit(evt)
	return nil
}

func (e *Engine) bankPoints(owner [20]byte, points *big.Int) error {
	account, err := e.state.PointsAccount(owner)
	if err != nil {
		return err
	}
	account = account.Clone().Normalize()
	account.AfterUnstake.Add(account.AfterUnstake, points)
	return e.state.PutPointsAccount(owner, account)
}

// LivePoints computes the accrual currently pending over owner's staked
// positions in the given collections. With verifyOwnership set, the caller's
// continued external ownership of every counted identifier or balance is
// re-checked and any mismatch aborts with ErrNotOwner; spending decisions
// must use that mode, display queries may skip it.
func (e *Engine) LivePoints(owner [20]byte, collections []uint64, verifyOwnership bool) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	total := big.NewInt(0)
	for _, collection := range collections {
		cfg, ok, err := e.state.CollectionConfig(collection)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrCollectionNotFound, collection)
		}
		cfg = cfg.Normalize()
		record, ok, err := e.state.StakeRecord(collection, owner)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		switch cfg.Kind {
		case KindUniqueNFT:
			var registry assets.NFTRegistry
			if verifyOwnership {
				if registry, err = e.assets.NFT(collection); err != nil {
					return nil, err
				}
			}
			for _, tokenID := range record.TokenIDs {
				stakedAt, present := record.StakedAt[tokenID]
				if !present {
					continue
				}
				if verifyOwnership {
					current, err := registry.OwnerOf(tokenID)
					if err != nil {
						return nil, err
					}
					if current != owner {
						return nil, fmt.Errorf("%w: token %d", ErrNotOwner, tokenID)
					}
				}
				override, _, err := e.state.TraitOverride(collection, tokenID)
				if err != nil {
					return nil, err
				}
				total.Add(total, accruedUnique(cfg, override, stakedAt, now))
			}
		default:
			if record.Amount == nil || record.Amount.Sign() == 0 {
				continue
			}
			if verifyOwnership {
				balance, err := e.externalBalance(cfg, owner)
				if err != nil {
					return nil, err
				}
				if balance.Cmp(record.Amount) < 0 {
					return nil, fmt.Errorf("%w: collection %d", ErrNotOwner, collection)
				}
			}
			total.Add(total, accruedAmount(cfg, record.Amount, record.AmountStakedAt, now))
		}
	}
	return total, nil
}

// SpendablePoints derives owner's current balance: live accrual over the
// given collections plus banked and granted points minus redeemed, floored at
// zero.
func (e *Engine) SpendablePoints(owner [20]byte, collections []uint64, verifyOwnership bool) (*big.Int, error) {
	live, err := e.LivePoints(owner, collections, verifyOwnership)
	if err != nil {
		return nil, err
	}
	account, err := e.state.PointsAccount(owner)
	if err != nil {
		return nil, err
	}
	account = account.Clone().Normalize()
	balance := new(big.Int).Add(live, account.AfterUnstake)
	balance.Add(balance, account.AddOns)
	balance.Sub(balance, account.Redeemed)
	if balance.Sign() < 0 {
		balance.SetUint64(0)
	}
	return balance, nil
}

// Position returns a copy of owner's stake record for a collection for
// read-only reporting.
func (e *Engine) Position(owner [20]byte, collection uint64) (*StakeRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	record, ok, err := e.state.StakeRecord(collection, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewStakeRecord(), nil
	}
	return record.Clone(), nil
}
