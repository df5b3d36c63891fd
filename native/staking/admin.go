package staking

import (
	"fmt"
	"math/big"

	"stakevault/core/events"
)

// RegisterCollection persists a new or updated collection configuration.
// Configuration writes are admin-only and deliberately thin: validation plus
// a single put.
func (e *Engine) RegisterCollection(caller [20]byte, cfg *CollectionConfig) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidCollection)
	}
	sanitized := cfg.Clone().Normalize()
	if sanitized.BaseRate.Sign() < 0 {
		return fmt.Errorf("%w: negative base rate", ErrInvalidCollection)
	}
	for _, rate := range sanitized.PremiumBonuses {
		if rate != nil && rate.Sign() < 0 {
			return fmt.Errorf("%w: negative premium bonus", ErrInvalidCollection)
		}
	}
	for _, rate := range sanitized.SecondaryBonuses {
		if rate != nil && rate.Sign() < 0 {
			return fmt.Errorf("%w: negative secondary bonus", ErrInvalidCollection)
		}
	}
	return e.state.PutCollectionConfig(sanitized)
}

// SetTraitRoot rotates the Merkle root used to verify trait proofs.
// Overrides committed under earlier roots stay in force.
func (e *Engine) SetTraitRoot(caller [20]byte, collection uint64, root [32]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	cfg, ok, err := e.state.CollectionConfig(collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrCollectionNotFound, collection)
	}
	cfg = cfg.Clone()
	cfg.TraitRoot = root
	return e.state.PutCollectionConfig(cfg)
}

// AdminSetTraits records a trait override directly, bypassing proof
// verification.
func (e *Engine) AdminSetTraits(caller [20]byte, collection, tokenID uint64, premium, secondary uint8) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if _, ok, err := e.state.CollectionConfig(collection); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %d", ErrCollectionNotFound, collection)
	}
	override := &TraitOverride{PremiumLevel: premium, SecondaryLevel: secondary}
	if err := e.state.PutTraitOverride(collection, tokenID, override); err != nil {
		return err
	}
	e.emit(events.StakingTraitBound{
		Collection:     collection,
		TokenID:        tokenID,
		PremiumLevel:   premium,
		SecondaryLevel: secondary,
		AdminOverride:  true,
	})
	return nil
}

// GrantPoints adjusts owner's add-on points by delta, which may be negative
// for corrections. The resulting add-on balance never drops below zero.
func (e *Engine) GrantPoints(caller, owner [20]byte, delta *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if delta == nil || delta.Sign() == 0 {
		return ErrInvalidAmount
	}
	account, err := e.state.PointsAccount(owner)
	if err != nil {
		return err
	}
	account = account.Clone().Normalize()
	account.AddOns.Add(account.AddOns, delta)
	if account.AddOns.Sign() < 0 {
		account.AddOns.SetUint64(0)
	}
	if err := e.state.PutPointsAccount(owner, account); err != nil {
		return err
	}
	e.emit(events.StakingPointsGranted{Owner: owner, Amount: new(big.Int).Set(delta), Caller: caller})
	return nil
}
