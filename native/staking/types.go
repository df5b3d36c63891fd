package staking

import "math/big"

// CollectionKind tags how a collection's assets are held by the external
// registry backing it.
type CollectionKind uint8

const (
	// KindUniqueNFT collections stake individual ERC-721 style identifiers.
	KindUniqueNFT CollectionKind = iota
	// KindPooledNFT collections stake an ERC-1155 style balance held under a
	// fixed slot identifier.
	KindPooledNFT
	// KindFungible collections stake a plain token balance.
	KindFungible
)

// CollectionConfig is the per-collection accrual configuration. It is created
// and mutated only through the engine's admin operations and read on every
// stake, unstake and balance query.
type CollectionConfig struct {
	ID               uint64
	Active           bool
	Kind             CollectionKind
	SlotID           uint64
	BaseRate         *big.Int
	PremiumBonuses   []*big.Int
	SecondaryBonuses []*big.Int
	TraitRoot        [32]byte
}

// Clone produces a deep copy of the configuration.
func (c *CollectionConfig) Clone() *CollectionConfig {
	if c == nil {
		return nil
	}
	clone := &CollectionConfig{
		ID:        c.ID,
		Active:    c.Active,
		Kind:      c.Kind,
		SlotID:    c.SlotID,
		TraitRoot: c.TraitRoot,
	}
	if c.BaseRate != nil {
		clone.BaseRate = new(big.Int).Set(c.BaseRate)
	}
	clone.PremiumBonuses = cloneRates(c.PremiumBonuses)
	clone.SecondaryBonuses = cloneRates(c.SecondaryBonuses)
	return clone
}

// Normalize ensures pointer fields are non-nil. Returns the receiver for
// chaining.
func (c *CollectionConfig) Normalize() *CollectionConfig {
	if c == nil {
		return nil
	}
	if c.BaseRate == nil {
		c.BaseRate = big.NewInt(0)
	}
	return c
}

// premiumRate resolves the additive bonus for a premium level. Level 0 means
// no bonus; level n indexes the table at n-1. Levels beyond the table earn
// nothing rather than failing, matching the tolerant proof semantics.
func (c *CollectionConfig) premiumRate(level uint8) *big.Int {
	return rateAt(c.PremiumBonuses, level)
}

func (c *CollectionConfig) secondaryRate(level uint8) *big.Int {
	return rateAt(c.SecondaryBonuses, level)
}

func rateAt(table []*big.Int, level uint8) *big.Int {
	if level == 0 || int(level) > len(table) {
		return big.NewInt(0)
	}
	rate := table[level-1]
	if rate == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(rate)
}

func cloneRates(rates []*big.Int) []*big.Int {
	if rates == nil {
		return nil
	}
	out := make([]*big.Int, len(rates))
	for i, r := range rates {
		if r != nil {
			out[i] = new(big.Int).Set(r)
		}
	}
	return out
}

// TraitOverride records the bonus levels bound to a staked identifier, either
// by a verified proof at stake time or by administrative override. It is not
// re-checked when the collection's trait root later rotates.
type TraitOverride struct {
	PremiumLevel   uint8
	SecondaryLevel uint8
}

// StakeRecord tracks one staker's position in one collection. Unique-NFT
// collections use TokenIDs (unordered, removed by swap-with-last) plus the
// per-identifier StakedAt map; pooled and fungible collections use the single
// Amount and shared AmountStakedAt.
type StakeRecord struct {
	TokenIDs       []uint64
	StakedAt       map[uint64]uint64
	Amount         *big.Int
	AmountStakedAt uint64
}

// NewStakeRecord creates an empty record.
func NewStakeRecord() *StakeRecord {
	return &StakeRecord{StakedAt: make(map[uint64]uint64), Amount: big.NewInt(0)}
}

// Clone produces a deep copy of the record.
func (r *StakeRecord) Clone() *StakeRecord {
	if r == nil {
		return NewStakeRecord()
	}
	clone := &StakeRecord{
		TokenIDs:       append([]uint64(nil), r.TokenIDs...),
		StakedAt:       make(map[uint64]uint64, len(r.StakedAt)),
		AmountStakedAt: r.AmountStakedAt,
		Amount:         big.NewInt(0),
	}
	for id, ts := range r.StakedAt {
		clone.StakedAt[id] = ts
	}
	if r.Amount != nil {
		clone.Amount = new(big.Int).Set(r.Amount)
	}
	return clone
}

// Empty reports whether the record holds no active stake.
func (r *StakeRecord) Empty() bool {
	if r == nil {
		return true
	}
	return len(r.TokenIDs) == 0 && (r.Amount == nil || r.Amount.Sign() == 0)
}

// PointsAccount is the per-staker aggregate used to derive spendable balance.
// All fields are cumulative; Claims counts lifetime claimed quantity per
// catalog entry.
type PointsAccount struct {
	Redeemed     *big.Int
	AfterUnstake *big.Int
	AddOns       *big.Int
	Claims       map[uint64]uint64
}

// NewPointsAccount creates a zeroed account.
func NewPointsAccount() *PointsAccount {
	return &PointsAccount{
		Redeemed:     big.NewInt(0),
		AfterUnstake: big.NewInt(0),
		AddOns:       big.NewInt(0),
		Claims:       make(map[uint64]uint64),
	}
}

// Clone produces a deep copy of the account.
func (a *PointsAccount) Clone() *PointsAccount {
	if a == nil {
		return NewPointsAccount()
	}
	clone := NewPointsAccount()
	if a.Redeemed != nil {
		clone.Redeemed = new(big.Int).Set(a.Redeemed)
	}
	if a.AfterUnstake != nil {
		clone.AfterUnstake = new(big.Int).Set(a.AfterUnstake)
	}
	if a.AddOns != nil {
		clone.AddOns = new(big.Int).Set(a.AddOns)
	}
	for catalog, count := range a.Claims {
		clone.Claims[catalog] = count
	}
	return clone
}

// Normalize ensures pointer fields are non-nil. Returns the receiver for
// chaining.
func (a *PointsAccount) Normalize() *PointsAccount {
	if a == nil {
		return nil
	}
	if a.Redeemed == nil {
		a.Redeemed = big.NewInt(0)
	}
	if a.AfterUnstake == nil {
		a.AfterUnstake = big.NewInt(0)
	}
	if a.AddOns == nil {
		a.AddOns = big.NewInt(0)
	}
	if a.Claims == nil {
		a.Claims = make(map[uint64]uint64)
	}
	return a
}
