package staking

import "math/big"

// SecondsPerDay is the accrual granularity. Partial days earn nothing.
const SecondsPerDay uint64 = 24 * 60 * 60

func elapsedDays(stakedAt uint64, now uint64) uint64 {
	if now <= stakedAt {
		return 0
	}
	return (now - stakedAt) / SecondsPerDay
}

// dailyRate resolves the per-day accrual rate for a unique identifier: the
// collection base rate plus the additive bonuses recorded for the token.
func (c *CollectionConfig) dailyRate(override *TraitOverride) *big.Int {
	rate := big.NewInt(0)
	if c == nil {
		return rate
	}
	if c.BaseRate != nil {
		rate.Set(c.BaseRate)
	}
	if override != nil {
		rate.Add(rate, c.premiumRate(override.PremiumLevel))
		rate.Add(rate, c.secondaryRate(override.SecondaryLevel))
	}
	return rate
}

// accruedUnique computes the points a single unique identifier has earned
// between stakedAt and now.
func accruedUnique(cfg *CollectionConfig, override *TraitOverride, stakedAt, now uint64) *big.Int {
	days := elapsedDays(stakedAt, now)
	if days == 0 {
		return big.NewInt(0)
	}
	rate := cfg.dailyRate(override)
	return rate.Mul(rate, new(big.Int).SetUint64(days))
}

// accruedAmount computes the points a pooled or fungible position has earned:
// full days times base rate times staked amount.
func accruedAmount(cfg *CollectionConfig, amount *big.Int, stakedAt, now uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	days := elapsedDays(stakedAt, now)
	if days == 0 {
		return big.NewInt(0)
	}
	points := new(big.Int).SetUint64(days)
	if cfg != nil && cfg.BaseRate != nil {
		points.Mul(points, cfg.BaseRate)
	} else {
		points.SetUint64(0)
	}
	return points.Mul(points, amount)
}
