package events

import (
	"math/big"
	"strconv"

	"stakevault/core/types"
)

const (
	// TypeStakingStaked captures identifiers or balance entering a staking position.
	TypeStakingStaked = "staking.staked"
	// TypeStakingUnstaked captures identifiers or balance leaving a staking position.
	TypeStakingUnstaked = "staking.unstaked"
	// TypeStakingTraitBound is emitted when a verified trait proof records a bonus.
	TypeStakingTraitBound = "staking.traitBound"
	// TypeStakingPointsGranted is emitted when an administrator adjusts add-on points.
	TypeStakingPointsGranted = "staking.pointsGranted"
)

// StakingStaked captures a successful stake of identifiers or balance.
type StakingStaked struct {
	Owner      [20]byte
	Collection uint64
	TokenIDs   []uint64
	Amount     *big.Int
	StakedAt   uint64
}

// EventType satisfies the Event interface.
func (StakingStaked) EventType() string { return TypeStakingStaked }

// Event converts the structured payload into a broadcastable event.
func (e StakingStaked) Event() *types.Event {
	attrs := map[string]string{
		"owner":      formatAddress(e.Owner),
		"collection": strconv.FormatUint(e.Collection, 10),
		"stakedAt":   strconv.FormatUint(e.StakedAt, 10),
	}
	if len(e.TokenIDs) > 0 {
		attrs["tokens"] = formatTokenList(e.TokenIDs)
	}
	if e.Amount != nil {
		attrs["amount"] = formatAmount(e.Amount)
	}
	return &types.Event{Type: TypeStakingStaked, Attributes: attrs}
}

// StakingUnstaked captures a successful unstake and the points carried out of it.
type StakingUnstaked struct {
	Owner        [20]byte
	Collection   uint64
	TokenIDs     []uint64
	Amount       *big.Int
	PointsBanked *big.Int
	AdminCaller  [20]byte
}

// EventType satisfies the Event interface.
func (StakingUnstaked) EventType() string { return TypeStakingUnstaked }

// Event converts the structured payload into a broadcastable event.
func (e StakingUnstaked) Event() *types.Event {
	attrs := map[string]string{
		"owner":      formatAddress(e.Owner),
		"collection": strconv.FormatUint(e.Collection, 10),
	}
	if len(e.TokenIDs) > 0 {
		attrs["tokens"] = formatTokenList(e.TokenIDs)
	}
	if e.Amount != nil {
		attrs["amount"] = formatAmount(e.Amount)
	}
	if e.PointsBanked != nil {
		attrs["pointsBanked"] = formatAmount(e.PointsBanked)
	}
	if !zeroAddress(e.AdminCaller) {
		attrs["admin"] = formatAddress(e.AdminCaller)
	}
	return &types.Event{Type: TypeStakingUnstaked, Attributes: attrs}
}

// StakingTraitBound records a trait bonus committed for a staked identifier.
type StakingTraitBound struct {
	Collection     uint64
	TokenID        uint64
	PremiumLevel   uint8
	SecondaryLevel uint8
	AdminOverride  bool
}

// EventType satisfies the Event interface.
func (StakingTraitBound) EventType() string { return TypeStakingTraitBound }

// Event converts the structured payload into a broadcastable event.
func (e StakingTraitBound) Event() *types.Event {
	attrs := map[string]string{
		"collection": strconv.FormatUint(e.Collection, 10),
		"token":      strconv.FormatUint(e.TokenID, 10),
		"premium":    strconv.FormatUint(uint64(e.PremiumLevel), 10),
		"secondary":  strconv.FormatUint(uint64(e.SecondaryLevel), 10),
	}
	if e.AdminOverride {
		attrs["override"] = "true"
	}
	return &types.Event{Type: TypeStakingTraitBound, Attributes: attrs}
}

// StakingPointsGranted records an administrative add-on points adjustment.
type StakingPointsGranted struct {
	Owner  [20]byte
	Amount *big.Int
	Caller [20]byte
}

// EventType satisfies the Event interface.
func (StakingPointsGranted) EventType() string { return TypeStakingPointsGranted }

// Event converts the structured payload into a broadcastable event.
func (e StakingPointsGranted) Event() *types.Event {
	return &types.Event{Type: TypeStakingPointsGranted, Attributes: map[string]string{
		"owner":  formatAddress(e.Owner),
		"amount": formatAmount(e.Amount),
		"caller": formatAddress(e.Caller),
	}}
}

func formatTokenList(ids []uint64) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += strconv.FormatUint(id, 10)
	}
	return out
}
