package events

import (
	"math/big"
	"strconv"

	"stakevault/core/types"
)

const (
	// TypeClaimRedeemed captures a committed multi-entry claim.
	TypeClaimRedeemed = "claims.redeemed"
)

// ClaimRedeemed captures the aggregate outcome of a committed claim.
type ClaimRedeemed struct {
	Claimant  [20]byte
	Catalogs  []uint64
	TotalCost *big.Int
	Balance   *big.Int
}

// EventType satisfies the Event interface.
func (ClaimRedeemed) EventType() string { return TypeClaimRedeemed }

// Event converts the structured payload into a broadcastable event.
func (e ClaimRedeemed) Event() *types.Event {
	attrs := map[string]string{
		"claimant":  formatAddress(e.Claimant),
		"totalCost": formatAmount(e.TotalCost),
	}
	if e.Balance != nil {
		attrs["balance"] = formatAmount(e.Balance)
	}
	if len(e.Catalogs) > 0 {
		catalogs := ""
		for i, id := range e.Catalogs {
			if i > 0 {
				catalogs += ","
			}
			catalogs += strconv.FormatUint(id, 10)
		}
		attrs["catalogs"] = catalogs
	}
	return &types.Event{Type: TypeClaimRedeemed, Attributes: attrs}
}
