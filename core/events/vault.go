package events

import (
	"math/big"
	"strconv"

	"stakevault/core/types"
)

const (
	// TypeVaultDispensed captures inventory leaving the vault for a claimant.
	TypeVaultDispensed = "vault.dispensed"
	// TypeVaultLogged captures a physical redemption recorded for off-chain fulfillment.
	TypeVaultLogged = "vault.redemptionLogged"
)

// VaultDispensed captures a fulfilled vault allocation.
type VaultDispensed struct {
	Claimant [20]byte
	Catalog  uint64
	Quantity uint64
	TokenIDs []uint64
	Cost     *big.Int
	Kind     string
}

// EventType satisfies the Event interface.
func (VaultDispensed) EventType() string { return TypeVaultDispensed }

// Event converts the structured payload into a broadcastable event.
func (e VaultDispensed) Event() *types.Event {
	attrs := map[string]string{
		"claimant": formatAddress(e.Claimant),
		"catalog":  strconv.FormatUint(e.Catalog, 10),
		"quantity": strconv.FormatUint(e.Quantity, 10),
		"cost":     formatAmount(e.Cost),
		"kind":     e.Kind,
	}
	if len(e.TokenIDs) > 0 {
		attrs["tokens"] = formatTokenList(e.TokenIDs)
	}
	return &types.Event{Type: TypeVaultDispensed, Attributes: attrs}
}

// VaultLogged captures an append to the off-chain redemption log.
type VaultLogged struct {
	Claimant [20]byte
	Catalog  uint64
	Quantity uint64
}

// EventType satisfies the Event interface.
func (VaultLogged) EventType() string { return TypeVaultLogged }

// Event converts the structured payload into a broadcastable event.
func (e VaultLogged) Event() *types.Event {
	return &types.Event{Type: TypeVaultLogged, Attributes: map[string]string{
		"claimant": formatAddress(e.Claimant),
		"catalog":  strconv.FormatUint(e.Catalog, 10),
		"quantity": strconv.FormatUint(e.Quantity, 10),
	}}
}
