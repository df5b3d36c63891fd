package vault

import "math/big"

// EntryKind tags how a catalog entry's inventory is held and dispensed.
type EntryKind uint8

const (
	// KindPhysical entries are fulfilled off-chain; the vault only tracks a
	// stock counter and a redemption log.
	KindPhysical EntryKind = iota
	// KindPoolNFT entries dispense a specific identifier from an owned pool,
	// picked pseudo-randomly.
	KindPoolNFT
	// KindSlotNFT entries dispense balance held under a fixed slot
	// identifier.
	KindSlotNFT
	// KindFungible entries dispense plain token balance.
	KindFungible
)

// String renders the kind for events and query responses.
func (k EntryKind) String() string {
	switch k {
	case KindPhysical:
		return "physical"
	case KindPoolNFT:
		return "poolNFT"
	case KindSlotNFT:
		return "slotNFT"
	case KindFungible:
		return "fungible"
	default:
		return "unknown"
	}
}

// Entry is one redeemable catalog listing. The Pool is unordered: removal is
// swap-with-last and iteration order carries no meaning. PickCounter is the
// persisted draw counter feeding the randomized picker.
type Entry struct {
	ID          uint64
	Name        string
	Kind        EntryKind
	Pool        []uint64
	SlotID      uint64
	Cost        *big.Int
	Hurdle      *big.Int
	Stock       uint64
	ClaimCap    uint64
	PickCounter uint64
}

// Clone produces a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := &Entry{
		ID:          e.ID,
		Name:        e.Name,
		Kind:        e.Kind,
		SlotID:      e.SlotID,
		Stock:       e.Stock,
		ClaimCap:    e.ClaimCap,
		PickCounter: e.PickCounter,
		Pool:        append([]uint64(nil), e.Pool...),
	}
	if e.Cost != nil {
		clone.Cost = new(big.Int).Set(e.Cost)
	}
	if e.Hurdle != nil {
		clone.Hurdle = new(big.Int).Set(e.Hurdle)
	}
	return clone
}

// Normalize ensures pointer fields are non-nil. Returns the receiver for
// chaining.
func (e *Entry) Normalize() *Entry {
	if e == nil {
		return nil
	}
	if e.Cost == nil {
		e.Cost = big.NewInt(0)
	}
	if e.Hurdle == nil {
		e.Hurdle = big.NewInt(0)
	}
	return e
}

// Redemption is one append-only log line consumed by the off-chain
// fulfillment process.
type Redemption struct {
	Claimant [20]byte `json:"claimant"`
	Quantity uint64   `json:"quantity"`
}

// Receipt reports a fulfilled allocation back to the coordinator. Cost is the
// total points price; the vault never touches point balances itself.
type Receipt struct {
	Catalog  uint64
	Quantity uint64
	Cost     *big.Int
	Kind     EntryKind
	TokenIDs []uint64
	OffChain bool
}
