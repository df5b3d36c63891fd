package vault

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stakevault/core/events"
	"stakevault/native/assets"
)

// RoleAdmin authorizes catalog entry configuration and pool loading.
const RoleAdmin = "ROLE_STAKEVAULT_ADMIN"

// State describes the persistence the vault engine needs from the hosting
// ledger.
type State interface {
	VaultEntry(id uint64) (*Entry, bool, error)
	PutVaultEntry(entry *Entry) error
	AppendRedemption(catalog uint64, redemption Redemption) error
	Redemptions(catalog uint64) ([]Redemption, error)
	HasRole(role string, addr [20]byte) bool
}

// Engine validates claim eligibility against catalog entries and dispenses
// inventory. It never reads or writes point balances; the coordinator passes
// the claimant's balance and prior claims in and commits the deduction.
type Engine struct {
	state   State
	assets  assets.Source
	custody [20]byte
	emitter events.Emitter
}

// NewEngine creates a vault engine dispensing from the given custody address.
func NewEngine(state State, source assets.Source, custody [20]byte) *Engine {
	return &Engine{state: state, assets: source, custody: custody, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
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

// Fulfil validates eligibility and reserves quantity units of a catalog
// entry for the claimant: stock is decremented, pool identifiers are drawn
// and custody availability is checked, but no external transfer happens yet.
// balance is the claimant's current spendable points and priorClaims their
// cumulative claimed quantity for this entry before this call. The caller
// completes the claim with Deliver once every ledger check has passed; until
// then a journal revert undoes the reservation completely. Any failure leaves
// the entry untouched only if the caller runs inside a journaled state scope;
// the coordinator guarantees that.
func (e *Engine) Fulfil(claimant [20]byte, catalog uint64, quantity uint64, balance *big.Int, priorClaims uint64) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	entry, ok, err := e.state.VaultEntry(catalog)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(entry.Name) == "" {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEntry, catalog)
	}
	entry = entry.Clone().Normalize()
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Cmp(entry.Hurdle) < 0 {
		return nil, fmt.Errorf("%w: need %s have %s", ErrBelowHurdle, entry.Hurdle, balance)
	}
	if entry.ClaimCap > 0 && priorClaims+quantity > entry.ClaimCap {
		return nil, fmt.Errorf("%w: cap %d prior %d requested %d", ErrClaimCapExceeded, entry.ClaimCap, priorClaims, quantity)
	}

	receipt := &Receipt{
		Catalog:  catalog,
		Quantity: quantity,
		Kind:     entry.Kind,
		Cost:     new(big.Int).Mul(entry.Cost, new(big.Int).SetUint64(quantity)),
	}
	switch entry.Kind {
	case KindPhysical:
		if entry.Stock < quantity {
			return nil, fmt.Errorf("%w: stock %d requested %d", ErrOutOfStock, entry.Stock, quantity)
		}
		entry.Stock -= quantity
		if err := e.state.AppendRedemption(catalog, Redemption{Claimant: claimant, Quantity: quantity}); err != nil {
			return nil, err
		}
		receipt.OffChain = true
		e.emit(events.VaultLogged{Claimant: claimant, Catalog: catalog, Quantity: quantity})
	case KindPoolNFT:
		if uint64(len(entry.Pool)) < quantity {
			return nil, fmt.Errorf("%w: pool %d requested %d", ErrPoolExhausted, len(entry.Pool), quantity)
		}
		registry, err := e.assets.NFT(catalog)
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < quantity; i++ {
			tokenID, err := pickAndRemove(claimant, entry)
			if err != nil {
				return nil, err
			}
			holder, err := registry.OwnerOf(tokenID)
			if err != nil {
				return nil, err
			}
			if holder != e.custody {
				return nil, fmt.Errorf("%w: token %d not in custody", ErrOutOfStock, tokenID)
			}
			receipt.TokenIDs = append(receipt.TokenIDs, tokenID)
		}
	case KindSlotNFT:
		registry, err := e.assets.Slot(catalog)
		if err != nil {
			return nil, err
		}
		amount := new(big.Int).SetUint64(quantity)
		held, err := registry.BalanceOf(e.custody, entry.SlotID)
		if err != nil {
			return nil, err
		}
		if held.Cmp(amount) < 0 {
			return nil, fmt.Errorf("%w: slot balance %s requested %d", ErrOutOfStock, held, quantity)
		}
	case KindFungible:
		registry, err := e.assets.Fungible(catalog)
		if err != nil {
			return nil, err
		}
		amount := new(big.Int).SetUint64(quantity)
		held, err := registry.BalanceOf(e.custody)
		if err != nil {
			return nil, err
		}
		if held.Cmp(amount) < 0 {
			return nil, fmt.Errorf("%w: balance %s requested %d", ErrOutOfStock, held, quantity)
		}
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidEntry, entry.Kind)
	}

	if err := e.state.PutVaultEntry(entry); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Deliver executes the external transfers a Fulfil reservation promised. It
// must run only after every ledger check on the enclosing claim has passed:
// registry transfers cannot be unwound by a journal revert, so this is the
// last step of a claim. Custody availability was verified at reservation
// time, which leaves registry faults as the only failure mode here.
func (e *Engine) Deliver(claimant [20]byte, receipt *Receipt) error {
	if err := e.ready(); err != nil {
		return err
	}
	if receipt == nil {
		return fmt.Errorf("%w: nil receipt", ErrInvalidEntry)
	}
	switch receipt.Kind {
	case KindPhysical:
		// Logged for off-chain handling at reservation time.
	case KindPoolNFT:
		registry, err := e.assets.NFT(receipt.Catalog)
		if err != nil {
			return err
		}
		for _, tokenID := range receipt.TokenIDs {
			if err := registry.TransferFrom(e.custody, claimant, tokenID); err != nil {
				return err
			}
		}
	case KindSlotNFT:
		entry, ok, err := e.state.VaultEntry(receipt.Catalog)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownEntry, receipt.Catalog)
		}
		registry, err := e.assets.Slot(receipt.Catalog)
		if err != nil {
			return err
		}
		amount := new(big.Int).SetUint64(receipt.Quantity)
		if err := registry.Transfer(e.custody, claimant, entry.SlotID, amount); err != nil {
			return err
		}
	case KindFungible:
		registry, err := e.assets.Fungible(receipt.Catalog)
		if err != nil {
			return err
		}
		amount := new(big.Int).SetUint64(receipt.Quantity)
		if err := registry.Transfer(e.custody, claimant, amount); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidEntry, receipt.Kind)
	}
	e.emit(events.VaultDispensed{
		Claimant: claimant,
		Catalog:  receipt.Catalog,
		Quantity: receipt.Quantity,
		TokenIDs: append([]uint64(nil), receipt.TokenIDs...),
		Cost:     new(big.Int).Set(receipt.Cost),
		Kind:     receipt.Kind.String(),
	})
	return nil
}

// pickAndRemove draws one identifier from the entry's pool. The index is
// derived by hashing the claimant and the persisted draw counter against the
// current pool size; a zero-sentinel slot triggers a bounded re-draw. This is
// best-effort randomness, not adversarially secure: the hash inputs are
// observable, so the outcome is predictable to anyone who can model the
// counter.
func pickAndRemove(claimant [20]byte, entry *Entry) (uint64, error) {
	size := len(entry.Pool)
	if size == 0 {
		return 0, fmt.Errorf("%w: empty pool", ErrPoolExhausted)
	}
	budget := size * 10
	for attempt := 0; attempt < budget; attempt++ {
		entry.PickCounter++
		idx := randomIndex(claimant, entry.PickCounter, size)
		candidate := entry.Pool[idx]
		if candidate == 0 {
			continue
		}
		last := len(entry.Pool) - 1
		entry.Pool[idx] = entry.Pool[last]
		entry.Pool = entry.Pool[:last]
		return candidate, nil
	}
	return 0, fmt.Errorf("%w: after %d attempts", ErrPickFailed, budget)
}

func randomIndex(claimant [20]byte, counter uint64, size int) int {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], counter)
	binary.BigEndian.PutUint64(buf[8:], uint64(size))
	digest := ethcrypto.Keccak256(claimant[:], buf[:])
	return int(binary.BigEndian.Uint64(digest[:8]) % uint64(size))
}

// Entry returns a copy of the catalog entry for read-only reporting.
func (e *Engine) Entry(catalog uint64) (*Entry, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	entry, ok, err := e.state.VaultEntry(catalog)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEntry, catalog)
	}
	return entry.Clone().Normalize(), nil
}

// RedemptionLog returns the append-only physical redemption log for a catalog
// entry.
func (e *Engine) RedemptionLog(catalog uint64) ([]Redemption, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Redemptions(catalog)
}

// UpsertEntry creates or replaces a catalog entry. Admin-only configuration
// write.
func (e *Engine) UpsertEntry(caller [20]byte, entry *Entry) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if entry == nil || strings.TrimSpace(entry.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidEntry)
	}
	sanitized := entry.Clone().Normalize()
	if sanitized.Cost.Sign() < 0 || sanitized.Hurdle.Sign() < 0 {
		return fmt.Errorf("%w: negative cost or hurdle", ErrInvalidEntry)
	}
	for _, tokenID := range sanitized.Pool {
		if tokenID == 0 {
			return fmt.Errorf("%w: zero token identifier in pool", ErrInvalidEntry)
		}
	}
	return e.state.PutVaultEntry(sanitized)
}

// AddPoolTokens appends identifiers to an entry's pool. Identifier zero is
// reserved as the picker's empty sentinel and rejected.
func (e *Engine) AddPoolTokens(caller [20]byte, catalog uint64, tokenIDs []uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	entry, ok, err := e.state.VaultEntry(catalog)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntry, catalog)
	}
	if entry.Kind != KindPoolNFT {
		return fmt.Errorf("%w: entry %d does not hold a pool", ErrInvalidEntry, catalog)
	}
	entry = entry.Clone()
	for _, tokenID := range tokenIDs {
		if tokenID == 0 {
			return fmt.Errorf("%w: zero token identifier", ErrInvalidEntry)
		}
		entry.Pool = append(entry.Pool, tokenID)
	}
	return e.state.PutVaultEntry(entry)
}
