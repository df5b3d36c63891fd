package assets

import (
	"fmt"
	"math/big"
	"sync"
)

// MemNFT is an in-memory NFTRegistry used by tests and the node's local mode.
type MemNFT struct {
	mu     sync.RWMutex
	owners map[uint64][20]byte
}

// NewMemNFT creates an empty registry.
func NewMemNFT() *MemNFT {
	return &MemNFT{owners: make(map[uint64][20]byte)}
}

// Mint assigns a token to an owner. Re-minting an existing token fails.
func (r *MemNFT) Mint(owner [20]byte, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[tokenID]; ok {
		return fmt.Errorf("assets: token %d already minted", tokenID)
	}
	r.owners[tokenID] = owner
	return nil
}

// OwnerOf returns the current owner of tokenID.
func (r *MemNFT) OwnerOf(tokenID uint64) ([20]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[tokenID]
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: %d", ErrUnknownToken, tokenID)
	}
	return owner, nil
}

// TransferFrom moves tokenID between owners, failing loudly on mismatch.
func (r *MemNFT) TransferFrom(from, to [20]byte, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[tokenID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownToken, tokenID)
	}
	if owner != from {
		return fmt.Errorf("%w: token %d", ErrNotOwner, tokenID)
	}
	r.owners[tokenID] = to
	return nil
}

// MemFungible is an in-memory FungibleRegistry.
type MemFungible struct {
	mu       sync.RWMutex
	balances map[[20]byte]*big.Int
}

// NewMemFungible creates an empty registry.
func NewMemFungible() *MemFungible {
	return &MemFungible{balances: make(map[[20]byte]*big.Int)}
}

// Mint credits an address.
func (r *MemFungible) Mint(addr [20]byte, amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.balances[addr]
	if !ok {
		current = big.NewInt(0)
	}
	r.balances[addr] = new(big.Int).Add(current, amount)
}

// BalanceOf returns the current balance of addr.
func (r *MemFungible) BalanceOf(addr [20]byte) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	current, ok := r.balances[addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(current), nil
}

// Transfer moves amount between addresses, failing loudly when underfunded.
func (r *MemFungible) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("assets: invalid transfer amount")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fromBal, ok := r.balances[from]
	if !ok || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: need %s", ErrInsufficientBalance, amount)
	}
	toBal, ok := r.balances[to]
	if !ok {
		toBal = big.NewInt(0)
	}
	r.balances[from] = new(big.Int).Sub(fromBal, amount)
	r.balances[to] = new(big.Int).Add(toBal, amount)
	return nil
}

type slotKey struct {
	addr [20]byte
	id   uint64
}

// MemSlot is an in-memory SlotRegistry.
type MemSlot struct {
	mu       sync.RWMutex
	balances map[slotKey]*big.Int
}

// NewMemSlot creates an empty registry.
func NewMemSlot() *MemSlot {
	return &MemSlot{balances: make(map[slotKey]*big.Int)}
}

// Mint credits an address under a slot identifier.
func (r *MemSlot) Mint(addr [20]byte, id uint64, amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := slotKey{addr: addr, id: id}
	current, ok := r.balances[key]
	if !ok {
		current = big.NewInt(0)
	}
	r.balances[key] = new(big.Int).Add(current, amount)
}

// BalanceOf returns the balance of addr under id.
func (r *MemSlot) BalanceOf(addr [20]byte, id uint64) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	current, ok := r.balances[slotKey{addr: addr, id: id}]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(current), nil
}

// Transfer moves amount between addresses under a slot identifier.
func (r *MemSlot) Transfer(from, to [20]byte, id uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("assets: invalid transfer amount")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fromKey := slotKey{addr: from, id: id}
	fromBal, ok := r.balances[fromKey]
	if !ok || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: slot %d", ErrInsufficientBalance, id)
	}
	toKey := slotKey{addr: to, id: id}
	toBal, ok := r.balances[toKey]
	if !ok {
		toBal = big.NewInt(0)
	}
	r.balances[fromKey] = new(big.Int).Sub(fromBal, amount)
	r.balances[toKey] = new(big.Int).Add(toBal, amount)
	return nil
}

// MemSource is a static Source wiring collections and catalog entries to
// in-memory registries.
type MemSource struct {
	NFTs      map[uint64]NFTRegistry
	Fungibles map[uint64]FungibleRegistry
	Slots     map[uint64]SlotRegistry
}

// NewMemSource creates an empty source.
func NewMemSource() *MemSource {
	return &MemSource{
		NFTs:      make(map[uint64]NFTRegistry),
		Fungibles: make(map[uint64]FungibleRegistry),
		Slots:     make(map[uint64]SlotRegistry),
	}
}

// NFT resolves the NFT registry for a collection.
func (s *MemSource) NFT(collection uint64) (NFTRegistry, error) {
	if reg, ok := s.NFTs[collection]; ok {
		return reg, nil
	}
	return nil, fmt.Errorf("%w: nft collection %d", ErrRegistryNotConfigured, collection)
}

// Fungible resolves the fungible registry for a collection.
func (s *MemSource) Fungible(collection uint64) (FungibleRegistry, error) {
	if reg, ok := s.Fungibles[collection]; ok {
		return reg, nil
	}
	return nil, fmt.Errorf("%w: fungible collection %d", ErrRegistryNotConfigured, collection)
}

// Slot resolves the slot registry for a collection.
func (s *MemSource) Slot(collection uint64) (SlotRegistry, error) {
	if reg, ok := s.Slots[collection]; ok {
		return reg, nil
	}
	return nil, fmt.Errorf("%w: slot collection %d", ErrRegistryNotConfigured, collection)
}
