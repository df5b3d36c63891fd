// Package assets defines the external asset-registry surfaces the staking and
// vault modules depend on. The registries custody the actual tokens; this
// module only reads ownership and requests transfers, and treats any registry
// failure as a fatal abort of the calling operation.
package assets

import (
	"errors"
	"math/big"
)

var (
	ErrUnknownToken          = errors.New("assets: unknown token")
	ErrNotOwner              = errors.New("assets: caller is not the owner")
	ErrInsufficientBalance   = errors.New("assets: insufficient balance")
	ErrRegistryNotConfigured = errors.New("assets: registry not configured")
)

// NFTRegistry is the ERC-721 shaped collaborator for unique identifiers.
type NFTRegistry interface {
	OwnerOf(tokenID uint64) ([20]byte, error)
	TransferFrom(from, to [20]byte, tokenID uint64) error
}

// FungibleRegistry is the ERC-20 shaped collaborator for balance collections.
type FungibleRegistry interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// SlotRegistry is the ERC-1155 shaped collaborator: fungible balances held
// under a specific identifier slot.
type SlotRegistry interface {
	BalanceOf(addr [20]byte, id uint64) (*big.Int, error)
	Transfer(from, to [20]byte, id uint64, amount *big.Int) error
}

// Source resolves the registry backing a collection or catalog entry. The
// hosting node wires one Source per deployment; engines never cache the
// answers.
type Source interface {
	NFT(collection uint64) (NFTRegistry, error)
	Fungible(collection uint64) (FungibleRegistry, error)
	Slot(collection uint64) (SlotRegistry, error)
}
