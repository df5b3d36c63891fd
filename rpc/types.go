package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"stakevault/native/staking"
	"stakevault/native/vault"
)

type stakeParams struct {
	Caller     string            `json:"caller"`
	Collection uint64            `json:"collection"`
	TokenIDs   []uint64          `json:"tokenIds"`
	Proofs     []traitProofParam `json:"proofs,omitempty"`
}

type traitProofParam struct {
	PremiumLevel   uint8    `json:"premiumLevel"`
	SecondaryLevel uint8    `json:"secondaryLevel"`
	Path           []string `json:"path"`
}

type stakeAmountParams struct {
	Caller     string `json:"caller"`
	Collection uint64 `json:"collection"`
	Amount     string `json:"amount"`
}

type unstakeParams struct {
	Caller     string   `json:"caller"`
	Collection uint64   `json:"collection"`
	TokenIDs   []uint64 `json:"tokenIds"`
}

type adminUnstakeParams struct {
	Caller     string   `json:"caller"`
	Owner      string   `json:"owner"`
	Collection uint64   `json:"collection"`
	TokenIDs   []uint64 `json:"tokenIds,omitempty"`
	Amount     bool     `json:"amount,omitempty"`
}

type balanceParams struct {
	Owner       string   `json:"owner"`
	Collections []uint64 `json:"collections,omitempty"`
	Verify      bool     `json:"verify,omitempty"`
}

type balanceResult struct {
	Owner   string `json:"owner"`
	Balance string `json:"balance"`
}

type positionParams struct {
	Owner      string `json:"owner"`
	Collection uint64 `json:"collection"`
}

type positionResult struct {
	Owner      string            `json:"owner"`
	Collection uint64            `json:"collection"`
	TokenIDs   []uint64          `json:"tokenIds,omitempty"`
	StakedAt   map[uint64]uint64 `json:"stakedAt,omitempty"`
	Amount     string            `json:"amount,omitempty"`
}

type vaultEntryParams struct {
	Catalog uint64 `json:"catalog"`
}

type vaultEntryResult struct {
	Catalog  uint64 `json:"catalog"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Cost     string `json:"cost"`
	Hurdle   string `json:"hurdle"`
	Stock    uint64 `json:"stock,omitempty"`
	PoolSize int    `json:"poolSize,omitempty"`
	ClaimCap uint64 `json:"claimCap,omitempty"`
}

type claimParams struct {
	Caller      string   `json:"caller"`
	Catalogs    []uint64 `json:"catalogs"`
	Quantities  []uint64 `json:"quantities"`
	Collections []uint64 `json:"collections,omitempty"`
}

type claimReceiptResult struct {
	Catalog  uint64   `json:"catalog"`
	Quantity uint64   `json:"quantity"`
	Cost     string   `json:"cost"`
	Kind     string   `json:"kind"`
	TokenIDs []uint64 `json:"tokenIds,omitempty"`
	OffChain bool     `json:"offChain,omitempty"`
}

type claimResult struct {
	TotalCost string               `json:"totalCost"`
	Balance   string               `json:"balance"`
	Receipts  []claimReceiptResult `json:"receipts"`
}

type claimHistoryParams struct {
	Catalog uint64 `json:"catalog"`
}

type claimHistoryEntry struct {
	Claimant string `json:"claimant"`
	Quantity uint64 `json:"quantity"`
}

type setStatusParams struct {
	Caller string `json:"caller"`
	Status string `json:"status"`
}

type grantPointsParams struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
	Delta  string `json:"delta"`
}

type setTraitsParams struct {
	Caller         string `json:"caller"`
	Collection     uint64 `json:"collection"`
	TokenID        uint64 `json:"tokenId"`
	PremiumLevel   uint8  `json:"premiumLevel"`
	SecondaryLevel uint8  `json:"secondaryLevel"`
}

type registerCollectionParams struct {
	Caller           string   `json:"caller"`
	Collection       uint64   `json:"collection"`
	Active           bool     `json:"active"`
	Kind             string   `json:"kind"`
	SlotID           uint64   `json:"slotId,omitempty"`
	BaseRate         string   `json:"baseRate"`
	PremiumBonuses   []string `json:"premiumBonuses,omitempty"`
	SecondaryBonuses []string `json:"secondaryBonuses,omitempty"`
	TraitRoot        string   `json:"traitRoot,omitempty"`
}

type setTraitRootParams struct {
	Caller     string `json:"caller"`
	Collection uint64 `json:"collection"`
	Root       string `json:"root"`
}

type upsertEntryParams struct {
	Caller   string   `json:"caller"`
	Catalog  uint64   `json:"catalog"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	SlotID   uint64   `json:"slotId,omitempty"`
	Cost     string   `json:"cost"`
	Hurdle   string   `json:"hurdle,omitempty"`
	Stock    uint64   `json:"stock,omitempty"`
	ClaimCap uint64   `json:"claimCap,omitempty"`
	Pool     []uint64 `json:"pool,omitempty"`
}

type addPoolTokensParams struct {
	Caller   string   `json:"caller"`
	Catalog  uint64   `json:"catalog"`
	TokenIDs []uint64 `json:"tokenIds"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func parseAddressParam(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return addr, fmt.Errorf("address required")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address: %w", err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("address must be %d bytes", len(addr))
	}
	copy(addr[:], raw)
	return addr, nil
}

func formatAddressParam(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func parseHashParam(value string) ([32]byte, error) {
	var hash [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return hash, fmt.Errorf("invalid hash: %w", err)
	}
	if len(raw) != len(hash) {
		return hash, fmt.Errorf("hash must be %d bytes", len(hash))
	}
	copy(hash[:], raw)
	return hash, nil
}

func amountFromString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amt := new(big.Int)
	if _, ok := amt.SetString(trimmed, 10); !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amt.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amt, nil
}

// deltaFromString parses a signed correction; unlike amounts it may be
// negative but never zero.
func deltaFromString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("delta required")
	}
	delta := new(big.Int)
	if _, ok := delta.SetString(trimmed, 10); !ok {
		return nil, fmt.Errorf("invalid delta")
	}
	if delta.Sign() == 0 {
		return nil, fmt.Errorf("delta must be non-zero")
	}
	return delta, nil
}

func parseCollectionKind(value string) (staking.CollectionKind, error) {
	switch strings.TrimSpace(value) {
	case "uniqueNFT":
		return staking.KindUniqueNFT, nil
	case "pooledNFT":
		return staking.KindPooledNFT, nil
	case "fungible":
		return staking.KindFungible, nil
	default:
		return 0, fmt.Errorf("unknown collection kind %q", value)
	}
}

func parseEntryKind(value string) (vault.EntryKind, error) {
	switch strings.TrimSpace(value) {
	case "physical":
		return vault.KindPhysical, nil
	case "poolNFT":
		return vault.KindPoolNFT, nil
	case "slotNFT":
		return vault.KindSlotNFT, nil
	case "fungible":
		return vault.KindFungible, nil
	default:
		return 0, fmt.Errorf("unknown entry kind %q", value)
	}
}

func parseRates(values []string) ([]*big.Int, error) {
	if len(values) == 0 {
		return nil, nil
	}
	rates := make([]*big.Int, len(values))
	for i, value := range values {
		rate := new(big.Int)
		if _, ok := rate.SetString(strings.TrimSpace(value), 10); !ok {
			return nil, fmt.Errorf("invalid rate %q", value)
		}
		if rate.Sign() < 0 {
			return nil, fmt.Errorf("rate must not be negative")
		}
		rates[i] = rate
	}
	return rates, nil
}

func parseProofs(params []traitProofParam) ([]*staking.TraitProof, error) {
	if len(params) == 0 {
		return nil, nil
	}
	proofs := make([]*staking.TraitProof, len(params))
	for i, p := range params {
		proof := &staking.TraitProof{PremiumLevel: p.PremiumLevel, SecondaryLevel: p.SecondaryLevel}
		for _, node := range p.Path {
			hash, err := parseHashParam(node)
			if err != nil {
				return nil, fmt.Errorf("proof %d: %w", i, err)
			}
			proof.Path = append(proof.Path, hash)
		}
		proofs[i] = proof
	}
	return proofs, nil
}
