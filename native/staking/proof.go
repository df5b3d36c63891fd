package staking

import (
	"bytes"
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TraitProof carries the claimed bonus levels for a token together with the
// Merkle path binding them to the collection's published trait root. A nil or
// failing proof never blocks staking; it simply records no bonus.
type TraitProof struct {
	PremiumLevel   uint8
	SecondaryLevel uint8
	Path           [][32]byte
}

// TraitLeaf computes the canonical leaf hash for a (token, premium, secondary)
// triple: keccak256 over the big-endian token identifier followed by the two
// level bytes.
func TraitLeaf(tokenID uint64, premium, secondary uint8) [32]byte {
	var buf [10]byte
	binary.BigEndian.PutUint64(buf[:8], tokenID)
	buf[8] = premium
	buf[9] = secondary
	return ethcrypto.Keccak256Hash(buf[:])
}

// VerifyTraitProof reduces the proof path to a root under the sorted-pair
// keccak256 rule and compares it against the published root. Pure and
// deterministic.
func VerifyTraitProof(root [32]byte, tokenID uint64, proof *TraitProof) bool {
	if proof == nil || root == ([32]byte{}) {
		return false
	}
	node := TraitLeaf(tokenID, proof.PremiumLevel, proof.SecondaryLevel)
	for _, sibling := range proof.Path {
		node = hashPair(node, sibling)
	}
	return node == root
}

func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return ethcrypto.Keccak256Hash(a[:], b[:])
	}
	return ethcrypto.Keccak256Hash(b[:], a[:])
}
