package staking

import "testing"

// singleLeafProof builds the degenerate one-leaf tree: the root is the leaf
// itself and the path is empty.
func singleLeafProof(tokenID uint64, premium, secondary uint8) (*TraitProof, [32]byte) {
	proof := &TraitProof{PremiumLevel: premium, SecondaryLevel: secondary}
	return proof, TraitLeaf(tokenID, premium, secondary)
}

func TestVerifyTraitProofSingleLeaf(t *testing.T) {
	proof, root := singleLeafProof(7, 2, 1)
	if !VerifyTraitProof(root, 7, proof) {
		t.Fatalf("single-leaf proof must verify")
	}
	if VerifyTraitProof(root, 8, proof) {
		t.Fatalf("proof must be bound to the token identifier")
	}
	other := &TraitProof{PremiumLevel: 3, SecondaryLevel: 1}
	if VerifyTraitProof(root, 7, other) {
		t.Fatalf("proof must be bound to the claimed levels")
	}
}

func TestVerifyTraitProofFourLeaves(t *testing.T) {
	type traits struct {
		tokenID            uint64
		premium, secondary uint8
	}
	set := []traits{{1, 1, 0}, {2, 0, 1}, {3, 2, 2}, {4, 0, 0}}
	leaves := make([][32]byte, len(set))
	for i, s := range set {
		leaves[i] = TraitLeaf(s.tokenID, s.premium, s.secondary)
	}
	left := hashPair(leaves[0], leaves[1])
	right := hashPair(leaves[2], leaves[3])
	root := hashPair(left, right)

	paths := [][][32]byte{
		{leaves[1], right},
		{leaves[0], right},
		{leaves[3], left},
		{leaves[2], left},
	}
	for i, s := range set {
		proof := &TraitProof{PremiumLevel: s.premium, SecondaryLevel: s.secondary, Path: paths[i]}
		if !VerifyTraitProof(root, s.tokenID, proof) {
			t.Fatalf("leaf %d proof must verify", i)
		}
	}

	// swapping two path elements breaks the proof
	bad := &TraitProof{PremiumLevel: set[0].premium, SecondaryLevel: set[0].secondary, Path: [][32]byte{right, leaves[1]}}
	if VerifyTraitProof(root, set[0].tokenID, bad) {
		t.Fatalf("reordered path must not verify")
	}
}

func TestVerifyTraitProofRejectsZeroRoot(t *testing.T) {
	proof, _ := singleLeafProof(7, 1, 1)
	if VerifyTraitProof([32]byte{}, 7, proof) {
		t.Fatalf("zero root must reject every proof")
	}
	if VerifyTraitProof([32]byte{0x01}, 7, nil) {
		t.Fatalf("nil proof must not verify")
	}
}

func TestHashPairIsOrderIndependent(t *testing.T) {
	a := TraitLeaf(1, 0, 0)
	b := TraitLeaf(2, 0, 0)
	if hashPair(a, b) != hashPair(b, a) {
		t.Fatalf("pair hash must sort its inputs")
	}
}
