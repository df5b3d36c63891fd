package claims

import (
	"errors"
	"math/big"
	"testing"

	"stakevault/core/state"
	"stakevault/native/assets"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/native/vault"
	"stakevault/storage"
)

func testAddr(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

type fixture struct {
	manager     *state.Manager
	nft         *assets.MemNFT
	poolNFT     *assets.MemNFT
	source      *assets.MemSource
	stakingEng  *staking.Engine
	vaultEng    *vault.Engine
	coordinator *Coordinator
	custody     [20]byte
	now         int64
}

// newFixture wires the full claim path over the real ledger: collection 1 is a
// stakeable unique-NFT registry, catalog 10 a pool-NFT entry and catalog 1 a
// physical entry.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager, err := state.NewManager(storage.NewMemDB())
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	f := &fixture{
		manager: manager,
		nft:     assets.NewMemNFT(),
		poolNFT: assets.NewMemNFT(),
		source:  assets.NewMemSource(),
		custody: testAddr(0xCC),
		now:     1_700_000_000,
	}
	f.source.NFTs[1] = f.nft
	f.source.NFTs[10] = f.poolNFT

	f.stakingEng = staking.NewEngine(manager, f.source)
	f.stakingEng.SetNowFunc(func() int64 { return f.now })
	f.vaultEng = vault.NewEngine(manager, f.source, f.custody)
	f.coordinator = NewCoordinator(manager, f.stakingEng, f.vaultEng)

	admin := testAddr(9)
	manager.GrantRole(staking.RoleAdmin, admin)
	if err := f.stakingEng.RegisterCollection(admin, &staking.CollectionConfig{
		ID: 1, Active: true, Kind: staking.KindUniqueNFT, BaseRate: big.NewInt(10),
	}); err != nil {
		t.Fatalf("register collection: %v", err)
	}
	if err := f.vaultEng.UpsertEntry(admin, &vault.Entry{
		ID: 1, Name: "tour hoodie", Kind: vault.KindPhysical,
		Cost: big.NewInt(20), Hurdle: big.NewInt(100), Stock: 5, ClaimCap: 2,
	}); err != nil {
		t.Fatalf("upsert physical: %v", err)
	}
	pool := []uint64{101, 102, 103}
	for _, id := range pool {
		if err := f.poolNFT.Mint(f.custody, id); err != nil {
			t.Fatalf("mint pool token: %v", err)
		}
	}
	if err := f.vaultEng.UpsertEntry(admin, &vault.Entry{
		ID: 10, Name: "drop", Kind: vault.KindPoolNFT, Cost: big.NewInt(30), Pool: pool,
	}); err != nil {
		t.Fatalf("upsert pool: %v", err)
	}
	return f
}

// stakeAndAccrue gives owner one staked token and days of accrual at rate 10.
func (f *fixture) stakeAndAccrue(t *testing.T, owner [20]byte, tokenID uint64, days int64) {
	t.Helper()
	if err := f.nft.Mint(owner, tokenID); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.stakingEng.Stake(owner, 1, []uint64{tokenID}, nil); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.now += days * int64(staking.SecondsPerDay)
}

func TestClaimCommitsAcrossEntries(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	f.stakeAndAccrue(t, alice, 11, 15) // 150 points

	result, err := f.coordinator.Claim(alice, []uint64{1, 10}, []uint64{1, 1}, []uint64{1})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if result.TotalCost.Int64() != 50 {
		t.Fatalf("expected total cost 50, got %s", result.TotalCost)
	}
	if len(result.Receipts) != 2 {
		t.Fatalf("expected two receipts, got %d", len(result.Receipts))
	}

	account, err := f.manager.PointsAccount(alice)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.Redeemed.Int64() != 50 {
		t.Fatalf("expected 50 redeemed, got %s", account.Redeemed)
	}
	if account.Claims[1] != 1 || account.Claims[10] != 1 {
		t.Fatalf("claim counters not committed: %+v", account.Claims)
	}

	balance, err := f.stakingEng.SpendablePoints(alice, []uint64{1}, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 100 {
		t.Fatalf("expected 100 spendable after claim, got %s", balance)
	}

	entry, err := f.vaultEng.Entry(1)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.Stock != 4 {
		t.Fatalf("expected stock 4, got %d", entry.Stock)
	}
	poolEntry, err := f.vaultEng.Entry(10)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if len(poolEntry.Pool) != 2 {
		t.Fatalf("expected pool of 2, got %d", len(poolEntry.Pool))
	}
	if owner, err := f.poolNFT.OwnerOf(result.Receipts[1].TokenIDs[0]); err != nil || owner != alice {
		t.Fatalf("pool token not delivered to claimant")
	}
}

func TestClaimRevertsWhollyOnLateFailure(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	f.stakeAndAccrue(t, alice, 11, 15)

	// second entry is unknown: the first entry's mutations must unwind too
	_, err := f.coordinator.Claim(alice, []uint64{1, 99}, []uint64{1, 1}, []uint64{1})
	if !errors.Is(err, vault.ErrUnknownEntry) {
		t.Fatalf("expected ErrUnknownEntry, got %v", err)
	}

	entry, err := f.vaultEng.Entry(1)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.Stock != 5 {
		t.Fatalf("stock must be restored to 5, got %d", entry.Stock)
	}
	account, err := f.manager.PointsAccount(alice)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.Redeemed.Sign() != 0 || len(account.Claims) != 0 {
		t.Fatalf("points account must be untouched, got %+v", account)
	}
	if log, _ := f.vaultEng.RedemptionLog(1); len(log) != 0 {
		t.Fatalf("redemption log must be empty after revert, got %d entries", len(log))
	}

	// same failure with a pool entry first: no token may leave custody
	_, err = f.coordinator.Claim(alice, []uint64{10, 99}, []uint64{2, 1}, []uint64{1})
	if !errors.Is(err, vault.ErrUnknownEntry) {
		t.Fatalf("expected ErrUnknownEntry, got %v", err)
	}
	poolEntry, err := f.vaultEng.Entry(10)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if len(poolEntry.Pool) != 3 {
		t.Fatalf("pool must be restored, got %d", len(poolEntry.Pool))
	}
	for _, id := range []uint64{101, 102, 103} {
		if owner, err := f.poolNFT.OwnerOf(id); err != nil || owner != f.custody {
			t.Fatalf("token %d must stay in custody after revert", id)
		}
	}
}

func TestClaimEnforcesAggregateCost(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	f.stakeAndAccrue(t, alice, 11, 11) // 110 points

	// hurdle passes per entry (110 >= 100 and >= 0) but 2x20 + 3x30 = 130 > 110
	_, err := f.coordinator.Claim(alice, []uint64{1, 10}, []uint64{2, 3}, []uint64{1})
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	entry, _ := f.vaultEng.Entry(1)
	if entry.Stock != 5 {
		t.Fatalf("stock must be restored, got %d", entry.Stock)
	}
	poolEntry, _ := f.vaultEng.Entry(10)
	if len(poolEntry.Pool) != 3 {
		t.Fatalf("pool must be restored, got %d", len(poolEntry.Pool))
	}
	for _, id := range []uint64{101, 102, 103} {
		if owner, err := f.poolNFT.OwnerOf(id); err != nil || owner != f.custody {
			t.Fatalf("token %d must stay in custody after revert", id)
		}
	}
}

func TestClaimRequiresPoints(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	if _, err := f.coordinator.Claim(alice, []uint64{1}, []uint64{1}, []uint64{1}); !errors.Is(err, ErrNoPoints) {
		t.Fatalf("expected ErrNoPoints, got %v", err)
	}
}

func TestClaimRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	if _, err := f.coordinator.Claim(alice, []uint64{1, 10}, []uint64{1}, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := f.coordinator.Claim(alice, []uint64{1}, []uint64{0}, nil); !errors.Is(err, ErrEmptyClaim) {
		t.Fatalf("expected ErrEmptyClaim, got %v", err)
	}
}

func TestClaimHonorsSystemStatus(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	f.stakeAndAccrue(t, alice, 11, 15)
	f.manager.SetStatus(nativecommon.StatusArchived)
	f.coordinator.SetStatusView(f.manager)
	if _, err := f.coordinator.Claim(alice, []uint64{1}, []uint64{1}, []uint64{1}); !errors.Is(err, nativecommon.ErrNotPublic) {
		t.Fatalf("expected ErrNotPublic, got %v", err)
	}
}

func TestClaimCountersAccumulateAcrossClaims(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	f.stakeAndAccrue(t, alice, 11, 30) // 300 points

	if _, err := f.coordinator.Claim(alice, []uint64{1}, []uint64{2}, []uint64{1}); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// cap is 2 and both units are used up
	_, err := f.coordinator.Claim(alice, []uint64{1}, []uint64{1}, []uint64{1})
	if !errors.Is(err, vault.ErrClaimCapExceeded) {
		t.Fatalf("expected ErrClaimCapExceeded, got %v", err)
	}
	account, _ := f.manager.PointsAccount(alice)
	if account.Claims[1] != 2 {
		t.Fatalf("failed claim must not advance the counter, got %d", account.Claims[1])
	}
}
