package staking

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"stakevault/native/assets"
	nativecommon "stakevault/native/common"
)

type mockState struct {
	collections  map[uint64]*CollectionConfig
	stakes       map[string]*StakeRecord
	tokenStakers map[string][20]byte
	traits       map[string]*TraitOverride
	accounts     map[string]*PointsAccount
	admins       map[[20]byte]bool
	snapshots    []mockSnapshot
}

type mockSnapshot struct {
	stakes       map[string]*StakeRecord
	tokenStakers map[string][20]byte
	traits       map[string]*TraitOverride
	accounts     map[string]*PointsAccount
}

func newMockState() *mockState {
	return &mockState{
		collections:  make(map[uint64]*CollectionConfig),
		stakes:       make(map[string]*StakeRecord),
		tokenStakers: make(map[string][20]byte),
		traits:       make(map[string]*TraitOverride),
		accounts:     make(map[string]*PointsAccount),
		admins:       make(map[[20]byte]bool),
	}
}

func stakeMapKey(collection uint64, owner [20]byte) string {
	return fmt.Sprintf("%d/%x", collection, owner)
}

func tokenMapKey(collection, tokenID uint64) string {
	return fmt.Sprintf("%d/%d", collection, tokenID)
}

func (m *mockState) CollectionConfig(id uint64) (*CollectionConfig, bool, error) {
	cfg, ok := m.collections[id]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) PutCollectionConfig(cfg *CollectionConfig) error {
	m.collections[cfg.ID] = cfg.Clone()
	return nil
}

func (m *mockState) StakeRecord(collection uint64, owner [20]byte) (*StakeRecord, bool, error) {
	rec, ok := m.stakes[stakeMapKey(collection, owner)]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (m *mockState) PutStakeRecord(collection uint64, owner [20]byte, rec *StakeRecord) error {
	m.stakes[stakeMapKey(collection, owner)] = rec.Clone()
	return nil
}

func (m *mockState) TokenStaker(collection, tokenID uint64) ([20]byte, bool, error) {
	owner, ok := m.tokenStakers[tokenMapKey(collection, tokenID)]
	return owner, ok, nil
}

func (m *mockState) SetTokenStaker(collection, tokenID uint64, owner [20]byte) error {
	m.tokenStakers[tokenMapKey(collection, tokenID)] = owner
	return nil
}

func (m *mockState) ClearTokenStaker(collection, tokenID uint64) error {
	delete(m.tokenStakers, tokenMapKey(collection, tokenID))
	return nil
}

func (m *mockState) TraitOverride(collection, tokenID uint64) (*TraitOverride, bool, error) {
	override, ok := m.traits[tokenMapKey(collection, tokenID)]
	if !ok {
		return nil, false, nil
	}
	copied := *override
	return &copied, true, nil
}

func (m *mockState) PutTraitOverride(collection, tokenID uint64, override *TraitOverride) error {
	copied := *override
	m.traits[tokenMapKey(collection, tokenID)] = &copied
	return nil
}

func (m *mockState) PointsAccount(owner [20]byte) (*PointsAccount, error) {
	account, ok := m.accounts[string(owner[:])]
	if !ok {
		return NewPointsAccount(), nil
	}
	return account.Clone(), nil
}

func (m *mockState) PutPointsAccount(owner [20]byte, account *PointsAccount) error {
	m.accounts[string(owner[:])] = account.Clone()
	return nil
}

func (m *mockState) HasRole(role string, addr [20]byte) bool {
	return role == RoleAdmin && m.admins[addr]
}

func (m *mockState) Snapshot() int {
	snap := mockSnapshot{
		stakes:       make(map[string]*StakeRecord, len(m.stakes)),
		tokenStakers: make(map[string][20]byte, len(m.tokenStakers)),
		traits:       make(map[string]*TraitOverride, len(m.traits)),
		accounts:     make(map[string]*PointsAccount, len(m.accounts)),
	}
	for k, v := range m.stakes {
		snap.stakes[k] = v.Clone()
	}
	for k, v := range m.tokenStakers {
		snap.tokenStakers[k] = v
	}
	for k, v := range m.traits {
		copied := *v
		snap.traits[k] = &copied
	}
	for k, v := range m.accounts {
		snap.accounts[k] = v.Clone()
	}
	m.snapshots = append(m.snapshots, snap)
	return len(m.snapshots) - 1
}

func (m *mockState) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	snap := m.snapshots[id]
	m.stakes = snap.stakes
	m.tokenStakers = snap.tokenStakers
	m.traits = snap.traits
	m.accounts = snap.accounts
	m.snapshots = m.snapshots[:id]
}

func testAddr(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

type fixture struct {
	state  *mockState
	nft    *assets.MemNFT
	fun    *assets.MemFungible
	slot   *assets.MemSlot
	source *assets.MemSource
	engine *Engine
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:  newMockState(),
		nft:    assets.NewMemNFT(),
		fun:    assets.NewMemFungible(),
		slot:   assets.NewMemSlot(),
		source: assets.NewMemSource(),
		now:    1_700_000_000,
	}
	f.source.NFTs[1] = f.nft
	f.source.Fungibles[2] = f.fun
	f.source.Slots[3] = f.slot
	f.state.collections[1] = &CollectionConfig{ID: 1, Active: true, Kind: KindUniqueNFT, BaseRate: big.NewInt(10),
		PremiumBonuses: []*big.Int{big.NewInt(5), big.NewInt(9)}, SecondaryBonuses: []*big.Int{big.NewInt(2)}}
	f.state.collections[2] = &CollectionConfig{ID: 2, Active: true, Kind: KindFungible, BaseRate: big.NewInt(3)}
	f.state.collections[3] = &CollectionConfig{ID: 3, Active: true, Kind: KindPooledNFT, SlotID: 77, BaseRate: big.NewInt(4)}
	f.engine = NewEngine(f.state, f.source)
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func (f *fixture) advanceDays(days int64) {
	f.now += days * int64(SecondsPerDay)
}

func TestStakeRecordsPosition(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); err != nil {
		t.Fatalf("stake: %v", err)
	}
	rec, _, _ := f.state.StakeRecord(1, alice)
	if len(rec.TokenIDs) != 1 || rec.TokenIDs[0] != 11 {
		t.Fatalf("unexpected token set %v", rec.TokenIDs)
	}
	if rec.StakedAt[11] != uint64(f.now) {
		t.Fatalf("unexpected stake timestamp %d", rec.StakedAt[11])
	}
	if owner, ok, _ := f.state.TokenStaker(1, 11); !ok || owner != alice {
		t.Fatalf("token staker index not recorded")
	}
}

func TestStakeRejectsDuplicateAcrossStakers(t *testing.T) {
	f := newFixture(t)
	alice, bob := testAddr(1), testAddr(2)
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); !errors.Is(err, ErrAlreadyStaked) {
		t.Fatalf("re-stake by owner should fail with ErrAlreadyStaked, got %v", err)
	}
	// even after the token moves, the staked index blocks a second stake
	if err := f.nft.TransferFrom(alice, bob, 11); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := f.engine.Stake(bob, 1, []uint64{11}, nil); !errors.Is(err, ErrAlreadyStaked) {
		t.Fatalf("stake by new owner should fail with ErrAlreadyStaked, got %v", err)
	}
}

func TestStakeRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	alice, bob := testAddr(1), testAddr(2)
	if err := f.nft.Mint(bob, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestStakeBatchIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	alice, bob := testAddr(1), testAddr(2)
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.nft.Mint(bob, 12); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := f.engine.Stake(alice, 1, []uint64{11, 12}, nil)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, ok, _ := f.state.StakeRecord(1, alice); ok {
		t.Fatalf("failed batch must leave no stake record")
	}
	if _, staked, _ := f.state.TokenStaker(1, 11); staked {
		t.Fatalf("failed batch must leave no staked index entry")
	}
}

func TestStakeGuardsSystemStatus(t *testing.T) {
	f := newFixture(t)
	f.engine.SetStatusView(archivedStatus{})
	alice := testAddr(1)
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); !errors.Is(err, nativecommon.ErrNotPublic) {
		t.Fatalf("expected ErrNotPublic, got %v", err)
	}
}

type archivedStatus struct{}

func (archivedStatus) Status() nativecommon.Status { return nativecommon.StatusArchived }

func TestAccrualThreeDayScenario(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); err != nil {
		t.Fatalf("stake: %v", err)
	}

	// no intervening time: zero accrual
	balance, err := f.engine.SpendablePoints(alice, []uint64{1}, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected 0 points immediately, got %s", balance)
	}

	f.advanceDays(3)
	balance, err = f.engine.SpendablePoints(alice, []uint64{1}, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 30 {
		t.Fatalf("expected 30 points after 3 days at rate 10, got %s", balance)
	}

	// half a day more, then unstake: the partial day earns nothing
	f.now += int64(SecondsPerDay / 2)
	if err := f.engine.Unstake(alice, 1, []uint64{11}); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	balance, err = f.engine.SpendablePoints(alice, []uint64{1}, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 30 {
		t.Fatalf("expected 30 banked points after unstake, got %s", balance)
	}

	// accrual stops once unstaked
	f.advanceDays(5)
	balance, err = f.engine.SpendablePoints(alice, []uint64{1}, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 30 {
		t.Fatalf("unstaked position must not accrue, got %s", balance)
	}
}

func TestBalanceQueryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.advanceDays(2)
	first, err := f.engine.SpendablePoints(alice, []uint64{1}, false)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	second, err := f.engine.SpendablePoints(alice, []uint64{1}, false)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if first.Cmp(second) != 0 {
		t.Fatalf("repeated query diverged: %s vs %s", first, second)
	}
}

func TestSpendableFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	account := NewPointsAccount()
	account.Redeemed = big.NewInt(1000)
	account.AfterUnstake = big.NewInt(40)
	if err := f.state.PutPointsAccount(alice, account); err != nil {
		t.Fatalf("put account: %v", err)
	}
	balance, err := f.engine.SpendablePoints(alice, nil, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("balance must floor at zero, got %s", balance)
	}
}

func TestTraitProofCommitsBonus(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	proof, root := singleLeafProof(11, 1, 1)
	cfg := f.state.collections[1]
	cfg.TraitRoot = root

	if err := f.engine.Stake(alice, 1, []uint64{11}, []*TraitProof{proof}); err != nil {
		t.Fatalf("stake: %v", err)
	}
	override, ok, _ := f.state.TraitOverride(1, 11)
	if !ok || override.PremiumLevel != 1 || override.SecondaryLevel != 1 {
		t.Fatalf("trait override not committed: %+v", override)
	}

	// rate 10 + premium 5 + secondary 2 = 17/day
	f.advanceDays(2)
	balance, err := f.engine.SpendablePoints(alice, []uint64{1}, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 34 {
		t.Fatalf("expected 34 points with bonuses, got %s", balance)
	}
}

func TestInvalidTraitProofDoesNotBlockStake(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	bogus := &TraitProof{PremiumLevel: 2, SecondaryLevel: 1, Path: [][32]byte{{0xAA}}}
	if err := f.engine.Stake(alice, 1, []uint64{11}, []*TraitProof{bogus}); err != nil {
		t.Fatalf("stake with invalid proof must succeed: %v", err)
	}
	if _, ok, _ := f.state.TraitOverride(1, 11); ok {
		t.Fatalf("invalid proof must not record a bonus")
	}
}

func TestTraitBonusSurvivesRootRotation(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	f.state.admins[testAddr(9)] = true
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	proof, root := singleLeafProof(11, 1, 0)
	f.state.collections[1].TraitRoot = root
	if err := f.engine.Stake(alice, 1, []uint64{11}, []*TraitProof{proof}); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := f.engine.SetTraitRoot(testAddr(9), 1, [32]byte{0xFF}); err != nil {
		t.Fatalf("rotate root: %v", err)
	}
	f.advanceDays(1)
	balance, err := f.engine.SpendablePoints(alice, []uint64{1}, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	// base 10 + premium 5: the committed override outlives the root
	if balance.Int64() != 15 {
		t.Fatalf("expected stale bonus to persist, got %s", balance)
	}
}

func TestSpendingQueryReverifiesOwnership(t *testing.T) {
	f := newFixture(t)
	alice, bob := testAddr(1), testAddr(2)
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.advanceDays(1)
	if err := f.nft.TransferFrom(alice, bob, 11); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := f.engine.SpendablePoints(alice, []uint64{1}, true); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("spending query must fail for transferred token, got %v", err)
	}
	if _, err := f.engine.SpendablePoints(alice, []uint64{1}, false); err != nil {
		t.Fatalf("display query must not re-verify: %v", err)
	}
}

func TestFungibleStakeAccrual(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	f.fun.Mint(alice, big.NewInt(50))

	if err := f.engine.StakeAmount(alice, 2, big.NewInt(100)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := f.engine.StakeAmount(alice, 2, big.NewInt(50)); err != nil {
		t.Fatalf("stake amount: %v", err)
	}
	if err := f.engine.StakeAmount(alice, 2, big.NewInt(1)); !errors.Is(err, ErrAlreadyStaked) {
		t.Fatalf("second amount position must fail, got %v", err)
	}

	f.advanceDays(2)
	// 2 days x rate 3 x amount 50 = 300
	balance, err := f.engine.SpendablePoints(alice, []uint64{2}, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 300 {
		t.Fatalf("expected 300 points, got %s", balance)
	}

	if err := f.engine.UnstakeAmount(alice, 2); err != nil {
		t.Fatalf("unstake amount: %v", err)
	}
	f.advanceDays(4)
	balance, err = f.engine.SpendablePoints(alice, []uint64{2}, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 300 {
		t.Fatalf("accrual must stop after unstake, got %s", balance)
	}
}

func TestPooledStakeChecksSlotBalance(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	f.slot.Mint(alice, 77, big.NewInt(5))
	if err := f.engine.StakeAmount(alice, 3, big.NewInt(6)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := f.engine.StakeAmount(alice, 3, big.NewInt(5)); err != nil {
		t.Fatalf("stake amount: %v", err)
	}
}

func TestUnstakeBatchIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	for _, id := range []uint64{11, 12} {
		if err := f.nft.Mint(alice, id); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	if err := f.engine.Stake(alice, 1, []uint64{11, 12}, nil); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.advanceDays(1)
	err := f.engine.Unstake(alice, 1, []uint64{11, 99})
	if !errors.Is(err, ErrNotStaked) {
		t.Fatalf("expected ErrNotStaked, got %v", err)
	}
	rec, _, _ := f.state.StakeRecord(1, alice)
	if len(rec.TokenIDs) != 2 {
		t.Fatalf("failed unstake batch must leave both tokens staked, got %v", rec.TokenIDs)
	}
	account, _ := f.state.PointsAccount(alice)
	if account.AfterUnstake.Sign() != 0 {
		t.Fatalf("failed unstake batch must bank no points, got %s", account.AfterUnstake)
	}
}

func TestAdminUnstakeRequiresRole(t *testing.T) {
	f := newFixture(t)
	alice, admin := testAddr(1), testAddr(9)
	if err := f.nft.Mint(alice, 11); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := f.engine.AdminUnstake(admin, alice, 1, []uint64{11}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	f.state.admins[admin] = true
	if err := f.engine.AdminUnstake(admin, alice, 1, []uint64{11}); err != nil {
		t.Fatalf("admin unstake: %v", err)
	}
	if _, staked, _ := f.state.TokenStaker(1, 11); staked {
		t.Fatalf("admin unstake must clear the staked index")
	}
}

func TestGrantPointsAdjustsAddOns(t *testing.T) {
	f := newFixture(t)
	alice, admin := testAddr(1), testAddr(9)
	f.state.admins[admin] = true

	if err := f.engine.GrantPoints(alice, alice, big.NewInt(10)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.GrantPoints(admin, alice, big.NewInt(25)); err != nil {
		t.Fatalf("grant: %v", err)
	}
	balance, err := f.engine.SpendablePoints(alice, nil, true)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 25 {
		t.Fatalf("expected 25 granted points, got %s", balance)
	}

	// corrections may go negative but add-ons floor at zero
	if err := f.engine.GrantPoints(admin, alice, big.NewInt(-100)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	balance, _ = f.engine.SpendablePoints(alice, nil, true)
	if balance.Sign() != 0 {
		t.Fatalf("add-ons must floor at zero, got %s", balance)
	}
}

func TestInactiveCollectionRejectsStake(t *testing.T) {
	f := newFixture(t)
	alice := testAddr(1)
	f.state.collections[1].Active = false
	if err := f.engine.Stake(alice, 1, []uint64{11}, nil); !errors.Is(err, ErrCollectionInactive) {
		t.Fatalf("expected ErrCollectionInactive, got %v", err)
	}
	if err := f.engine.Stake(alice, 42, []uint64{11}, nil); !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}
