// Package claims couples the points-accrual ledger to the vault's item
// dispenser: one claim spans many catalog entries and either commits in full
// or leaves every ledger untouched.
package claims

import (
	"math/big"

	"stakevault/core/events"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/native/vault"
)

// State is the slice of ledger state the coordinator touches directly: the
// claimant's points account plus the journal that makes the whole claim
// all-or-nothing.
type State interface {
	PointsAccount(owner [20]byte) (*staking.PointsAccount, error)
	PutPointsAccount(owner [20]byte, account *staking.PointsAccount) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// Result reports a committed claim.
type Result struct {
	TotalCost *big.Int
	Balance   *big.Int
	Receipts  []*vault.Receipt
}

// Coordinator fans a multi-entry claim out to the vault and commits the
// aggregate point deduction.
type Coordinator struct {
	state   State
	staking *staking.Engine
	vault   *vault.Engine
	status  nativecommon.StatusView
	emitter events.Emitter
}

// NewCoordinator wires the claim flow across the staking and vault engines.
func NewCoordinator(state State, stakingEngine *staking.Engine, vaultEngine *vault.Engine) *Coordinator {
	return &Coordinator{
		state:   state,
		staking: stakingEngine,
		vault:   vaultEngine,
		emitter: events.NoopEmitter{},
	}
}

// SetStatusView configures the system status gate.
func (c *Coordinator) SetStatusView(v nativecommon.StatusView) { c.status = v }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (c *Coordinator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// Claim spends the caller's points on the requested catalog entries. The
// spendable balance is computed once, with full ownership re-verification,
// across stakingCollections. Entries are processed in order; each entry's
// cumulative claim counter is bumped before the vault call so a re-entering
// callee never observes a stale counter. The aggregate cost check runs after
// all entries, and any failure reverts every mutation made along the way.
// External asset delivery happens last, after the cost is debited, because
// registry transfers are outside the journal and cannot be reverted.
func (c *Coordinator) Claim(caller [20]byte, catalogIDs []uint64, quantities []uint64, stakingCollections []uint64) (*Result, error) {
	if c == nil || c.state == nil {
		return nil, ErrNilState
	}
	if c.staking == nil || c.vault == nil {
		return nil, ErrNilEngines
	}
	if err := nativecommon.Guard(c.status); err != nil {
		return nil, err
	}
	if len(catalogIDs) != len(quantities) {
		return nil, ErrLengthMismatch
	}
	requested := false
	for _, quantity := range quantities {
		if quantity > 0 {
			requested = true
			break
		}
	}
	if !requested {
		return nil, ErrEmptyClaim
	}

	snapshot := c.state.Snapshot()
	result, err := c.claim(caller, catalogIDs, quantities, stakingCollections)
	if err != nil {
		c.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) claim(caller [20]byte, catalogIDs []uint64, quantities []uint64, stakingCollections []uint64) (*Result, error) {
	balance, err := c.staking.SpendablePoints(caller, stakingCollections, true)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrNoPoints
	}

	total := big.NewInt(0)
	receipts := make([]*vault.Receipt, 0, len(catalogIDs))
	for i, catalog := range catalogIDs {
		quantity := quantities[i]
		if quantity == 0 {
			continue
		}
		account, err := c.state.PointsAccount(caller)
		if err != nil {
			return nil, err
		}
		account = account.Clone().Normalize()
		prior := account.Claims[catalog]
		account.Claims[catalog] = prior + quantity
		if err := c.state.PutPointsAccount(caller, account); err != nil {
			return nil, err
		}
		receipt, err := c.vault.Fulfil(caller, catalog, quantity, balance, prior)
		if err != nil {
			return nil, err
		}
		total.Add(total, receipt.Cost)
		receipts = append(receipts, receipt)
	}

	// Per-entry checks only cover hurdle and cap; the cumulative spend is
	// only bounded here.
	if total.Cmp(balance) > 0 {
		return nil, ErrInsufficientPoints
	}

	account, err := c.state.PointsAccount(caller)
	if err != nil {
		return nil, err
	}
	account = account.Clone().Normalize()
	account.Redeemed.Add(account.Redeemed, total)
	if err := c.state.PutPointsAccount(caller, account); err != nil {
		return nil, err
	}

	// Registry transfers cannot be journaled, so they run only once every
	// ledger check has passed.
	for _, receipt := range receipts {
		if err := c.vault.Deliver(caller, receipt); err != nil {
			return nil, err
		}
	}

	c.emitter.Emit(events.ClaimRedeemed{
		Claimant:  caller,
		Catalogs:  append([]uint64(nil), catalogIDs...),
		TotalCost: new(big.Int).Set(total),
		Balance:   new(big.Int).Set(balance),
	})
	return &Result{TotalCost: total, Balance: balance, Receipts: receipts}, nil
}
