package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceTracker maintains in-memory account balances. It is not
// goroutine-safe; the engine serializes all access under its own lock.
type BalanceTracker struct {
	balances map[AccountKey]*big.Int
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]*big.Int),
	}
}

// ApplyJournal applies a single entry: debit account up, credit account down.
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.add(j.DebitAccount, j.Amount)
	bt.sub(j.CreditAccount, j.Amount)
}

// ApplyBatch validates and applies all journals in a batch.
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}
	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}
	return nil
}

func (bt *BalanceTracker) add(key AccountKey, amount *big.Int) {
	cur, ok := bt.balances[key]
	if !ok {
		cur = new(big.Int)
		bt.balances[key] = cur
	}
	cur.Add(cur, amount)
}

func (bt *BalanceTracker) sub(key AccountKey, amount *big.Int) {
	cur, ok := bt.balances[key]
	if !ok {
		cur = new(big.Int)
		bt.balances[key] = cur
	}
	cur.Sub(cur, amount)
}

// Balance returns a copy of the current balance for an account.
func (bt *BalanceTracker) Balance(key AccountKey) *big.Int {
	if cur, ok := bt.balances[key]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// PendingBonds returns a user's withdrawable bond balance.
func (bt *BalanceTracker) PendingBonds(addr common.Address) *big.Int {
	return bt.Balance(UserAccount(addr, SubTypePendingBonds, 0))
}

// PendingCreatorFees returns a creator's accrued fee balance.
func (bt *BalanceTracker) PendingCreatorFees(addr common.Address) *big.Int {
	return bt.Balance(UserAccount(addr, SubTypeCreatorFees, 0))
}

// PendingJuryFees returns a voter's unclaimed jury fees for one market.
func (bt *BalanceTracker) PendingJuryFees(addr common.Address, marketID uint64) *big.Int {
	return bt.Balance(UserAccount(addr, SubTypeJuryFees, marketID))
}

// ContractCash returns the total native currency the contract holds:
// the negated sum of the external accounts (zero-sum ledger).
func (bt *BalanceTracker) ContractCash() *big.Int {
	cash := new(big.Int)
	for key, bal := range bt.balances {
		if key.Scope == ScopeExternal {
			cash.Sub(cash, bal)
		}
	}
	return cash
}

// SumSubType sums all balances of one (scope, sub-type) pair.
func (bt *BalanceTracker) SumSubType(scope AccountScope, subType AccountSubType) *big.Int {
	total := new(big.Int)
	for key, bal := range bt.balances {
		if key.Scope == scope && key.SubType == subType {
			total.Add(total, bal)
		}
	}
	return total
}

// GlobalSum returns the sum of every account; a zero-sum ledger must always
// return zero here.
func (bt *BalanceTracker) GlobalSum() *big.Int {
	total := new(big.Int)
	for _, bal := range bt.balances {
		total.Add(total, bal)
	}
	return total
}

// RestoreBalances builds a tracker from a balance dump, used when restoring
// an engine snapshot.
func RestoreBalances(balances map[AccountKey]*big.Int) *BalanceTracker {
	bt := NewBalanceTracker()
	for key, bal := range balances {
		bt.balances[key] = new(big.Int).Set(bal)
	}
	return bt
}

// Snapshot copies all balances, for state dumps and tests.
func (bt *BalanceTracker) Snapshot() map[AccountKey]*big.Int {
	out := make(map[AccountKey]*big.Int, len(bt.balances))
	for key, bal := range bt.balances {
		out[key] = new(big.Int).Set(bal)
	}
	return out
}
