package ledger

import (
	"fmt"
	"math/big"
)

// InvariantValidator checks ledger invariants after each committed batch.
// A violation here means engine math produced an impossible money state;
// the engine treats it as fatal.
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{tracker: tracker}
}

// ValidatePoolNonNegative checks a market pool never goes below zero.
func (v *InvariantValidator) ValidatePoolNonNegative(marketID uint64) error {
	bal := v.tracker.Balance(MarketAccount(marketID, SubTypePool))
	if bal.Sign() < 0 {
		return fmt.Errorf("market %d pool is negative: %s", marketID, bal)
	}
	return nil
}

// ValidateInternalNonNegative checks that no user or market account has been
// driven negative. External accounts are exempt: they run negative by design
// as cash enters the contract.
func (v *InvariantValidator) ValidateInternalNonNegative() error {
	for key, bal := range v.tracker.balances {
		if key.Scope == ScopeExternal {
			continue
		}
		if bal.Sign() < 0 {
			return fmt.Errorf("account %s is negative: %s", key.AccountPath(), bal)
		}
	}
	return nil
}

// ValidateZeroSum verifies the ledger is globally balanced.
func (v *InvariantValidator) ValidateZeroSum() error {
	if total := v.tracker.GlobalSum(); total.Sign() != 0 {
		return fmt.Errorf("global balance is non-zero: %s", total)
	}
	return nil
}

// ValidateCashCovers checks contract cash covers a required locked amount.
func (v *InvariantValidator) ValidateCashCovers(locked *big.Int) error {
	cash := v.tracker.ContractCash()
	if cash.Cmp(locked) < 0 {
		return fmt.Errorf("contract cash %s below locked funds %s", cash, locked)
	}
	return nil
}
