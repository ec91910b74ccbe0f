package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/event"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/ledger"
)

// WithdrawBonds drains the caller's pending bond balance (returned and
// awarded bonds plus proposer rewards). Pull pattern: credits accumulate
// across markets and leave only on this call. Works while paused.
func (e *Engine) WithdrawBonds(addr common.Address) (*big.Int, error) {
	return e.withdrawPending(addr, ledger.SubTypePendingBonds, "withdraw_bonds", event.TypeBondsWithdrawn)
}

// WithdrawCreatorFees drains the caller's accrued creator fee balance.
// Works while paused.
func (e *Engine) WithdrawCreatorFees(addr common.Address) (*big.Int, error) {
	return e.withdrawPending(addr, ledger.SubTypeCreatorFees, "withdraw_creator_fees", event.TypeCreatorFeesWithdrawn)
}

func (e *Engine) withdrawPending(addr common.Address, subType ledger.AccountSubType, op string, typ event.Type) (*big.Int, error) {
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	account := ledger.UserAccount(addr, subType, 0)
	amount := e.tracker.Balance(account)
	if amount.Sign() == 0 {
		e.reject(op, "nothing_pending")
		return nil, ErrNothingToWithdraw
	}

	batch := e.newBatch(opRef(op, 0, addr))
	batch.Add(ledger.JournalTypeWithdrawal, ledger.ExternalAccount(ledger.SubTypeExternalFunds), account, amount)

	e.commit(op, batch, typ, nil, addr, event.Payout{AmountWei: amount.String()})
	e.log.Info().Str("addr", addr.Hex()).Str("sub_type", subType.String()).
		Str("amount", amount.String()).Msg("pending balance withdrawn")
	return amount, nil
}
