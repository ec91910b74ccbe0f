package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/event"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/ledger"
)

// Claim pays out a holder's winning shares on a resolved market. The payout
// is pro-rata against the remaining pool and remaining winning supply, so
// claim order only matters at the wei-rounding level. A resolution fee is
// taken from the gross payout. Claims work while paused.
func (e *Engine) Claim(claimer common.Address, marketID uint64) (*big.Int, error) {
	const op = "claim"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	m, err := e.getMarket(marketID)
	if err != nil {
		e.reject(op, "not_found")
		return nil, err
	}
	if !m.Resolved {
		e.reject(op, "not_resolved")
		return nil, ErrNotResolved
	}
	pos, ok := e.peekPosition(marketID, claimer)
	if !ok {
		e.reject(op, "no_winning_shares")
		return nil, ErrNoWinningShares
	}
	if pos.Claimed {
		e.reject(op, "already_claimed")
		return nil, ErrAlreadyClaimed
	}
	shares := pos.SideShares(m.Outcome)
	if shares.Sign() == 0 {
		e.reject(op, "no_winning_shares")
		return nil, ErrNoWinningShares
	}

	winSupply := m.SideSupply(m.Outcome)
	gross := fixedpoint.MulDiv(shares, m.PoolBalance, winSupply)
	fee := fixedpoint.BpsOf(gross, e.params.ResolutionFeeBps)
	net := new(big.Int).Sub(gross, fee)

	winSupply.Sub(winSupply, shares)
	m.PoolBalance.Sub(m.PoolBalance, gross)
	pos.Claimed = true
	claimed := fixedpoint.Clone(shares)
	shares.SetInt64(0)

	batch := e.newBatch(opRef(op, m.ID, claimer))
	pool := ledger.MarketAccount(m.ID, ledger.SubTypePool)
	if net.Sign() > 0 {
		batch.Add(ledger.JournalTypeClaimPayout, ledger.ExternalAccount(ledger.SubTypeExternalFunds), pool, net)
	}
	if fee.Sign() > 0 {
		batch.Add(ledger.JournalTypeResolutionFee, ledger.ExternalAccount(ledger.SubTypeExternalTreasury), pool, fee)
	}

	id := m.ID
	e.commit(op, batch, event.TypeWinningsClaimed, &id, claimer, event.Payout{AmountWei: net.String()})
	e.log.Info().Uint64("market_id", m.ID).Str("shares", claimed.String()).
		Str("payout", net.String()).Msg("winnings claimed")
	return net, nil
}

// ClaimJuryFees pays a winning-side voter their share of the jury pool:
// voteWeight * remainingPool / remainingWeight. Decrementing both keeps later
// claims exact regardless of order. Works while paused.
func (e *Engine) ClaimJuryFees(voter common.Address, marketID uint64) (*big.Int, error) {
	const op = "claim_jury_fees"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	m, err := e.getMarket(marketID)
	if err != nil {
		e.reject(op, "not_found")
		return nil, err
	}
	if !m.Resolved {
		e.reject(op, "not_resolved")
		return nil, ErrNotResolved
	}
	pos, ok := e.peekPosition(marketID, voter)
	if !ok || !pos.HasVoted || pos.VotedOutcome != m.Outcome || pos.VoteWeight.Sign() == 0 ||
		fixedpoint.IsZero(m.JuryWeightLeft) {
		e.reject(op, "not_eligible")
		return nil, ErrNoJuryFees
	}
	if pos.JuryFeeClaimed {
		e.reject(op, "already_claimed")
		return nil, ErrJuryFeesClaimed
	}

	amount := fixedpoint.MulDiv(pos.VoteWeight, m.JuryFeesPool, m.JuryWeightLeft)
	m.JuryFeesPool.Sub(m.JuryFeesPool, amount)
	m.JuryWeightLeft.Sub(m.JuryWeightLeft, pos.VoteWeight)
	pos.JuryFeeClaimed = true

	batch := e.newBatch(opRef(op, m.ID, voter))
	if amount.Sign() > 0 {
		batch.Add(ledger.JournalTypeJuryFeeClaim,
			ledger.ExternalAccount(ledger.SubTypeExternalFunds),
			ledger.MarketAccount(m.ID, ledger.SubTypeJuryPool), amount)
	}

	id := m.ID
	e.commit(op, batch, event.TypeJuryFeesClaimed, &id, voter, event.Payout{AmountWei: amount.String()})
	return amount, nil
}

// EmergencyRefund returns a holder's pro-rata slice of the pool on a market
// stuck unresolved past the refund delay. Blocked while a proposal or dispute
// is live, except under a governance pause, where the resolution machine
// itself is frozen and refunds are the only exit. Works while paused.
func (e *Engine) EmergencyRefund(holder common.Address, marketID uint64) (*big.Int, error) {
	const op = "emergency_refund"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	m, err := e.getMarket(marketID)
	if err != nil {
		e.reject(op, "not_found")
		return nil, err
	}
	if m.Resolved {
		e.reject(op, "resolved")
		return nil, ErrMarketResolved
	}
	if !e.now().After(m.Expiry.Add(e.params.Windows.RefundDelay)) {
		e.reject(op, "too_early")
		return nil, ErrRefundTooEarly
	}
	if (m.Proposal != nil || m.Dispute != nil) && !e.paused {
		e.reject(op, "resolution_in_progress")
		return nil, ErrResolutionInProgress
	}
	pos, ok := e.peekPosition(marketID, holder)
	if !ok || pos.Empty() {
		e.reject(op, "no_shares")
		return nil, ErrNoShares
	}
	if pos.EmergencyRefunded {
		e.reject(op, "already_refunded")
		return nil, ErrAlreadyRefunded
	}

	total := m.TotalSupply()
	held := pos.TotalShares()
	refund := fixedpoint.MulDiv(held, m.PoolBalance, total)

	m.YesSupply.Sub(m.YesSupply, pos.YesShares)
	m.NoSupply.Sub(m.NoSupply, pos.NoShares)
	m.PoolBalance.Sub(m.PoolBalance, refund)
	pos.YesShares.SetInt64(0)
	pos.NoShares.SetInt64(0)
	pos.EmergencyRefunded = true

	batch := e.newBatch(opRef(op, m.ID, holder))
	if refund.Sign() > 0 {
		batch.Add(ledger.JournalTypeEmergencyRefund,
			ledger.ExternalAccount(ledger.SubTypeExternalFunds),
			ledger.MarketAccount(m.ID, ledger.SubTypePool), refund)
	}

	id := m.ID
	e.commit(op, batch, event.TypeEmergencyRefunded, &id, holder, event.Payout{AmountWei: refund.String()})
	if e.metrics != nil {
		e.metrics.EmergencyRefunds.Inc()
	}
	e.log.Info().Uint64("market_id", m.ID).Str("refund", refund.String()).Msg("emergency refund")
	return refund, nil
}
