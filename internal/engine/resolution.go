package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/event"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/ledger"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/market"
)

// ProposalBond returns the bond required to propose on a market right now:
// max(BondFloor, pool * BondBps / 10000).
func (e *Engine) ProposalBond(marketID uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.getMarket(marketID)
	if err != nil {
		return nil, err
	}
	return e.proposalBond(m), nil
}

func (e *Engine) proposalBond(m *market.Market) *big.Int {
	return fixedpoint.Max(e.params.BondFloor, fixedpoint.BpsOf(m.PoolBalance, e.params.BondBps))
}

// ProposeOutcome posts a bonded outcome proposal on an expired market.
// payment must equal bond + flat resolution fee exactly; within the creator
// priority window only the market creator may propose.
func (e *Engine) ProposeOutcome(proposer common.Address, marketID uint64, outcome bool, proofLink string, payment *big.Int) error {
	const op = "propose_outcome"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	m, err := e.getMarket(marketID)
	if err != nil {
		e.reject(op, "not_found")
		return err
	}
	if e.paused {
		e.reject(op, "paused")
		return ErrPaused
	}
	switch e.status(m) {
	case market.StatusActive:
		e.reject(op, "not_expired")
		return ErrMarketNotExpired
	case market.StatusProposed, market.StatusDisputed:
		e.reject(op, "already_proposed")
		return ErrAlreadyProposed
	case market.StatusResolved:
		e.reject(op, "resolved")
		return ErrMarketResolved
	}
	// A one-sided market has nobody to pay on one outcome and divides by
	// zero on the other; it can only exit through emergency refunds.
	if m.OneSided() {
		e.reject(op, "one_sided")
		return ErrOneSidedMarket
	}
	now := e.now()
	if proposer != m.Creator && !now.After(m.Expiry.Add(e.params.Windows.CreatorPriority)) {
		e.reject(op, "creator_priority")
		return ErrCreatorPriority
	}

	bond := e.proposalBond(m)
	required := new(big.Int).Add(bond, e.params.ResolutionFee)
	if payment == nil || payment.Cmp(required) != 0 {
		e.reject(op, "wrong_payment")
		return ErrWrongPayment
	}

	m.Proposal = &market.Proposal{
		Proposer:   proposer,
		Outcome:    outcome,
		Bond:       bond,
		ProofLink:  proofLink,
		ProposedAt: now,
	}

	batch := e.newBatch(opRef(op, m.ID, proposer))
	funds := ledger.ExternalAccount(ledger.SubTypeExternalFunds)
	batch.Add(ledger.JournalTypeBondPost, ledger.MarketAccount(m.ID, ledger.SubTypeBondEscrow), funds, bond)
	batch.Add(ledger.JournalTypeResolutionFee, ledger.ExternalAccount(ledger.SubTypeExternalTreasury), funds, e.params.ResolutionFee)

	id := m.ID
	e.commit(op, batch, event.TypeOutcomeProposed, &id, proposer, event.OutcomeProposed{
		Outcome:   outcome,
		BondWei:   bond.String(),
		ProofLink: proofLink,
	})
	if e.metrics != nil {
		e.metrics.ProposalsPosted.Inc()
	}
	e.log.Info().Uint64("market_id", m.ID).Bool("outcome", outcome).Str("bond", bond.String()).Msg("outcome proposed")
	return nil
}

// Dispute challenges the standing proposal within the dispute window. The
// dispute bond is double the posted proposal bond; payment must equal
// bond + flat resolution fee exactly.
func (e *Engine) Dispute(disputer common.Address, marketID uint64, payment *big.Int) error {
	const op = "dispute"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	m, err := e.getMarket(marketID)
	if err != nil {
		e.reject(op, "not_found")
		return err
	}
	if e.paused {
		e.reject(op, "paused")
		return ErrPaused
	}
	switch e.status(m) {
	case market.StatusDisputed:
		e.reject(op, "already_disputed")
		return ErrAlreadyDisputed
	case market.StatusResolved:
		e.reject(op, "resolved")
		return ErrMarketResolved
	case market.StatusActive, market.StatusExpired:
		e.reject(op, "no_proposal")
		return ErrNoProposal
	}
	now := e.now()
	if now.After(m.Proposal.ProposedAt.Add(e.params.Windows.Dispute)) {
		e.reject(op, "window_closed")
		return ErrDisputeWindowClosed
	}

	bond := new(big.Int).Lsh(m.Proposal.Bond, 1)
	required := new(big.Int).Add(bond, e.params.ResolutionFee)
	if payment == nil || payment.Cmp(required) != 0 {
		e.reject(op, "wrong_payment")
		return ErrWrongPayment
	}

	m.Dispute = &market.Dispute{
		Disputer:      disputer,
		Bond:          bond,
		DisputedAt:    now,
		YesVoteWeight: fixedpoint.Zero(),
		NoVoteWeight:  fixedpoint.Zero(),
	}

	batch := e.newBatch(opRef(op, m.ID, disputer))
	funds := ledger.ExternalAccount(ledger.SubTypeExternalFunds)
	batch.Add(ledger.JournalTypeBondPost, ledger.MarketAccount(m.ID, ledger.SubTypeBondEscrow), funds, bond)
	batch.Add(ledger.JournalTypeResolutionFee, ledger.ExternalAccount(ledger.SubTypeExternalTreasury), funds, e.params.ResolutionFee)

	id := m.ID
	e.commit(op, batch, event.TypeProposalDisputed, &id, disputer, event.ProposalDisputed{
		BondWei: bond.String(),
	})
	if e.metrics != nil {
		e.metrics.DisputesPosted.Inc()
	}
	e.log.Info().Uint64("market_id", m.ID).Str("bond", bond.String()).Msg("proposal disputed")
	return nil
}

// Vote casts a stake-weighted jury vote on a disputed market. Weight is the
// voter's total share count (both sides) at vote time, fixed from then on.
func (e *Engine) Vote(voter common.Address, marketID uint64, outcome bool) error {
	const op = "vote"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	m, err := e.getMarket(marketID)
	if err != nil {
		e.reject(op, "not_found")
		return err
	}
	if e.paused {
		e.reject(op, "paused")
		return ErrPaused
	}
	if e.status(m) != market.StatusDisputed {
		e.reject(op, "no_dispute")
		return ErrNoDispute
	}
	if e.now().After(m.Dispute.DisputedAt.Add(e.params.Windows.Voting)) {
		e.reject(op, "voting_closed")
		return ErrVotingClosed
	}
	pos, ok := e.peekPosition(marketID, voter)
	if !ok || pos.Empty() {
		e.reject(op, "no_shares")
		return ErrNoShares
	}
	if pos.HasVoted {
		e.reject(op, "already_voted")
		return ErrAlreadyVoted
	}

	weight := pos.TotalShares()
	if outcome {
		m.Dispute.YesVoteWeight.Add(m.Dispute.YesVoteWeight, weight)
	} else {
		m.Dispute.NoVoteWeight.Add(m.Dispute.NoVoteWeight, weight)
	}
	pos.HasVoted = true
	pos.VotedOutcome = outcome
	pos.VoteWeight = weight

	id := m.ID
	e.commit(op, nil, event.TypeVoteCast, &id, voter, event.VoteCast{
		Outcome: outcome,
		Weight:  weight.String(),
	})
	return nil
}

// FinalizeMarket drives a proposed or disputed market to its terminal state
// once the relevant window has passed. Anyone may call it.
//
// Undisputed path: the proposal stands; the proposer's bond plus a pool-rate
// reward are pull-credited back. Disputed path: the vote decides; the losing
// bond funds the winner's award and the jury carve-out. A tied vote or a
// winning side with zero outstanding shares is a soft failure: both bonds are
// returned, votes reset, and the market drops back to Expired for a fresh
// proposal.
func (e *Engine) FinalizeMarket(caller common.Address, marketID uint64) error {
	const op = "finalize"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	m, err := e.getMarket(marketID)
	if err != nil {
		e.reject(op, "not_found")
		return err
	}
	if e.paused {
		e.reject(op, "paused")
		return ErrPaused
	}
	switch e.status(m) {
	case market.StatusResolved:
		e.reject(op, "resolved")
		return ErrMarketResolved
	case market.StatusDisputed:
		if !e.now().After(m.Dispute.DisputedAt.Add(e.params.Windows.Voting)) {
			e.reject(op, "too_early")
			return ErrFinalizeTooEarly
		}
		return e.finalizeDisputed(m, caller)
	case market.StatusProposed:
		if !e.now().After(m.Proposal.ProposedAt.Add(e.params.Windows.Dispute)) {
			e.reject(op, "too_early")
			return ErrFinalizeTooEarly
		}
		return e.finalizeUndisputed(m, caller)
	default:
		e.reject(op, "no_proposal")
		return ErrNoProposal
	}
}

func (e *Engine) finalizeUndisputed(m *market.Market, caller common.Address) error {
	const op = "finalize"
	outcome := m.Proposal.Outcome

	// Paused-state emergency refunds can drain a side after the proposal
	// passed the one-sided check. Resolving then would strand the pool.
	if m.SideSupply(outcome).Sign() == 0 {
		return e.failResolution(m, caller, event.FailureEmptyWinningSide)
	}

	proposer := m.Proposal.Proposer
	bond := m.Proposal.Bond
	reward := fixedpoint.BpsOf(m.PoolBalance, e.params.ProposerRewardBps)

	batch := e.newBatch(opRef(op, m.ID, caller))
	escrow := ledger.MarketAccount(m.ID, ledger.SubTypeBondEscrow)
	pending := ledger.UserAccount(proposer, ledger.SubTypePendingBonds, 0)
	batch.Add(ledger.JournalTypeBondRefund, pending, escrow, bond)
	if reward.Sign() > 0 {
		batch.Add(ledger.JournalTypeProposerReward, pending, ledger.MarketAccount(m.ID, ledger.SubTypePool), reward)
		m.PoolBalance.Sub(m.PoolBalance, reward)
	}

	m.Resolved = true
	m.Outcome = outcome

	id := m.ID
	e.commit(op, batch, event.TypeMarketResolved, &id, caller, event.MarketResolved{
		Outcome:  outcome,
		Disputed: false,
	})
	if e.metrics != nil {
		e.metrics.MarketsResolved.WithLabelValues("undisputed").Inc()
		e.metrics.MarketsOpen.Dec()
	}
	e.log.Info().Uint64("market_id", m.ID).Bool("outcome", outcome).Msg("market resolved undisputed")
	return nil
}

func (e *Engine) finalizeDisputed(m *market.Market, caller common.Address) error {
	const op = "finalize"
	d := m.Dispute

	cmp := d.YesVoteWeight.Cmp(d.NoVoteWeight)
	if cmp == 0 {
		return e.failResolution(m, caller, event.FailureVoteTie)
	}
	outcome := cmp > 0
	if m.SideSupply(outcome).Sign() == 0 {
		return e.failResolution(m, caller, event.FailureEmptyWinningSide)
	}

	// Bond battle: the proposer wins if the vote upheld the proposal.
	winner := m.Proposal.Proposer
	winnerBond, loserBond := m.Proposal.Bond, d.Bond
	if outcome != m.Proposal.Outcome {
		winner = d.Disputer
		winnerBond, loserBond = d.Bond, m.Proposal.Bond
	}
	carve := fixedpoint.BpsOf(loserBond, e.params.JuryShareBps)
	award := new(big.Int).Add(winnerBond, loserBond)
	award.Sub(award, carve)

	batch := e.newBatch(opRef(op, m.ID, caller))
	escrow := ledger.MarketAccount(m.ID, ledger.SubTypeBondEscrow)
	batch.Add(ledger.JournalTypeBondAward, ledger.UserAccount(winner, ledger.SubTypePendingBonds, 0), escrow, award)
	if carve.Sign() > 0 {
		batch.Add(ledger.JournalTypeJuryCarve, ledger.MarketAccount(m.ID, ledger.SubTypeJuryPool), escrow, carve)
	}

	winWeight := d.YesVoteWeight
	if !outcome {
		winWeight = d.NoVoteWeight
	}
	m.Resolved = true
	m.Outcome = outcome
	m.JuryFeesPool = fixedpoint.Clone(carve)
	m.JuryWeightLeft = fixedpoint.Clone(winWeight)

	id := m.ID
	e.commit(op, batch, event.TypeMarketResolved, &id, caller, event.MarketResolved{
		Outcome:     outcome,
		Disputed:    true,
		JuryPoolWei: carve.String(),
	})
	if e.metrics != nil {
		e.metrics.MarketsResolved.WithLabelValues("disputed").Inc()
		e.metrics.MarketsOpen.Dec()
	}
	e.log.Info().Uint64("market_id", m.ID).Bool("outcome", outcome).Str("jury_pool", carve.String()).Msg("market resolved disputed")
	return nil
}

// failResolution returns all posted bonds, erases the proposal round and
// drops the market back to Expired. The flat resolution fees are not
// returned.
func (e *Engine) failResolution(m *market.Market, caller common.Address, reason event.ResolutionFailureReason) error {
	const op = "finalize"
	batch := e.newBatch(opRef(op, m.ID, caller))
	escrow := ledger.MarketAccount(m.ID, ledger.SubTypeBondEscrow)
	batch.Add(ledger.JournalTypeBondRefund,
		ledger.UserAccount(m.Proposal.Proposer, ledger.SubTypePendingBonds, 0), escrow, m.Proposal.Bond)
	if m.Dispute != nil {
		batch.Add(ledger.JournalTypeBondRefund,
			ledger.UserAccount(m.Dispute.Disputer, ledger.SubTypePendingBonds, 0), escrow, m.Dispute.Bond)
	}

	m.Proposal = nil
	m.Dispute = nil
	e.resetVotes(m.ID)

	id := m.ID
	e.commit(op, batch, event.TypeResolutionFailed, &id, caller, event.ResolutionFailed{Reason: reason})
	if e.metrics != nil {
		e.metrics.ResolutionsFailed.WithLabelValues(string(reason)).Inc()
	}
	e.log.Warn().Uint64("market_id", m.ID).Str("reason", string(reason)).Msg("resolution failed, bonds returned")
	return nil
}

// resetVotes clears per-position vote state so a repeated dispute round
// starts from a clean ballot.
func (e *Engine) resetVotes(marketID uint64) {
	for key, pos := range e.positions {
		if key.marketID != marketID || !pos.HasVoted {
			continue
		}
		pos.HasVoted = false
		pos.VotedOutcome = false
		pos.VoteWeight = fixedpoint.Zero()
	}
}
