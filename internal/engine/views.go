package engine

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/amm"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/market"
)

// MarketView is a read-only snapshot of one market with its derived status
// and current spot prices. All big.Int fields are copies.
type MarketView struct {
	ID              uint64
	Question        string
	EvidenceLink    string
	ResolutionRules string
	ImageURL        string
	Creator         common.Address
	Expiry          time.Time
	Heat            market.HeatLevel
	Status          market.Status

	YesSupply   *big.Int
	NoSupply    *big.Int
	PoolBalance *big.Int
	PriceYes    *big.Int
	PriceNo     *big.Int

	Resolved bool
	Outcome  bool

	Proposal *ProposalView
	Dispute  *DisputeView

	JuryFeesPool *big.Int
}

// ProposalView mirrors a live proposal.
type ProposalView struct {
	Proposer        common.Address
	Outcome         bool
	Bond            *big.Int
	ProofLink       string
	ProposedAt      time.Time
	DisputeDeadline time.Time
}

// DisputeView mirrors a live dispute.
type DisputeView struct {
	Disputer       common.Address
	Bond           *big.Int
	DisputedAt     time.Time
	VotingClosesAt time.Time
	YesVoteWeight  *big.Int
	NoVoteWeight   *big.Int
}

// PositionView is a read-only snapshot of one holding.
type PositionView struct {
	MarketID      uint64
	YesShares     *big.Int
	NoShares      *big.Int
	TotalInvested *big.Int

	Claimed           bool
	EmergencyRefunded bool
	HasVoted          bool
	VotedOutcome      bool
	VoteWeight        *big.Int
	JuryFeeClaimed    bool
}

// PendingBalances groups a user's pull-pattern withdrawable balances.
type PendingBalances struct {
	Bonds       *big.Int
	CreatorFees *big.Int
}

// Market returns a snapshot of one market.
func (e *Engine) Market(id uint64) (*MarketView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.getMarket(id)
	if err != nil {
		return nil, err
	}
	return e.marketView(m), nil
}

// Markets returns snapshots of all markets in creation order.
func (e *Engine) Markets() []*MarketView {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*MarketView, 0, len(e.marketOrder))
	for _, id := range e.marketOrder {
		out = append(out, e.marketView(e.markets[id]))
	}
	return out
}

func (e *Engine) marketView(m *market.Market) *MarketView {
	curve := amm.New(m.Heat.VirtualLiquidity())
	priceYes, priceNo := curve.Prices(m.YesSupply, m.NoSupply)
	v := &MarketView{
		ID:              m.ID,
		Question:        m.Question,
		EvidenceLink:    m.EvidenceLink,
		ResolutionRules: m.ResolutionRules,
		ImageURL:        m.ImageURL,
		Creator:         m.Creator,
		Expiry:          m.Expiry,
		Heat:            m.Heat,
		Status:          e.status(m),
		YesSupply:       fixedpoint.Clone(m.YesSupply),
		NoSupply:        fixedpoint.Clone(m.NoSupply),
		PoolBalance:     fixedpoint.Clone(m.PoolBalance),
		PriceYes:        priceYes,
		PriceNo:         priceNo,
		Resolved:        m.Resolved,
		Outcome:         m.Outcome,
		JuryFeesPool:    fixedpoint.Clone(m.JuryFeesPool),
	}
	if m.Proposal != nil {
		v.Proposal = &ProposalView{
			Proposer:        m.Proposal.Proposer,
			Outcome:         m.Proposal.Outcome,
			Bond:            fixedpoint.Clone(m.Proposal.Bond),
			ProofLink:       m.Proposal.ProofLink,
			ProposedAt:      m.Proposal.ProposedAt,
			DisputeDeadline: m.Proposal.ProposedAt.Add(e.params.Windows.Dispute),
		}
	}
	if m.Dispute != nil {
		v.Dispute = &DisputeView{
			Disputer:       m.Dispute.Disputer,
			Bond:           fixedpoint.Clone(m.Dispute.Bond),
			DisputedAt:     m.Dispute.DisputedAt,
			VotingClosesAt: m.Dispute.DisputedAt.Add(e.params.Windows.Voting),
			YesVoteWeight:  fixedpoint.Clone(m.Dispute.YesVoteWeight),
			NoVoteWeight:   fixedpoint.Clone(m.Dispute.NoVoteWeight),
		}
	}
	return v
}

// Position returns a snapshot of one holding; an untouched position reads as
// all zeroes.
func (e *Engine) Position(addr common.Address, marketID uint64) (*PositionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.getMarket(marketID); err != nil {
		return nil, err
	}
	v := &PositionView{
		MarketID:      marketID,
		YesShares:     fixedpoint.Zero(),
		NoShares:      fixedpoint.Zero(),
		TotalInvested: fixedpoint.Zero(),
		VoteWeight:    fixedpoint.Zero(),
	}
	pos, ok := e.peekPosition(marketID, addr)
	if !ok {
		return v, nil
	}
	v.YesShares = fixedpoint.Clone(pos.YesShares)
	v.NoShares = fixedpoint.Clone(pos.NoShares)
	v.TotalInvested = fixedpoint.Clone(pos.TotalInvested)
	v.Claimed = pos.Claimed
	v.EmergencyRefunded = pos.EmergencyRefunded
	v.HasVoted = pos.HasVoted
	v.VotedOutcome = pos.VotedOutcome
	v.VoteWeight = fixedpoint.Clone(pos.VoteWeight)
	v.JuryFeeClaimed = pos.JuryFeeClaimed
	return v, nil
}

// Pending returns a user's withdrawable balances.
func (e *Engine) Pending(addr common.Address) PendingBalances {
	e.mu.Lock()
	defer e.mu.Unlock()
	return PendingBalances{
		Bonds:       e.tracker.PendingBonds(addr),
		CreatorFees: e.tracker.PendingCreatorFees(addr),
	}
}

// PendingJuryFees returns a voter's unclaimed jury-fee share for one market,
// zero if ineligible.
func (e *Engine) PendingJuryFees(addr common.Address, marketID uint64) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[marketID]
	if !ok || !m.Resolved || fixedpoint.IsZero(m.JuryWeightLeft) {
		return fixedpoint.Zero()
	}
	pos, found := e.peekPosition(marketID, addr)
	if !found || !pos.HasVoted || pos.VotedOutcome != m.Outcome || pos.JuryFeeClaimed {
		return fixedpoint.Zero()
	}
	return fixedpoint.MulDiv(pos.VoteWeight, m.JuryFeesPool, m.JuryWeightLeft)
}

// SweepableSurplus reports the pool dust a Sweep action would extract.
func (e *Engine) SweepableSurplus() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := fixedpoint.Zero()
	for _, id := range e.marketOrder {
		m := e.markets[id]
		if m.Resolved && m.SideSupply(m.Outcome).Sign() == 0 && m.PoolBalance.Sign() > 0 {
			total.Add(total, m.PoolBalance)
		}
	}
	return total
}

// ContractCash returns the total native currency the ledger says the system
// holds.
func (e *Engine) ContractCash() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.ContractCash()
}
