// Package query converts engine views into API response types. Amounts are
// rendered both as raw wei strings (lossless) and as 18-decimal unit strings
// for humans; all conversion happens here so the engine stays big.Int-only.
package query

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
)

// Service serves read-only API responses from the engine.
type Service struct {
	eng *engine.Engine
}

func NewService(eng *engine.Engine) *Service {
	return &Service{eng: eng}
}

// Amount renders a wei value both ways.
type Amount struct {
	Wei   string `json:"wei"`
	Units string `json:"units"`
}

func NewAmount(v *big.Int) Amount {
	if v == nil {
		v = fixedpoint.Zero()
	}
	return Amount{
		Wei:   v.String(),
		Units: decimal.NewFromBigInt(v, -fixedpoint.Decimals).String(),
	}
}

// MarketResponse is the API shape of one market.
type MarketResponse struct {
	ID              uint64    `json:"id"`
	Question        string    `json:"question"`
	EvidenceLink    string    `json:"evidence_link,omitempty"`
	ResolutionRules string    `json:"resolution_rules,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	Creator         string    `json:"creator"`
	Expiry          time.Time `json:"expiry"`
	HeatLevel       string    `json:"heat_level"`
	Status          string    `json:"status"`

	YesSupply   Amount `json:"yes_supply"`
	NoSupply    Amount `json:"no_supply"`
	PoolBalance Amount `json:"pool_balance"`
	PriceYes    Amount `json:"price_yes"`
	PriceNo     Amount `json:"price_no"`

	Resolved bool  `json:"resolved"`
	Outcome  *bool `json:"outcome,omitempty"`

	Proposal *ProposalResponse `json:"proposal,omitempty"`
	Dispute  *DisputeResponse  `json:"dispute,omitempty"`

	JuryFeesPool *Amount `json:"jury_fees_pool,omitempty"`
}

type ProposalResponse struct {
	Proposer        string    `json:"proposer"`
	Outcome         bool      `json:"outcome"`
	Bond            Amount    `json:"bond"`
	ProofLink       string    `json:"proof_link,omitempty"`
	ProposedAt      time.Time `json:"proposed_at"`
	DisputeDeadline time.Time `json:"dispute_deadline"`
}

type DisputeResponse struct {
	Disputer       string    `json:"disputer"`
	Bond           Amount    `json:"bond"`
	DisputedAt     time.Time `json:"disputed_at"`
	VotingClosesAt time.Time `json:"voting_closes_at"`
	YesVoteWeight  Amount    `json:"yes_vote_weight"`
	NoVoteWeight   Amount    `json:"no_vote_weight"`
}

// PositionResponse is the API shape of one holding.
type PositionResponse struct {
	MarketID      uint64 `json:"market_id"`
	Address       string `json:"address"`
	YesShares     Amount `json:"yes_shares"`
	NoShares      Amount `json:"no_shares"`
	TotalInvested Amount `json:"total_invested"`

	Claimed           bool   `json:"claimed"`
	EmergencyRefunded bool   `json:"emergency_refunded"`
	HasVoted          bool   `json:"has_voted"`
	VotedOutcome      *bool  `json:"voted_outcome,omitempty"`
	VoteWeight        Amount `json:"vote_weight"`
	JuryFeeClaimed    bool   `json:"jury_fee_claimed"`
}

// PendingResponse groups a user's withdrawable balances.
type PendingResponse struct {
	Address     string `json:"address"`
	Bonds       Amount `json:"bonds"`
	CreatorFees Amount `json:"creator_fees"`
}

// QuoteResponse is a trade preview.
type QuoteResponse struct {
	Shares   Amount `json:"shares"`
	Amount   Amount `json:"amount"`
	FeeTotal Amount `json:"fee_total"`
	PriceYes Amount `json:"price_yes"`
	PriceNo  Amount `json:"price_no"`
}

// Market returns one market.
func (s *Service) Market(id uint64) (*MarketResponse, error) {
	v, err := s.eng.Market(id)
	if err != nil {
		return nil, err
	}
	return marketResponse(v), nil
}

// Markets returns all markets in creation order.
func (s *Service) Markets() []*MarketResponse {
	views := s.eng.Markets()
	out := make([]*MarketResponse, 0, len(views))
	for _, v := range views {
		out = append(out, marketResponse(v))
	}
	return out
}

// Position returns one holding.
func (s *Service) Position(addr common.Address, marketID uint64) (*PositionResponse, error) {
	v, err := s.eng.Position(addr, marketID)
	if err != nil {
		return nil, err
	}
	resp := &PositionResponse{
		MarketID:          v.MarketID,
		Address:           addr.Hex(),
		YesShares:         NewAmount(v.YesShares),
		NoShares:          NewAmount(v.NoShares),
		TotalInvested:     NewAmount(v.TotalInvested),
		Claimed:           v.Claimed,
		EmergencyRefunded: v.EmergencyRefunded,
		HasVoted:          v.HasVoted,
		VoteWeight:        NewAmount(v.VoteWeight),
		JuryFeeClaimed:    v.JuryFeeClaimed,
	}
	if v.HasVoted {
		outcome := v.VotedOutcome
		resp.VotedOutcome = &outcome
	}
	return resp, nil
}

// Pending returns a user's withdrawable balances.
func (s *Service) Pending(addr common.Address) *PendingResponse {
	p := s.eng.Pending(addr)
	return &PendingResponse{
		Address:     addr.Hex(),
		Bonds:       NewAmount(p.Bonds),
		CreatorFees: NewAmount(p.CreatorFees),
	}
}

// PendingJuryFees returns a voter's unclaimed jury-fee share.
func (s *Service) PendingJuryFees(addr common.Address, marketID uint64) Amount {
	return NewAmount(s.eng.PendingJuryFees(addr, marketID))
}

// PreviewBuy quotes a buy.
func (s *Service) PreviewBuy(marketID uint64, isYes bool, amount *big.Int) (*QuoteResponse, error) {
	q, err := s.eng.PreviewBuy(marketID, isYes, amount)
	if err != nil {
		return nil, err
	}
	return quoteResponse(q), nil
}

// PreviewSell quotes a sell.
func (s *Service) PreviewSell(marketID uint64, isYes bool, shares *big.Int) (*QuoteResponse, error) {
	q, err := s.eng.PreviewSell(marketID, isYes, shares)
	if err != nil {
		return nil, err
	}
	return quoteResponse(q), nil
}

// MaxSellable returns the largest sellable share count and its proceeds.
func (s *Service) MaxSellable(addr common.Address, marketID uint64, isYes bool) (*QuoteResponse, error) {
	shares, proceeds, err := s.eng.MaxSellableShares(addr, marketID, isYes)
	if err != nil {
		return nil, err
	}
	return &QuoteResponse{
		Shares: NewAmount(shares),
		Amount: NewAmount(proceeds),
	}, nil
}

// ProposalBond returns the bond required to propose right now.
func (s *Service) ProposalBond(marketID uint64) (Amount, error) {
	bond, err := s.eng.ProposalBond(marketID)
	if err != nil {
		return Amount{}, err
	}
	return NewAmount(bond), nil
}

// SweepableSurplus reports what a governance sweep would extract.
func (s *Service) SweepableSurplus() Amount {
	return NewAmount(s.eng.SweepableSurplus())
}

func marketResponse(v *engine.MarketView) *MarketResponse {
	resp := &MarketResponse{
		ID:              v.ID,
		Question:        v.Question,
		EvidenceLink:    v.EvidenceLink,
		ResolutionRules: v.ResolutionRules,
		ImageURL:        v.ImageURL,
		Creator:         v.Creator.Hex(),
		Expiry:          v.Expiry,
		HeatLevel:       v.Heat.String(),
		Status:          v.Status.String(),
		YesSupply:       NewAmount(v.YesSupply),
		NoSupply:        NewAmount(v.NoSupply),
		PoolBalance:     NewAmount(v.PoolBalance),
		PriceYes:        NewAmount(v.PriceYes),
		PriceNo:         NewAmount(v.PriceNo),
		Resolved:        v.Resolved,
	}
	if v.Resolved {
		outcome := v.Outcome
		resp.Outcome = &outcome
		if v.JuryFeesPool != nil && v.JuryFeesPool.Sign() > 0 {
			pool := NewAmount(v.JuryFeesPool)
			resp.JuryFeesPool = &pool
		}
	}
	if v.Proposal != nil {
		resp.Proposal = &ProposalResponse{
			Proposer:        v.Proposal.Proposer.Hex(),
			Outcome:         v.Proposal.Outcome,
			Bond:            NewAmount(v.Proposal.Bond),
			ProofLink:       v.Proposal.ProofLink,
			ProposedAt:      v.Proposal.ProposedAt,
			DisputeDeadline: v.Proposal.DisputeDeadline,
		}
	}
	if v.Dispute != nil {
		resp.Dispute = &DisputeResponse{
			Disputer:       v.Dispute.Disputer.Hex(),
			Bond:           NewAmount(v.Dispute.Bond),
			DisputedAt:     v.Dispute.DisputedAt,
			VotingClosesAt: v.Dispute.VotingClosesAt,
			YesVoteWeight:  NewAmount(v.Dispute.YesVoteWeight),
			NoVoteWeight:   NewAmount(v.Dispute.NoVoteWeight),
		}
	}
	return resp
}

func quoteResponse(q *engine.Quote) *QuoteResponse {
	return &QuoteResponse{
		Shares:   NewAmount(q.Shares),
		Amount:   NewAmount(q.Amount),
		FeeTotal: NewAmount(q.FeeTotal),
		PriceYes: NewAmount(q.PriceYes),
		PriceNo:  NewAmount(q.PriceNo),
	}
}
