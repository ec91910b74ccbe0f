package engine

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/gov"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/ledger"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/market"
)

// Snapshot is a full serializable copy of engine state, used for restart
// recovery. Amounts are decimal strings so the JSON form is lossless.
// Pending governance actions are not included; they expire within hours and
// signers re-propose after a restart.
type Snapshot struct {
	Sequence     int64            `json:"sequence"`
	NextMarketID uint64           `json:"next_market_id"`
	Paused       bool             `json:"paused"`
	Signers      []common.Address `json:"signers"`
	Params       ParamsSnapshot   `json:"params"`

	Markets   []MarketSnapshot   `json:"markets"`
	Positions []PositionSnapshot `json:"positions"`
	Balances  []BalanceSnapshot  `json:"balances"`
}

// ParamsSnapshot mirrors Params with string amounts.
type ParamsSnapshot struct {
	PlatformFeeBps    uint32 `json:"platform_fee_bps"`
	CreatorFeeBps     uint32 `json:"creator_fee_bps"`
	ResolutionFeeBps  uint32 `json:"resolution_fee_bps"`
	ResolutionFee     string `json:"resolution_fee"`
	MinBet            string `json:"min_bet"`
	BondFloor         string `json:"bond_floor"`
	BondBps           uint32 `json:"bond_bps"`
	ProposerRewardBps uint32 `json:"proposer_reward_bps"`
	JuryShareBps      uint32 `json:"jury_share_bps"`

	CreatorPriorityWindow time.Duration `json:"creator_priority_window"`
	DisputeWindow         time.Duration `json:"dispute_window"`
	VotingWindow          time.Duration `json:"voting_window"`
	RefundDelay           time.Duration `json:"refund_delay"`
}

// MarketSnapshot mirrors market.Market.
type MarketSnapshot struct {
	ID              uint64            `json:"id"`
	Question        string            `json:"question"`
	EvidenceLink    string            `json:"evidence_link,omitempty"`
	ResolutionRules string            `json:"resolution_rules,omitempty"`
	ImageURL        string            `json:"image_url,omitempty"`
	Creator         common.Address    `json:"creator"`
	Expiry          time.Time         `json:"expiry"`
	Heat            string            `json:"heat"`
	YesSupply       string            `json:"yes_supply"`
	NoSupply        string            `json:"no_supply"`
	PoolBalance     string            `json:"pool_balance"`
	Resolved        bool              `json:"resolved"`
	Outcome         bool              `json:"outcome"`
	Proposal        *ProposalSnapshot `json:"proposal,omitempty"`
	Dispute         *DisputeSnapshot  `json:"dispute,omitempty"`
	JuryFeesPool    string            `json:"jury_fees_pool,omitempty"`
	JuryWeightLeft  string            `json:"jury_weight_left,omitempty"`
}

type ProposalSnapshot struct {
	Proposer   common.Address `json:"proposer"`
	Outcome    bool           `json:"outcome"`
	Bond       string         `json:"bond"`
	ProofLink  string         `json:"proof_link,omitempty"`
	ProposedAt time.Time      `json:"proposed_at"`
}

type DisputeSnapshot struct {
	Disputer      common.Address `json:"disputer"`
	Bond          string         `json:"bond"`
	DisputedAt    time.Time      `json:"disputed_at"`
	YesVoteWeight string         `json:"yes_vote_weight"`
	NoVoteWeight  string         `json:"no_vote_weight"`
}

// PositionSnapshot mirrors one (market, holder) position.
type PositionSnapshot struct {
	MarketID          uint64         `json:"market_id"`
	Holder            common.Address `json:"holder"`
	YesShares         string         `json:"yes_shares"`
	NoShares          string         `json:"no_shares"`
	TotalInvested     string         `json:"total_invested"`
	Claimed           bool           `json:"claimed"`
	EmergencyRefunded bool           `json:"emergency_refunded"`
	HasVoted          bool           `json:"has_voted"`
	VotedOutcome      bool           `json:"voted_outcome"`
	VoteWeight        string         `json:"vote_weight"`
	JuryFeeClaimed    bool           `json:"jury_fee_claimed"`
}

// BalanceSnapshot mirrors one ledger account balance.
type BalanceSnapshot struct {
	Scope    uint8          `json:"scope"`
	Addr     common.Address `json:"addr"`
	SubType  uint8          `json:"sub_type"`
	MarketID uint64         `json:"market_id"`
	Balance  string         `json:"balance"`
}

// Snapshot captures the full engine state.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := &Snapshot{
		Sequence:     e.seq,
		NextMarketID: e.nextMarketID,
		Paused:       e.paused,
		Signers:      e.council.Signers(),
		Params: ParamsSnapshot{
			PlatformFeeBps:        e.params.PlatformFeeBps,
			CreatorFeeBps:         e.params.CreatorFeeBps,
			ResolutionFeeBps:      e.params.ResolutionFeeBps,
			ResolutionFee:         e.params.ResolutionFee.String(),
			MinBet:                e.params.MinBet.String(),
			BondFloor:             e.params.BondFloor.String(),
			BondBps:               e.params.BondBps,
			ProposerRewardBps:     e.params.ProposerRewardBps,
			JuryShareBps:          e.params.JuryShareBps,
			CreatorPriorityWindow: e.params.Windows.CreatorPriority,
			DisputeWindow:         e.params.Windows.Dispute,
			VotingWindow:          e.params.Windows.Voting,
			RefundDelay:           e.params.Windows.RefundDelay,
		},
	}

	for _, id := range e.marketOrder {
		m := e.markets[id]
		ms := MarketSnapshot{
			ID:              m.ID,
			Question:        m.Question,
			EvidenceLink:    m.EvidenceLink,
			ResolutionRules: m.ResolutionRules,
			ImageURL:        m.ImageURL,
			Creator:         m.Creator,
			Expiry:          m.Expiry,
			Heat:            m.Heat.String(),
			YesSupply:       m.YesSupply.String(),
			NoSupply:        m.NoSupply.String(),
			PoolBalance:     m.PoolBalance.String(),
			Resolved:        m.Resolved,
			Outcome:         m.Outcome,
		}
		if m.Proposal != nil {
			ms.Proposal = &ProposalSnapshot{
				Proposer:   m.Proposal.Proposer,
				Outcome:    m.Proposal.Outcome,
				Bond:       m.Proposal.Bond.String(),
				ProofLink:  m.Proposal.ProofLink,
				ProposedAt: m.Proposal.ProposedAt,
			}
		}
		if m.Dispute != nil {
			ms.Dispute = &DisputeSnapshot{
				Disputer:      m.Dispute.Disputer,
				Bond:          m.Dispute.Bond.String(),
				DisputedAt:    m.Dispute.DisputedAt,
				YesVoteWeight: m.Dispute.YesVoteWeight.String(),
				NoVoteWeight:  m.Dispute.NoVoteWeight.String(),
			}
		}
		if m.JuryFeesPool != nil {
			ms.JuryFeesPool = m.JuryFeesPool.String()
		}
		if m.JuryWeightLeft != nil {
			ms.JuryWeightLeft = m.JuryWeightLeft.String()
		}
		snap.Markets = append(snap.Markets, ms)
	}

	for key, pos := range e.positions {
		snap.Positions = append(snap.Positions, PositionSnapshot{
			MarketID:          key.marketID,
			Holder:            key.addr,
			YesShares:         pos.YesShares.String(),
			NoShares:          pos.NoShares.String(),
			TotalInvested:     pos.TotalInvested.String(),
			Claimed:           pos.Claimed,
			EmergencyRefunded: pos.EmergencyRefunded,
			HasVoted:          pos.HasVoted,
			VotedOutcome:      pos.VotedOutcome,
			VoteWeight:        pos.VoteWeight.String(),
			JuryFeeClaimed:    pos.JuryFeeClaimed,
		})
	}

	for key, bal := range e.tracker.Snapshot() {
		if bal.Sign() == 0 {
			continue
		}
		snap.Balances = append(snap.Balances, BalanceSnapshot{
			Scope:    uint8(key.Scope),
			Addr:     key.Addr,
			SubType:  uint8(key.SubType),
			MarketID: key.MarketID,
			Balance:  bal.String(),
		})
	}
	return snap
}

// Restore replaces engine state with a snapshot. Only valid on a freshly
// constructed engine before it serves traffic.
func (e *Engine) Restore(snap *Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := paramsFromSnapshot(snap.Params)
	if err != nil {
		return err
	}
	council, err := gov.NewQueue(snap.Signers, e.actionExpiry)
	if err != nil {
		return fmt.Errorf("restore signer set: %w", err)
	}

	markets := make(map[uint64]*market.Market, len(snap.Markets))
	order := make([]uint64, 0, len(snap.Markets))
	for _, ms := range snap.Markets {
		m, err := marketFromSnapshot(ms)
		if err != nil {
			return err
		}
		markets[m.ID] = m
		order = append(order, m.ID)
	}

	positions := make(map[positionKey]*market.Position, len(snap.Positions))
	for _, ps := range snap.Positions {
		pos := market.NewPosition()
		if pos.YesShares, err = parseWei(ps.YesShares); err != nil {
			return fmt.Errorf("position yes shares: %w", err)
		}
		if pos.NoShares, err = parseWei(ps.NoShares); err != nil {
			return fmt.Errorf("position no shares: %w", err)
		}
		if pos.TotalInvested, err = parseWei(ps.TotalInvested); err != nil {
			return fmt.Errorf("position invested: %w", err)
		}
		if pos.VoteWeight, err = parseWei(ps.VoteWeight); err != nil {
			return fmt.Errorf("position vote weight: %w", err)
		}
		pos.Claimed = ps.Claimed
		pos.EmergencyRefunded = ps.EmergencyRefunded
		pos.HasVoted = ps.HasVoted
		pos.VotedOutcome = ps.VotedOutcome
		pos.JuryFeeClaimed = ps.JuryFeeClaimed
		positions[positionKey{marketID: ps.MarketID, addr: ps.Holder}] = pos
	}

	balances := make(map[ledger.AccountKey]*big.Int, len(snap.Balances))
	for _, bs := range snap.Balances {
		bal, err := parseSignedWei(bs.Balance)
		if err != nil {
			return fmt.Errorf("balance %s: %w", bs.Balance, err)
		}
		balances[ledger.AccountKey{
			Scope:    ledger.AccountScope(bs.Scope),
			Addr:     bs.Addr,
			SubType:  ledger.AccountSubType(bs.SubType),
			MarketID: bs.MarketID,
		}] = bal
	}
	tracker := ledger.RestoreBalances(balances)

	e.seq = snap.Sequence
	e.nextMarketID = snap.NextMarketID
	e.paused = snap.Paused
	e.params = params
	e.council = council
	e.markets = markets
	e.marketOrder = order
	e.positions = positions
	e.tracker = tracker
	e.validator = ledger.NewInvariantValidator(tracker)

	if err := e.validator.ValidateZeroSum(); err != nil {
		return fmt.Errorf("restored snapshot: %w", err)
	}
	return nil
}

func paramsFromSnapshot(ps ParamsSnapshot) (Params, error) {
	resolutionFee, err := parseWei(ps.ResolutionFee)
	if err != nil {
		return Params{}, fmt.Errorf("resolution fee: %w", err)
	}
	minBet, err := parseWei(ps.MinBet)
	if err != nil {
		return Params{}, fmt.Errorf("min bet: %w", err)
	}
	bondFloor, err := parseWei(ps.BondFloor)
	if err != nil {
		return Params{}, fmt.Errorf("bond floor: %w", err)
	}
	return Params{
		PlatformFeeBps:    ps.PlatformFeeBps,
		CreatorFeeBps:     ps.CreatorFeeBps,
		ResolutionFeeBps:  ps.ResolutionFeeBps,
		ResolutionFee:     resolutionFee,
		MinBet:            minBet,
		BondFloor:         bondFloor,
		BondBps:           ps.BondBps,
		ProposerRewardBps: ps.ProposerRewardBps,
		JuryShareBps:      ps.JuryShareBps,
		Windows: market.Windows{
			CreatorPriority: ps.CreatorPriorityWindow,
			Dispute:         ps.DisputeWindow,
			Voting:          ps.VotingWindow,
			RefundDelay:     ps.RefundDelay,
		},
	}, nil
}

func marketFromSnapshot(ms MarketSnapshot) (*market.Market, error) {
	heat, err := market.ParseHeatLevel(ms.Heat)
	if err != nil {
		return nil, fmt.Errorf("market %d: %w", ms.ID, err)
	}
	m := &market.Market{
		ID:              ms.ID,
		Question:        ms.Question,
		EvidenceLink:    ms.EvidenceLink,
		ResolutionRules: ms.ResolutionRules,
		ImageURL:        ms.ImageURL,
		Creator:         ms.Creator,
		Expiry:          ms.Expiry,
		Heat:            heat,
		Resolved:        ms.Resolved,
		Outcome:         ms.Outcome,
	}
	if m.YesSupply, err = parseWei(ms.YesSupply); err != nil {
		return nil, fmt.Errorf("market %d yes supply: %w", ms.ID, err)
	}
	if m.NoSupply, err = parseWei(ms.NoSupply); err != nil {
		return nil, fmt.Errorf("market %d no supply: %w", ms.ID, err)
	}
	if m.PoolBalance, err = parseWei(ms.PoolBalance); err != nil {
		return nil, fmt.Errorf("market %d pool: %w", ms.ID, err)
	}
	if ms.JuryFeesPool != "" {
		if m.JuryFeesPool, err = parseWei(ms.JuryFeesPool); err != nil {
			return nil, fmt.Errorf("market %d jury pool: %w", ms.ID, err)
		}
	}
	if ms.JuryWeightLeft != "" {
		if m.JuryWeightLeft, err = parseWei(ms.JuryWeightLeft); err != nil {
			return nil, fmt.Errorf("market %d jury weight: %w", ms.ID, err)
		}
	}
	if ms.Proposal != nil {
		bond, err := parseWei(ms.Proposal.Bond)
		if err != nil {
			return nil, fmt.Errorf("market %d proposal bond: %w", ms.ID, err)
		}
		m.Proposal = &market.Proposal{
			Proposer:   ms.Proposal.Proposer,
			Outcome:    ms.Proposal.Outcome,
			Bond:       bond,
			ProofLink:  ms.Proposal.ProofLink,
			ProposedAt: ms.Proposal.ProposedAt,
		}
	}
	if ms.Dispute != nil {
		d := &market.Dispute{
			Disputer:   ms.Dispute.Disputer,
			DisputedAt: ms.Dispute.DisputedAt,
		}
		if d.Bond, err = parseWei(ms.Dispute.Bond); err != nil {
			return nil, fmt.Errorf("market %d dispute bond: %w", ms.ID, err)
		}
		if d.YesVoteWeight, err = parseWei(ms.Dispute.YesVoteWeight); err != nil {
			return nil, fmt.Errorf("market %d yes votes: %w", ms.ID, err)
		}
		if d.NoVoteWeight, err = parseWei(ms.Dispute.NoVoteWeight); err != nil {
			return nil, fmt.Errorf("market %d no votes: %w", ms.ID, err)
		}
		m.Dispute = d
	}
	return m, nil
}

func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return fixedpoint.Zero(), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func parseSignedWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
