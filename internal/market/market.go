// Package market defines the core data model: markets, positions, proposals,
// disputes, and the derived lifecycle status. Status is always computed from
// the injected clock, never stored, so it cannot desync from the timestamp
// comparisons that define it.
package market

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
)

// Status is the derived lifecycle state of a market.
type Status uint8

const (
	StatusActive Status = iota
	StatusExpired
	StatusProposed
	StatusDisputed
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusExpired:
		return "Expired"
	case StatusProposed:
		return "Proposed"
	case StatusDisputed:
		return "Disputed"
	case StatusResolved:
		return "Resolved"
	default:
		return "Unknown"
	}
}

// Windows holds the resolution timing parameters. All lifecycle checks are
// comparisons of the injected clock against these durations.
type Windows struct {
	CreatorPriority time.Duration // only the creator may propose this long after expiry
	Dispute         time.Duration // dispute deadline after a proposal
	Voting          time.Duration // vote deadline after a dispute
	RefundDelay     time.Duration // emergency refund eligibility after expiry
}

// Proposal is a bonded outcome proposal on an expired market.
type Proposal struct {
	Proposer   common.Address
	Outcome    bool
	Bond       *big.Int
	ProofLink  string
	ProposedAt time.Time
}

// Dispute is a bonded challenge of a proposal. It opens a stake-weighted vote.
type Dispute struct {
	Disputer      common.Address
	Bond          *big.Int
	DisputedAt    time.Time
	YesVoteWeight *big.Int
	NoVoteWeight  *big.Int
}

// Market is the full per-market record.
type Market struct {
	ID              uint64
	Question        string
	EvidenceLink    string
	ResolutionRules string
	ImageURL        string
	Creator         common.Address
	Expiry          time.Time
	Heat            HeatLevel

	YesSupply   *big.Int
	NoSupply    *big.Int
	PoolBalance *big.Int

	Resolved bool
	Outcome  bool // meaningful only when Resolved

	Proposal *Proposal
	Dispute  *Dispute

	// JuryFeesPool is the undistributed remainder of the jury carve-out,
	// created when a disputed market resolves. JuryWeightLeft is the
	// winning-side vote weight not yet claimed against, so later claimants
	// compute against correctly reduced totals.
	JuryFeesPool   *big.Int
	JuryWeightLeft *big.Int
}

// Status derives the lifecycle state at the given instant.
// Active -> Expired is a pure function of the clock; Proposed/Disputed hold
// until finalization consumes the records.
func (m *Market) Status(now time.Time, w Windows) Status {
	if m.Resolved {
		return StatusResolved
	}
	if now.Before(m.Expiry) || now.Equal(m.Expiry) {
		return StatusActive
	}
	if m.Dispute != nil {
		return StatusDisputed
	}
	if m.Proposal != nil {
		return StatusProposed
	}
	return StatusExpired
}

// TotalSupply returns yesSupply + noSupply.
func (m *Market) TotalSupply() *big.Int {
	return new(big.Int).Add(m.YesSupply, m.NoSupply)
}

// OneSided reports whether either side has zero outstanding shares.
// Resolving a one-sided market divides by zero in payout math, so proposals
// on such markets are rejected outright.
func (m *Market) OneSided() bool {
	return m.YesSupply.Sign() == 0 || m.NoSupply.Sign() == 0
}

// SideSupply returns the outstanding supply of one side.
func (m *Market) SideSupply(isYes bool) *big.Int {
	if isYes {
		return m.YesSupply
	}
	return m.NoSupply
}

// Position is a user's holding in a single market.
type Position struct {
	YesShares *big.Int
	NoShares  *big.Int

	// TotalInvested is cumulative net contribution, UI P/L only. It plays
	// no role in settlement math.
	TotalInvested *big.Int

	Claimed           bool
	EmergencyRefunded bool

	HasVoted     bool
	VotedOutcome bool
	// VoteWeight is the total shares held at vote time; it fixes the
	// holder's jury-fee share regardless of later supply changes.
	VoteWeight     *big.Int
	JuryFeeClaimed bool
}

// NewPosition returns an empty position.
func NewPosition() *Position {
	return &Position{
		YesShares:     fixedpoint.Zero(),
		NoShares:      fixedpoint.Zero(),
		TotalInvested: fixedpoint.Zero(),
		VoteWeight:    fixedpoint.Zero(),
	}
}

// TotalShares returns yes + no holdings.
func (p *Position) TotalShares() *big.Int {
	return new(big.Int).Add(p.YesShares, p.NoShares)
}

// SideShares returns the holding on one side.
func (p *Position) SideShares(isYes bool) *big.Int {
	if isYes {
		return p.YesShares
	}
	return p.NoShares
}

// Empty reports whether the position holds no shares.
func (p *Position) Empty() bool {
	return p.YesShares.Sign() == 0 && p.NoShares.Sign() == 0
}
