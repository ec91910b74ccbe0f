// Package event defines the outbound events the engine emits after each
// committed operation. Envelopes carry a monotonic engine sequence and flow
// to the persistence worker (blocking), the NATS publisher and the websocket
// hub (both drop-on-full).
package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Type identifies the event kind; it doubles as the NATS subject suffix.
type Type string

const (
	TypeMarketCreated        Type = "market_created"
	TypeSharesBought         Type = "shares_bought"
	TypeSharesSold           Type = "shares_sold"
	TypeOutcomeProposed      Type = "outcome_proposed"
	TypeProposalDisputed     Type = "proposal_disputed"
	TypeVoteCast             Type = "vote_cast"
	TypeMarketResolved       Type = "market_resolved"
	TypeResolutionFailed     Type = "resolution_failed"
	TypeWinningsClaimed      Type = "winnings_claimed"
	TypeJuryFeesClaimed      Type = "jury_fees_claimed"
	TypeEmergencyRefunded    Type = "emergency_refunded"
	TypeBondsWithdrawn       Type = "bonds_withdrawn"
	TypeCreatorFeesWithdrawn Type = "creator_fees_withdrawn"
	TypeActionProposed       Type = "action_proposed"
	TypeActionConfirmed      Type = "action_confirmed"
	TypeActionExecuted       Type = "action_executed"
	TypePauseChanged         Type = "pause_changed"
	TypeSurplusSwept         Type = "surplus_swept"
	TypeSignerReplaced       Type = "signer_replaced"
)

// Envelope wraps one committed operation's event for downstream consumers.
type Envelope struct {
	Sequence  int64          `json:"sequence"`
	Type      Type           `json:"type"`
	MarketID  *uint64        `json:"market_id,omitempty"`
	Actor     common.Address `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   any            `json:"payload,omitempty"`
}

// ResolutionFailureReason distinguishes the soft-failure paths that return
// bonds and leave a market unresolved instead of erroring.
type ResolutionFailureReason string

const (
	FailureVoteTie          ResolutionFailureReason = "vote_tie"
	FailureEmptyWinningSide ResolutionFailureReason = "empty_winning_side"
)

// MarketCreated payload.
type MarketCreated struct {
	Question  string    `json:"question"`
	Creator   string    `json:"creator"`
	Expiry    time.Time `json:"expiry"`
	HeatLevel string    `json:"heat_level"`
}

// Trade payload, shared by buys and sells.
type Trade struct {
	IsYes     bool   `json:"is_yes"`
	AmountWei string `json:"amount_wei"` // gross in for buys, net out for sells
	Shares    string `json:"shares"`
	PriceYes  string `json:"price_yes"` // post-trade spot
	PriceNo   string `json:"price_no"`
}

// OutcomeProposed payload.
type OutcomeProposed struct {
	Outcome   bool   `json:"outcome"`
	BondWei   string `json:"bond_wei"`
	ProofLink string `json:"proof_link,omitempty"`
}

// ProposalDisputed payload.
type ProposalDisputed struct {
	BondWei string `json:"bond_wei"`
}

// VoteCast payload.
type VoteCast struct {
	Outcome bool   `json:"outcome"`
	Weight  string `json:"weight"`
}

// MarketResolved payload.
type MarketResolved struct {
	Outcome     bool   `json:"outcome"`
	Disputed    bool   `json:"disputed"`
	JuryPoolWei string `json:"jury_pool_wei,omitempty"`
}

// ResolutionFailed payload: a finalize attempt that deliberately did not
// resolve (tie or empty winning side). Bonds are pull-credited back.
type ResolutionFailed struct {
	Reason ResolutionFailureReason `json:"reason"`
}

// Payout payload, shared by claims, jury-fee claims and refunds.
type Payout struct {
	AmountWei string `json:"amount_wei"`
}

// GovernanceAction payload.
type GovernanceAction struct {
	ActionID      uint64 `json:"action_id"`
	ActionType    string `json:"action_type"`
	Confirmations int    `json:"confirmations"`
}
