package engine

import "errors"

// Validation and resource errors. Every rejection path surfaces one of these
// sentinels (wrapped with context) so callers can assert on why an operation
// failed, never just that it failed.
var (
	// Creation.
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrPastExpiry       = errors.New("expiry is not in the future")
	ErrInvalidHeatLevel = errors.New("invalid heat level")

	// General state.
	ErrPaused          = errors.New("contract is paused")
	ErrMarketNotFound  = errors.New("market not found")
	ErrMarketNotActive = errors.New("market is not active")
	ErrMarketResolved  = errors.New("market already resolved")

	// Trading.
	ErrBetTooSmall        = errors.New("bet below minimum")
	ErrSlippageExceeded   = errors.New("slippage bound exceeded")
	ErrInsufficientShares = errors.New("insufficient shares owned")
	ErrInsufficientPool   = errors.New("insufficient pool balance")

	// Resolution.
	ErrMarketNotExpired     = errors.New("market has not expired")
	ErrAlreadyProposed      = errors.New("outcome already proposed")
	ErrOneSidedMarket       = errors.New("one-sided market cannot be proposed")
	ErrCreatorPriority      = errors.New("creator priority window active")
	ErrWrongPayment         = errors.New("payment does not match bond plus fee")
	ErrNoProposal           = errors.New("no proposal to act on")
	ErrDisputeWindowClosed  = errors.New("dispute window closed")
	ErrAlreadyDisputed      = errors.New("proposal already disputed")
	ErrNoDispute            = errors.New("no dispute in progress")
	ErrVotingClosed         = errors.New("voting window closed")
	ErrNoShares             = errors.New("no shares in market")
	ErrAlreadyVoted         = errors.New("already voted")
	ErrFinalizeTooEarly     = errors.New("finalize window not reached")
	ErrNotResolved          = errors.New("market not resolved")
	ErrNoWinningShares      = errors.New("no winning shares to claim")
	ErrAlreadyClaimed       = errors.New("already claimed")
	ErrAlreadyRefunded      = errors.New("already emergency refunded")
	ErrRefundTooEarly       = errors.New("emergency refund delay not reached")
	ErrResolutionInProgress = errors.New("resolution in progress")
	ErrNoJuryFees           = errors.New("no jury fees claimable")
	ErrJuryFeesClaimed      = errors.New("jury fees already claimed")

	// Withdrawals.
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
)
