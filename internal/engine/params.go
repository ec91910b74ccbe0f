package engine

import (
	"math/big"
	"time"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/market"
)

// Params are the governance-mutable economic parameters. Fee rates are basis
// points; amounts are wei scale.
type Params struct {
	PlatformFeeBps   uint32
	CreatorFeeBps    uint32
	ResolutionFeeBps uint32 // taken from gross claim payouts

	// ResolutionFee is the flat fee accompanying proposals and disputes,
	// pushed to the treasury.
	ResolutionFee *big.Int

	MinBet *big.Int

	// Proposal bond = max(BondFloor, pool * BondBps / 10000). The dispute
	// bond is double the posted proposal bond.
	BondFloor *big.Int
	BondBps   uint32

	// ProposerRewardBps of the pool, paid from the pool on an undisputed
	// resolve.
	ProposerRewardBps uint32

	// JuryShareBps of the losing bond funds the jury-fee pool on a disputed
	// resolve.
	JuryShareBps uint32

	Windows market.Windows
}

// DefaultParams mirrors the reference deployment configuration.
func DefaultParams() Params {
	return Params{
		PlatformFeeBps:    100, // 1%
		CreatorFeeBps:     50,  // 0.5%
		ResolutionFeeBps:  100,
		ResolutionFee:     fixedpoint.MilliUnits(10), // 0.01 units
		MinBet:            fixedpoint.MilliUnits(1),  // 0.001 units
		BondFloor:         fixedpoint.MilliUnits(50), // 0.05 units
		BondBps:           100,
		ProposerRewardBps: 100,
		JuryShareBps:      2_000, // 20% of the losing bond
		Windows: market.Windows{
			CreatorPriority: 1 * time.Hour,
			Dispute:         24 * time.Hour,
			Voting:          24 * time.Hour,
			RefundDelay:     7 * 24 * time.Hour,
		},
	}
}

// totalTradeFeeBps is the combined per-trade fee rate.
func (p Params) totalTradeFeeBps() uint32 {
	return p.PlatformFeeBps + p.CreatorFeeBps
}
