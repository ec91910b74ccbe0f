// Package gov implements the multisig action queue that controls global
// engine switches: fee parameters, pause state, surplus sweeps, and signer
// replacement. Actions are a tagged union (one typed struct per action) so
// the confirmation machinery stays generic while every action carries its
// own validated parameters.
package gov

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Bounds enforced when an action executes. Confirmation count alone never
// executes an out-of-range action.
const (
	TotalFeeCeilingBps = 500 // platform + creator
	JuryShareMinBps    = 500
	JuryShareMaxBps    = 5_000
)

var (
	ErrFeeCeiling       = errors.New("gov: total fee exceeds ceiling")
	ErrJuryShareRange   = errors.New("gov: jury share out of range")
	ErrZeroBondFloor    = errors.New("gov: bond floor must be positive")
	ErrZeroSweepTarget  = errors.New("gov: sweep target is the zero address")
	ErrZeroSigner       = errors.New("gov: new signer is the zero address")
	ErrSameSigner       = errors.New("gov: new signer equals the one being replaced")
	ErrDuplicateSigner  = errors.New("gov: new signer already in the signer set")
	ErrUnknownOldSigner = errors.New("gov: replaced address is not a signer")
)

// Target is the surface an executed action mutates. The engine implements it.
type Target interface {
	SetFees(platformBps, creatorBps, resolutionFeeBps uint32) error
	SetResolutionParams(juryShareBps, bondBps, proposerRewardBps uint32, bondFloor *big.Int) error
	SetPaused(paused bool)
	SweepSurplus(to common.Address) (*big.Int, error)
}

// Action is one governance action variant.
type Action interface {
	Type() string
	// Threshold returns the confirmations required out of n signers.
	Threshold(n int) int
	// Validate checks parameter bounds; called at execution time so a fully
	// confirmed but out-of-range action still fails whole.
	Validate() error
	// Apply executes the action against the engine. Signer replacement is
	// applied by the queue itself, not through Target.
	Apply(t Target) error
}

// SetFees updates the trading fee schedule (basis points) and the claim-time
// resolution fee.
type SetFees struct {
	PlatformBps      uint32
	CreatorBps       uint32
	ResolutionFeeBps uint32
}

func (a SetFees) Type() string { return "set_fees" }
func (a SetFees) Threshold(n int) int { return n }
func (a SetFees) Validate() error {
	if a.PlatformBps+a.CreatorBps > TotalFeeCeilingBps {
		return fmt.Errorf("%w: %d bps", ErrFeeCeiling, a.PlatformBps+a.CreatorBps)
	}
	if a.ResolutionFeeBps > TotalFeeCeilingBps {
		return fmt.Errorf("%w: resolution %d bps", ErrFeeCeiling, a.ResolutionFeeBps)
	}
	return nil
}
func (a SetFees) Apply(t Target) error {
	return t.SetFees(a.PlatformBps, a.CreatorBps, a.ResolutionFeeBps)
}

// SetResolutionParams updates bond sizing, the jury carve-out and the
// proposer reward.
type SetResolutionParams struct {
	JuryShareBps      uint32
	BondBps           uint32
	ProposerRewardBps uint32
	BondFloor         *big.Int
}

func (a SetResolutionParams) Type() string { return "set_resolution_params" }
func (a SetResolutionParams) Threshold(n int) int { return n }
func (a SetResolutionParams) Validate() error {
	if a.JuryShareBps < JuryShareMinBps || a.JuryShareBps > JuryShareMaxBps {
		return fmt.Errorf("%w: %d bps", ErrJuryShareRange, a.JuryShareBps)
	}
	if a.BondFloor == nil || a.BondFloor.Sign() <= 0 {
		return ErrZeroBondFloor
	}
	return nil
}
func (a SetResolutionParams) Apply(t Target) error {
	return t.SetResolutionParams(a.JuryShareBps, a.BondBps, a.ProposerRewardBps, a.BondFloor)
}

// Pause halts trading and resolution entry points; withdrawals and the
// emergency escape hatch stay open.
type Pause struct{}

func (a Pause) Type() string { return "pause" }
func (a Pause) Threshold(n int) int { return n }
func (a Pause) Validate() error { return nil }
func (a Pause) Apply(t Target) error { t.SetPaused(true); return nil }

// Unpause lifts a pause.
type Unpause struct{}

func (a Unpause) Type() string { return "unpause" }
func (a Unpause) Threshold(n int) int { return n }
func (a Unpause) Validate() error { return nil }
func (a Unpause) Apply(t Target) error { t.SetPaused(false); return nil }

// Sweep extracts the sweepable surplus (never locked funds) to a target.
type Sweep struct {
	To common.Address
}

func (a Sweep) Type() string { return "sweep" }
func (a Sweep) Threshold(n int) int { return n }
func (a Sweep) Validate() error {
	if a.To == (common.Address{}) {
		return ErrZeroSweepTarget
	}
	return nil
}
func (a Sweep) Apply(t Target) error {
	_, err := t.SweepSurplus(a.To)
	return err
}

// ReplaceSigner swaps one signer for another. Executes at n-1 of n so one
// lost or compromised key cannot freeze governance.
type ReplaceSigner struct {
	Old common.Address
	New common.Address
}

func (a ReplaceSigner) Type() string { return "replace_signer" }
func (a ReplaceSigner) Threshold(n int) int {
	if n <= 1 {
		return 1
	}
	return n - 1
}
func (a ReplaceSigner) Validate() error {
	if a.New == (common.Address{}) {
		return ErrZeroSigner
	}
	if a.New == a.Old {
		return ErrSameSigner
	}
	return nil
}
func (a ReplaceSigner) Apply(Target) error {
	// Applied by the queue, which owns the signer set.
	return nil
}
