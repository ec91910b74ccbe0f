package engine_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/ledger"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/testutil"
)

// resolvedYesMarket drives a two-sided market to an undisputed YES resolve.
// Alice and Dave hold YES, Bob holds NO.
func resolvedYesMarket(t *testing.T, eng *engine.Engine, clk *testutil.Clock) uint64 {
	t.Helper()
	id := createMarket(t, eng, clk)
	mustBuy(t, eng, alice, id, true, fixedpoint.Units(100))
	mustBuy(t, eng, dave, id, true, fixedpoint.Units(100))
	mustBuy(t, eng, bob, id, false, fixedpoint.Units(50))
	clk.Advance(24*time.Hour + time.Second)
	mustPropose(t, eng, id, true)
	clk.Advance(24*time.Hour + time.Second)
	if err := eng.FinalizeMarket(dave, id); err != nil {
		t.Fatalf("FinalizeMarket: %v", err)
	}
	return id
}

// ============================================================================
// Test: claiming winnings
// ============================================================================

func TestClaim_ProRataDrainsPoolExactly(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := resolvedYesMarket(t, eng, clk)

	before, _ := eng.Market(id)
	poolBefore := fixedpoint.Clone(before.PoolBalance)

	alicePay, err := eng.Claim(alice, id)
	if err != nil {
		t.Fatalf("Claim alice: %v", err)
	}
	davePay, err := eng.Claim(dave, id)
	if err != nil {
		t.Fatalf("Claim dave: %v", err)
	}
	if alicePay.Sign() <= 0 || davePay.Sign() <= 0 {
		t.Fatalf("payouts must be positive: alice=%s dave=%s", alicePay, davePay)
	}
	// Alice holds more YES shares than Dave (she bought at the cheaper
	// price), so her payout is strictly larger.
	if alicePay.Cmp(davePay) <= 0 {
		t.Errorf("alice payout %s should exceed dave payout %s", alicePay, davePay)
	}

	// The last winning claim takes the exact remainder: nothing strands.
	after, _ := eng.Market(id)
	wantBig(t, "pool after all claims", after.PoolBalance, fixedpoint.Zero())

	// Each payout carried the 1% resolution fee off the gross, so the two
	// nets plus fees sum back to the starting pool.
	feeSum := new(big.Int).Sub(poolBefore, alicePay)
	feeSum.Sub(feeSum, davePay)
	if feeSum.Sign() < 0 {
		t.Errorf("payouts exceed the pool by %s", new(big.Int).Neg(feeSum))
	}
}

// Claim order must not change anyone's payout. Round share counts keep the
// pro-rata division exact, so both orders can be compared to the wei.
func TestClaim_OrderIndependentPayouts(t *testing.T) {
	eng, clk := newTestEngine(t)
	pool := fixedpoint.Units(90)

	snap := eng.Snapshot()
	snap.NextMarketID = 2
	snap.Markets = []engine.MarketSnapshot{{
		ID:          1,
		Question:    "q",
		Creator:     creator,
		Expiry:      clk.Now().Add(-48 * time.Hour),
		Heat:        "CRACK",
		YesSupply:   fixedpoint.Units(300).String(),
		NoSupply:    "0",
		PoolBalance: pool.String(),
		Resolved:    true,
		Outcome:     true,
	}}
	snap.Positions = []engine.PositionSnapshot{
		{MarketID: 1, Holder: alice, YesShares: fixedpoint.Units(100).String(), NoShares: "0",
			TotalInvested: fixedpoint.Units(30).String()},
		{MarketID: 1, Holder: dave, YesShares: fixedpoint.Units(200).String(), NoShares: "0",
			TotalInvested: fixedpoint.Units(60).String()},
	}
	snap.Balances = []engine.BalanceSnapshot{
		{Scope: uint8(ledger.ScopeMarket), SubType: uint8(ledger.SubTypePool),
			MarketID: 1, Balance: pool.String()},
		{Scope: uint8(ledger.ScopeExternal), SubType: uint8(ledger.SubTypeExternalFunds),
			Balance: new(big.Int).Neg(pool).String()},
	}

	// Alice first, then Dave.
	forward := restoreInto(t, clk, snap)
	aliceFirst, err := forward.Claim(alice, 1)
	if err != nil {
		t.Fatalf("Claim alice (forward): %v", err)
	}
	daveSecond, err := forward.Claim(dave, 1)
	if err != nil {
		t.Fatalf("Claim dave (forward): %v", err)
	}

	// Dave first, then Alice.
	reversed := restoreInto(t, clk, snap)
	daveFirst, err := reversed.Claim(dave, 1)
	if err != nil {
		t.Fatalf("Claim dave (reversed): %v", err)
	}
	aliceSecond, err := reversed.Claim(alice, 1)
	if err != nil {
		t.Fatalf("Claim alice (reversed): %v", err)
	}

	// One third and two thirds of the 90-unit pool, each minus the 1% fee.
	wantBig(t, "alice payout (forward)", aliceFirst, fixedpoint.MilliUnits(29_700))
	wantBig(t, "dave payout (forward)", daveSecond, fixedpoint.MilliUnits(59_400))
	wantBig(t, "alice payout (reversed)", aliceSecond, aliceFirst)
	wantBig(t, "dave payout (reversed)", daveFirst, daveSecond)

	for _, e := range []*engine.Engine{forward, reversed} {
		m, _ := e.Market(1)
		wantBig(t, "pool drained", m.PoolBalance, fixedpoint.Zero())
	}
}

func TestClaim_LosingSide(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := resolvedYesMarket(t, eng, clk)

	if _, err := eng.Claim(bob, id); !errors.Is(err, engine.ErrNoWinningShares) {
		t.Errorf("got %v, want ErrNoWinningShares", err)
	}
}

func TestClaim_Twice(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := resolvedYesMarket(t, eng, clk)

	if _, err := eng.Claim(alice, id); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := eng.Claim(alice, id); !errors.Is(err, engine.ErrAlreadyClaimed) {
		t.Errorf("got %v, want ErrAlreadyClaimed", err)
	}
}

func TestClaim_Unresolved(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := createMarket(t, eng, clk)
	mustBuy(t, eng, alice, id, true, fixedpoint.Units(100))

	if _, err := eng.Claim(alice, id); !errors.Is(err, engine.ErrNotResolved) {
		t.Errorf("got %v, want ErrNotResolved", err)
	}
}

// ============================================================================
// Test: jury fee claims
// ============================================================================

func TestClaimJuryFees_SoleWinningVoterTakesAll(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := disputedMarket(t, eng, clk)
	if err := eng.Vote(alice, id, true); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	clk.Advance(24*time.Hour + time.Second)
	if err := eng.FinalizeMarket(dave, id); err != nil {
		t.Fatalf("FinalizeMarket: %v", err)
	}

	m, _ := eng.Market(id)
	carve := fixedpoint.Clone(m.JuryFeesPool)
	if carve.Sign() <= 0 {
		t.Fatal("disputed resolve should have funded the jury pool")
	}

	got, err := eng.ClaimJuryFees(alice, id)
	if err != nil {
		t.Fatalf("ClaimJuryFees: %v", err)
	}
	wantBig(t, "jury payout", got, carve)

	after, _ := eng.Market(id)
	wantBig(t, "jury pool drained", after.JuryFeesPool, fixedpoint.Zero())

	if _, err := eng.ClaimJuryFees(alice, id); !errors.Is(err, engine.ErrJuryFeesClaimed) {
		t.Errorf("second claim: got %v, want ErrJuryFeesClaimed", err)
	}
}

func TestClaimJuryFees_IneligibleVoters(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := disputedMarket(t, eng, clk)
	if err := eng.Vote(alice, id, true); err != nil {
		t.Fatalf("Vote alice: %v", err)
	}
	if err := eng.Vote(bob, id, false); err != nil {
		t.Fatalf("Vote bob: %v", err)
	}
	clk.Advance(24*time.Hour + time.Second)
	if err := eng.FinalizeMarket(dave, id); err != nil {
		t.Fatalf("FinalizeMarket: %v", err)
	}

	// Bob voted for the losing outcome; Dave never voted.
	if _, err := eng.ClaimJuryFees(bob, id); !errors.Is(err, engine.ErrNoJuryFees) {
		t.Errorf("losing voter: got %v, want ErrNoJuryFees", err)
	}
	if _, err := eng.ClaimJuryFees(dave, id); !errors.Is(err, engine.ErrNoJuryFees) {
		t.Errorf("non-voter: got %v, want ErrNoJuryFees", err)
	}
}

// ============================================================================
// Test: emergency refunds
// ============================================================================

func TestEmergencyRefund_AfterDelay(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := createMarket(t, eng, clk)
	mustBuy(t, eng, alice, id, true, fixedpoint.Units(100))
	mustBuy(t, eng, bob, id, false, fixedpoint.Units(50))

	clk.Advance(24*time.Hour + 7*24*time.Hour + time.Second)

	aliceRefund, err := eng.EmergencyRefund(alice, id)
	if err != nil {
		t.Fatalf("EmergencyRefund alice: %v", err)
	}
	bobRefund, err := eng.EmergencyRefund(bob, id)
	if err != nil {
		t.Fatalf("EmergencyRefund bob: %v", err)
	}
	if aliceRefund.Sign() <= 0 || bobRefund.Sign() <= 0 {
		t.Fatalf("refunds must be positive: alice=%s bob=%s", aliceRefund, bobRefund)
	}

	// Pro-rata over total shares; the last holder takes the exact remainder.
	m, _ := eng.Market(id)
	wantBig(t, "pool after refunds", m.PoolBalance, fixedpoint.Zero())
	wantBig(t, "yes supply", m.YesSupply, fixedpoint.Zero())
	wantBig(t, "no supply", m.NoSupply, fixedpoint.Zero())

	pos, _ := eng.Position(alice, id)
	if !pos.EmergencyRefunded {
		t.Error("refund flag not set")
	}
}

func TestEmergencyRefund_TooEarly(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := createMarket(t, eng, clk)
	mustBuy(t, eng, alice, id, true, fixedpoint.Units(100))
	clk.Advance(24*time.Hour + 7*24*time.Hour - time.Second)

	if _, err := eng.EmergencyRefund(alice, id); !errors.Is(err, engine.ErrRefundTooEarly) {
		t.Errorf("got %v, want ErrRefundTooEarly", err)
	}
}

func TestEmergencyRefund_BlockedByLiveProposal(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := createMarket(t, eng, clk)
	mustBuy(t, eng, alice, id, true, fixedpoint.Units(100))
	mustBuy(t, eng, bob, id, false, fixedpoint.Units(50))
	clk.Advance(24*time.Hour + time.Second)
	mustPropose(t, eng, id, true)

	// The proposal was never finalized; past the refund delay it still
	// blocks the escape hatch while the resolution machine is running.
	clk.Advance(7*24*time.Hour + time.Second)
	if _, err := eng.EmergencyRefund(alice, id); !errors.Is(err, engine.ErrResolutionInProgress) {
		t.Errorf("got %v, want ErrResolutionInProgress", err)
	}
}

func TestEmergencyRefund_Twice(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := createMarket(t, eng, clk)
	mustBuy(t, eng, alice, id, true, fixedpoint.Units(100))
	mustBuy(t, eng, bob, id, false, fixedpoint.Units(50))
	clk.Advance(24*time.Hour + 7*24*time.Hour + time.Second)

	if _, err := eng.EmergencyRefund(alice, id); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	if _, err := eng.EmergencyRefund(alice, id); !errors.Is(err, engine.ErrAlreadyRefunded) {
		t.Errorf("got %v, want ErrAlreadyRefunded", err)
	}
}

func TestEmergencyRefund_ResolvedMarket(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := resolvedYesMarket(t, eng, clk)
	clk.Advance(7 * 24 * time.Hour)

	if _, err := eng.EmergencyRefund(alice, id); !errors.Is(err, engine.ErrMarketResolved) {
		t.Errorf("got %v, want ErrMarketResolved", err)
	}
}

// ============================================================================
// Test: pull-pattern withdrawals
// ============================================================================

func TestWithdrawBonds_DrainsPendingBalance(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := expiredTwoSidedMarket(t, eng, clk)
	mustPropose(t, eng, id, true)
	clk.Advance(24*time.Hour + time.Second)
	if err := eng.FinalizeMarket(dave, id); err != nil {
		t.Fatalf("FinalizeMarket: %v", err)
	}

	pending := eng.Pending(creator).Bonds
	if pending.Sign() <= 0 {
		t.Fatal("finalize should have credited the proposer")
	}

	got, err := eng.WithdrawBonds(creator)
	if err != nil {
		t.Fatalf("WithdrawBonds: %v", err)
	}
	wantBig(t, "withdrawn", got, pending)
	wantBig(t, "pending after withdrawal", eng.Pending(creator).Bonds, fixedpoint.Zero())

	if _, err := eng.WithdrawBonds(creator); !errors.Is(err, engine.ErrNothingToWithdraw) {
		t.Errorf("second withdrawal: got %v, want ErrNothingToWithdraw", err)
	}
}

func TestWithdrawCreatorFees(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := createMarket(t, eng, clk)
	mustBuy(t, eng, alice, id, true, fixedpoint.Units(100))

	got, err := eng.WithdrawCreatorFees(creator)
	if err != nil {
		t.Fatalf("WithdrawCreatorFees: %v", err)
	}
	wantBig(t, "creator fees", got, fixedpoint.MilliUnits(500))
	wantBig(t, "pending after withdrawal", eng.Pending(creator).CreatorFees, fixedpoint.Zero())

	if _, err := eng.WithdrawCreatorFees(creator); !errors.Is(err, engine.ErrNothingToWithdraw) {
		t.Errorf("second withdrawal: got %v, want ErrNothingToWithdraw", err)
	}
}

func TestWithdraw_NothingPending(t *testing.T) {
	eng, _ := newTestEngine(t)
	if _, err := eng.WithdrawBonds(alice); !errors.Is(err, engine.ErrNothingToWithdraw) {
		t.Errorf("bonds: got %v, want ErrNothingToWithdraw", err)
	}
	if _, err := eng.WithdrawCreatorFees(alice); !errors.Is(err, engine.ErrNothingToWithdraw) {
		t.Errorf("creator fees: got %v, want ErrNothingToWithdraw", err)
	}
}
