package engine_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/gov"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/ledger"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/testutil"
)

// runAction pushes an action through the full signer set.
func runAction(t *testing.T, eng *engine.Engine, action gov.Action) {
	t.Helper()
	signers := eng.Signers()
	id, err := eng.ProposeAction(signers[0], action)
	if err != nil {
		t.Fatalf("ProposeAction(%s): %v", action.Type(), err)
	}
	for _, s := range signers[1:] {
		if err := eng.ConfirmAction(s, id); err != nil {
			t.Fatalf("ConfirmAction(%s) by %s: %v", action.Type(), s.Hex(), err)
		}
	}
}

// ============================================================================
// Test: signer gating
// ============================================================================

func TestProposeAction_NotSigner(t *testing.T) {
	eng, _ := newTestEngine(t)
	if _, err := eng.ProposeAction(alice, gov.Pause{}); !errors.Is(err, gov.ErrNotSigner) {
		t.Errorf("got %v, want ErrNotSigner", err)
	}
}

func TestConfirmAction_Expired(t *testing.T) {
	eng, clk := newTestEngine(t)
	signers := testutil.Signers()
	id, err := eng.ProposeAction(signers[0], gov.Pause{})
	if err != nil {
		t.Fatalf("ProposeAction: %v", err)
	}
	clk.Advance(72*time.Hour + time.Second)
	if err := eng.ConfirmAction(signers[1], id); !errors.Is(err, gov.ErrActionExpired) {
		t.Errorf("got %v, want ErrActionExpired", err)
	}
}

// ============================================================================
// Test: fee changes take observable effect
// ============================================================================

func TestSetFees_ZeroFeesPassWholeAmountToPool(t *testing.T) {
	eng, clk := newTestEngine(t)
	signers := testutil.Signers()

	id, err := eng.ProposeAction(signers[0], gov.SetFees{})
	if err != nil {
		t.Fatalf("ProposeAction: %v", err)
	}
	if err := eng.ConfirmAction(signers[1], id); err != nil {
		t.Fatalf("second confirmation: %v", err)
	}

	// Two of three: old fees still in force.
	mid := createMarket(t, eng, clk)
	mustBuy(t, eng, alice, mid, true, fixedpoint.Units(100))
	m, _ := eng.Market(mid)
	wantBig(t, "pool under old fees", m.PoolBalance, fixedpoint.MilliUnits(98_500))

	if err := eng.ConfirmAction(signers[2], id); err != nil {
		t.Fatalf("third confirmation: %v", err)
	}
	if got := len(eng.PendingActions()); got != 0 {
		t.Errorf("executed action still pending (%d queued)", got)
	}

	// Zero fees: the full amount lands in the pool, nothing accrues to the
	// creator.
	mid2 := createMarket(t, eng, clk)
	mustBuy(t, eng, bob, mid2, true, fixedpoint.Units(100))
	m2, _ := eng.Market(mid2)
	wantBig(t, "pool under zero fees", m2.PoolBalance, fixedpoint.Units(100))
	wantBig(t, "creator fees", eng.Pending(creator).CreatorFees, fixedpoint.MilliUnits(500))
}

// ============================================================================
// Test: signer replacement
// ============================================================================

func TestReplaceSigner_TwoOfThree(t *testing.T) {
	eng, _ := newTestEngine(t)
	signers := testutil.Signers()
	replacement := testutil.Addr(0xF9)

	id, err := eng.ProposeAction(signers[0], gov.ReplaceSigner{Old: signers[2], New: replacement})
	if err != nil {
		t.Fatalf("ProposeAction: %v", err)
	}
	if err := eng.ConfirmAction(signers[1], id); err != nil {
		t.Fatalf("ConfirmAction: %v", err)
	}

	got := eng.Signers()
	found := false
	for _, s := range got {
		if s == signers[2] {
			t.Error("replaced signer still present")
		}
		if s == replacement {
			found = true
		}
	}
	if !found {
		t.Error("replacement signer missing")
	}

	// The ousted key can no longer act.
	if _, err := eng.ProposeAction(signers[2], gov.Pause{}); !errors.Is(err, gov.ErrNotSigner) {
		t.Errorf("old signer: got %v, want ErrNotSigner", err)
	}
}

// ============================================================================
// Test: pause semantics
// ============================================================================

func TestPause_BlocksEntryPointsKeepsExits(t *testing.T) {
	eng, clk := newTestEngine(t)

	// A resolved market with claimable winnings, plus an active one.
	resolved := resolvedYesMarket(t, eng, clk)
	active := createMarket(t, eng, clk)
	mustBuy(t, eng, bob, active, true, fixedpoint.Units(10))

	runAction(t, eng, gov.Pause{})
	if !eng.Paused() {
		t.Fatal("engine should be paused")
	}

	if _, err := eng.Buy(alice, active, true, fixedpoint.Units(10), nil); !errors.Is(err, engine.ErrPaused) {
		t.Errorf("buy: got %v, want ErrPaused", err)
	}
	if _, err := eng.Sell(bob, active, true, fixedpoint.Units(1), nil); !errors.Is(err, engine.ErrPaused) {
		t.Errorf("sell: got %v, want ErrPaused", err)
	}
	if _, err := eng.CreateMarket(creator, "q", "", "", "", clk.Now().Add(time.Hour), 0); !errors.Is(err, engine.ErrPaused) {
		t.Errorf("create: got %v, want ErrPaused", err)
	}

	// Exits stay open: claims and withdrawals.
	if _, err := eng.Claim(alice, resolved); err != nil {
		t.Errorf("claim while paused: %v", err)
	}
	if _, err := eng.WithdrawCreatorFees(creator); err != nil {
		t.Errorf("withdraw while paused: %v", err)
	}

	runAction(t, eng, gov.Unpause{})
	if eng.Paused() {
		t.Fatal("engine should have unpaused")
	}
	if _, err := eng.Buy(alice, active, true, fixedpoint.Units(10), nil); err != nil {
		t.Errorf("buy after unpause: %v", err)
	}
}

// Under a pause the resolution machine is frozen, so a live proposal no
// longer blocks the emergency escape hatch.
func TestPause_UnblocksEmergencyRefund(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := createMarket(t, eng, clk)
	mustBuy(t, eng, alice, id, true, fixedpoint.Units(100))
	mustBuy(t, eng, bob, id, false, fixedpoint.Units(50))
	clk.Advance(24*time.Hour + time.Second)
	mustPropose(t, eng, id, true)
	clk.Advance(7*24*time.Hour + time.Second)

	if _, err := eng.EmergencyRefund(alice, id); !errors.Is(err, engine.ErrResolutionInProgress) {
		t.Fatalf("unpaused: got %v, want ErrResolutionInProgress", err)
	}

	runAction(t, eng, gov.Pause{})
	if _, err := eng.EmergencyRefund(alice, id); err != nil {
		t.Errorf("paused refund with live proposal: %v", err)
	}
}

// ============================================================================
// Test: resolution parameter changes
// ============================================================================

func TestSetResolutionParams_ChangesBondSizing(t *testing.T) {
	eng, clk := newTestEngine(t)
	id := createMarket(t, eng, clk)

	newFloor := fixedpoint.Units(1)
	runAction(t, eng, gov.SetResolutionParams{
		JuryShareBps:      1_000,
		BondBps:           100,
		ProposerRewardBps: 100,
		BondFloor:         newFloor,
	})

	bond, err := eng.ProposalBond(id)
	if err != nil {
		t.Fatalf("ProposalBond: %v", err)
	}
	wantBig(t, "bond under new floor", bond, newFloor)
}

// ============================================================================
// Test: surplus sweeps
// ============================================================================

// Organic claim flows drain pools to exactly zero, so sweepable surplus only
// appears in degenerate states. Restore one: a resolved market whose winning
// supply is gone but whose pool still holds dust.
func TestSweep_ExtractsStrandedDust(t *testing.T) {
	eng, clk := newTestEngine(t)
	dust := big.NewInt(5)

	snap := eng.Snapshot()
	snap.NextMarketID = 2
	snap.Markets = []engine.MarketSnapshot{{
		ID:          1,
		Question:    "q",
		Creator:     creator,
		Expiry:      clk.Now().Add(-48 * time.Hour),
		Heat:        "CRACK",
		YesSupply:   "0",
		NoSupply:    "0",
		PoolBalance: dust.String(),
		Resolved:    true,
		Outcome:     true,
	}}
	snap.Balances = []engine.BalanceSnapshot{
		{Scope: uint8(ledger.ScopeMarket), SubType: uint8(ledger.SubTypePool),
			MarketID: 1, Balance: dust.String()},
		{Scope: uint8(ledger.ScopeExternal), SubType: uint8(ledger.SubTypeExternalFunds),
			Balance: new(big.Int).Neg(dust).String()},
	}
	if err := eng.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	wantBig(t, "sweepable before", eng.SweepableSurplus(), dust)
	wantBig(t, "contract cash before", eng.ContractCash(), dust)

	runAction(t, eng, gov.Sweep{To: testutil.Treasury()})

	wantBig(t, "sweepable after", eng.SweepableSurplus(), fixedpoint.Zero())
	wantBig(t, "contract cash after", eng.ContractCash(), fixedpoint.Zero())
	m, _ := eng.Market(1)
	wantBig(t, "pool after sweep", m.PoolBalance, fixedpoint.Zero())
}
