package amm_test

import (
	"math/big"
	"testing"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/amm"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
)

var liquidity = fixedpoint.Units(2_000)

// ============================================================================
// Test: Prices
// ============================================================================

func TestPrices_EmptyMarketSplitsEvenly(t *testing.T) {
	c := amm.New(liquidity)
	priceYes, priceNo := c.Prices(fixedpoint.Zero(), fixedpoint.Zero())

	// Symmetric supplies: both sides at U/2 = 0.005 units.
	half := fixedpoint.MilliUnits(5)
	if priceYes.Cmp(half) != 0 {
		t.Errorf("priceYes = %s, want %s", priceYes, half)
	}
	if priceNo.Cmp(half) != 0 {
		t.Errorf("priceNo = %s, want %s", priceNo, half)
	}
}

func TestPrices_SumToUnitPrice(t *testing.T) {
	c := amm.New(liquidity)
	cases := []struct{ yes, no int64 }{
		{0, 0},
		{1_000, 0},
		{0, 5_000},
		{123, 456_789},
		{999_999, 1},
	}
	for _, tc := range cases {
		yes := fixedpoint.Units(tc.yes)
		no := fixedpoint.Units(tc.no)
		priceYes, priceNo := c.Prices(yes, no)

		sum := new(big.Int).Add(priceYes, priceNo)
		diff := new(big.Int).Sub(amm.UnitPrice, sum)
		// Floor division can lose at most 1 wei per side.
		if diff.Sign() < 0 || diff.Cmp(big.NewInt(2)) > 0 {
			t.Errorf("yes=%d no=%d: prices sum to %s, want within 2 wei of %s",
				tc.yes, tc.no, sum, amm.UnitPrice)
		}
	}
}

func TestPrices_BuyingYesRaisesYes(t *testing.T) {
	c := amm.New(liquidity)
	before, _ := c.Prices(fixedpoint.Zero(), fixedpoint.Zero())
	after, afterNo := c.Prices(fixedpoint.Units(500), fixedpoint.Zero())

	if after.Cmp(before) <= 0 {
		t.Errorf("yes price should rise with yes supply: %s -> %s", before, after)
	}
	if afterNo.Cmp(before) >= 0 {
		t.Errorf("no price should fall as yes supply grows: %s -> %s", before, afterNo)
	}
}

// ============================================================================
// Test: SharesOut
// ============================================================================

func TestSharesOut_EmptyMarket(t *testing.T) {
	c := amm.New(liquidity)
	// 98.5 units at spot 0.005/share mints 19700 shares.
	net := new(big.Int).Add(fixedpoint.Units(98), fixedpoint.MilliUnits(500))
	shares, err := c.SharesOut(fixedpoint.Zero(), fixedpoint.Zero(), net, true)
	if err != nil {
		t.Fatalf("SharesOut: %v", err)
	}
	want := fixedpoint.Units(19_700)
	if shares.Cmp(want) != 0 {
		t.Errorf("shares = %s, want %s", shares, want)
	}
}

func TestSharesOut_LaterBuyersGetFewerShares(t *testing.T) {
	c := amm.New(liquidity)
	net := fixedpoint.Units(50)

	first, err := c.SharesOut(fixedpoint.Zero(), fixedpoint.Zero(), net, true)
	if err != nil {
		t.Fatalf("first buy: %v", err)
	}
	second, err := c.SharesOut(first, fixedpoint.Zero(), net, true)
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}
	if second.Cmp(first) >= 0 {
		t.Errorf("same spend after the price moved should mint fewer shares: %s then %s", first, second)
	}
}

func TestSharesOut_PricesOffOwnSide(t *testing.T) {
	c := amm.New(liquidity)
	yes := fixedpoint.Units(2_000)
	net := fixedpoint.Units(50)

	// VY=4000, VN=2000, T=6000. YES trades at 2/3 of a unit price, NO at 1/3,
	// so the same spend buys half as many YES shares as NO shares.
	yesShares, err := c.SharesOut(yes, fixedpoint.Zero(), net, true)
	if err != nil {
		t.Fatalf("yes buy: %v", err)
	}
	if want := fixedpoint.Units(7_500); yesShares.Cmp(want) != 0 {
		t.Errorf("yes shares = %s, want %s", yesShares, want)
	}
	noShares, err := c.SharesOut(yes, fixedpoint.Zero(), net, false)
	if err != nil {
		t.Fatalf("no buy: %v", err)
	}
	if want := fixedpoint.Units(15_000); noShares.Cmp(want) != 0 {
		t.Errorf("no shares = %s, want %s", noShares, want)
	}
}

// ============================================================================
// Test: GrossProceeds
// ============================================================================

func TestGrossProceeds_RoundTripIsFeeNeutral(t *testing.T) {
	c := amm.New(liquidity)
	net := fixedpoint.Units(75)

	shares, err := c.SharesOut(fixedpoint.Zero(), fixedpoint.Zero(), net, true)
	if err != nil {
		t.Fatalf("SharesOut: %v", err)
	}
	// Selling the freshly minted shares prices off the post-sell state, which
	// is the pre-buy state; the gross must equal the net paid in.
	gross, err := c.GrossProceeds(shares, fixedpoint.Zero(), shares, true)
	if err != nil {
		t.Fatalf("GrossProceeds: %v", err)
	}
	if gross.Cmp(net) != 0 {
		t.Errorf("round trip gross = %s, want %s", gross, net)
	}
}

func TestGrossProceeds_NotAdditiveAcrossPartialSells(t *testing.T) {
	c := amm.New(liquidity)
	yes := fixedpoint.Units(10_000)
	no := fixedpoint.Units(4_000)
	shares := fixedpoint.Units(2_000)
	half := fixedpoint.Units(1_000)

	whole, err := c.GrossProceeds(yes, no, shares, true)
	if err != nil {
		t.Fatalf("whole sell: %v", err)
	}
	firstHalf, err := c.GrossProceeds(yes, no, half, true)
	if err != nil {
		t.Fatalf("first half: %v", err)
	}
	yesAfter := new(big.Int).Sub(yes, half)
	secondHalf, err := c.GrossProceeds(yesAfter, no, half, true)
	if err != nil {
		t.Fatalf("second half: %v", err)
	}

	// The first half prices against a richer intermediate book than the final
	// state the whole sell settles at, so splitting always pays strictly more.
	split := new(big.Int).Add(firstHalf, secondHalf)
	if split.Cmp(whole) <= 0 {
		t.Errorf("split sells paid %s, whole sell %s; split should pay more", split, whole)
	}
}

func TestGrossProceeds_RejectsOversell(t *testing.T) {
	c := amm.New(liquidity)
	yes := fixedpoint.Units(100)
	over := fixedpoint.Units(101)
	if _, err := c.GrossProceeds(yes, fixedpoint.Zero(), over, true); err == nil {
		t.Error("expected error selling more than the outstanding supply")
	}
}

// ============================================================================
// Test: MaxSellable
// ============================================================================

func TestMaxSellable_ProceedsFitPool(t *testing.T) {
	c := amm.New(liquidity)
	yes := fixedpoint.Units(30_000)
	no := fixedpoint.Units(1_000)
	owned := fixedpoint.Units(30_000)
	pool := fixedpoint.Units(50)

	shares, proceeds := c.MaxSellable(yes, no, owned, pool, true)
	if shares.Sign() <= 0 {
		t.Fatal("expected a sellable amount")
	}
	if proceeds.Cmp(pool) > 0 {
		t.Errorf("proceeds %s exceed pool %s", proceeds, pool)
	}

	// One more share must not fit.
	oneMore := new(big.Int).Add(shares, fixedpoint.Units(1))
	if oneMore.Cmp(owned) <= 0 {
		g, err := c.GrossProceeds(yes, no, oneMore, true)
		if err == nil && g.Cmp(pool) <= 0 {
			t.Errorf("MaxSellable undershot: %s more shares still fit", fixedpoint.Units(1))
		}
	}
}

func TestMaxSellable_CappedAtOwned(t *testing.T) {
	c := amm.New(liquidity)
	yes := fixedpoint.Units(1_000)
	owned := fixedpoint.Units(10)
	pool := fixedpoint.Units(1_000_000)

	shares, _ := c.MaxSellable(yes, fixedpoint.Zero(), owned, pool, true)
	if shares.Cmp(owned) > 0 {
		t.Errorf("sellable %s exceeds owned %s", shares, owned)
	}
}

func TestMaxSellable_EmptyInputs(t *testing.T) {
	c := amm.New(liquidity)
	shares, proceeds := c.MaxSellable(fixedpoint.Units(100), fixedpoint.Zero(), fixedpoint.Zero(), fixedpoint.Units(10), true)
	if shares.Sign() != 0 || proceeds.Sign() != 0 {
		t.Error("nothing owned should sell nothing")
	}
	shares, proceeds = c.MaxSellable(fixedpoint.Units(100), fixedpoint.Zero(), fixedpoint.Units(100), fixedpoint.Zero(), true)
	if shares.Sign() != 0 || proceeds.Sign() != 0 {
		t.Error("empty pool should sell nothing")
	}
}
