package fixedpoint_test

import (
	"math/big"
	"testing"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
)

func TestUnits(t *testing.T) {
	got := fixedpoint.Units(3)
	want, _ := new(big.Int).SetString("3000000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("Units(3) = %s, want %s", got, want)
	}
}

func TestMilliUnits(t *testing.T) {
	got := fixedpoint.MilliUnits(10)
	want, _ := new(big.Int).SetString("10000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("MilliUnits(10) = %s, want %s", got, want)
	}
}

func TestMulDiv_Floors(t *testing.T) {
	// 7*3/2 = 10.5 floors to 10
	got := fixedpoint.MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Int64() != 10 {
		t.Errorf("MulDiv(7,3,2) = %s, want 10", got)
	}
}

func TestMulDiv_PanicsOnZeroDenominator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on zero denominator")
		}
	}()
	fixedpoint.MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0))
}

func TestBpsOf(t *testing.T) {
	// 100 bps of 12345 = 123 (floored from 123.45)
	got := fixedpoint.BpsOf(big.NewInt(12345), 100)
	if got.Int64() != 123 {
		t.Errorf("BpsOf(12345, 100) = %s, want 123", got)
	}
}

func TestBpsOf_ZeroBps(t *testing.T) {
	got := fixedpoint.BpsOf(fixedpoint.Units(1000), 0)
	if got.Sign() != 0 {
		t.Errorf("BpsOf(_, 0) = %s, want 0", got)
	}
}

func TestMaxMin_ReturnCopies(t *testing.T) {
	a := big.NewInt(5)
	b := big.NewInt(9)

	max := fixedpoint.Max(a, b)
	if max.Int64() != 9 {
		t.Errorf("Max = %s, want 9", max)
	}
	max.SetInt64(0)
	if b.Int64() != 9 {
		t.Error("Max must not alias its input")
	}

	min := fixedpoint.Min(a, b)
	if min.Int64() != 5 {
		t.Errorf("Min = %s, want 5", min)
	}
	min.SetInt64(0)
	if a.Int64() != 5 {
		t.Error("Min must not alias its input")
	}
}

func TestCloneNil(t *testing.T) {
	got := fixedpoint.Clone(nil)
	if got == nil || got.Sign() != 0 {
		t.Errorf("Clone(nil) = %v, want fresh zero", got)
	}
}

func TestIsZeroIsPositive(t *testing.T) {
	if !fixedpoint.IsZero(nil) {
		t.Error("IsZero(nil) should be true")
	}
	if !fixedpoint.IsZero(big.NewInt(0)) {
		t.Error("IsZero(0) should be true")
	}
	if fixedpoint.IsPositive(nil) {
		t.Error("IsPositive(nil) should be false")
	}
	if !fixedpoint.IsPositive(big.NewInt(1)) {
		t.Error("IsPositive(1) should be true")
	}
}
