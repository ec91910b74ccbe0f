package market

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
)

// HeatLevel selects the market's virtual liquidity constant, fixed for its
// lifetime at creation. Lower liquidity means prices move harder per trade.
type HeatLevel uint8

const (
	HeatCrack HeatLevel = iota
	HeatHigh
	HeatPro
	HeatApex
	HeatCore
)

// virtualLiquidityShares maps each level to whole shares added to both sides
// of the curve.
var virtualLiquidityShares = map[HeatLevel]int64{
	HeatCrack: 2_000,
	HeatHigh:  5_000,
	HeatPro:   10_000,
	HeatApex:  25_000,
	HeatCore:  50_000,
}

func (h HeatLevel) String() string {
	switch h {
	case HeatCrack:
		return "CRACK"
	case HeatHigh:
		return "HIGH"
	case HeatPro:
		return "PRO"
	case HeatApex:
		return "APEX"
	case HeatCore:
		return "CORE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether h is one of the defined levels.
func (h HeatLevel) Valid() bool {
	_, ok := virtualLiquidityShares[h]
	return ok
}

// VirtualLiquidity returns the per-side liquidity constant at share scale.
func (h HeatLevel) VirtualLiquidity() *big.Int {
	shares, ok := virtualLiquidityShares[h]
	if !ok {
		return fixedpoint.Zero()
	}
	return fixedpoint.Units(shares)
}

// ParseHeatLevel parses the wire representation ("CRACK", "HIGH", ...).
func ParseHeatLevel(s string) (HeatLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRACK":
		return HeatCrack, nil
	case "HIGH":
		return HeatHigh, nil
	case "PRO":
		return HeatPro, nil
	case "APEX":
		return HeatApex, nil
	case "CORE":
		return HeatCore, nil
	default:
		return 0, fmt.Errorf("unknown heat level: %q", s)
	}
}
