// Package amm implements the constant-sum bonding curve with symmetric
// virtual liquidity. Let VY = yesSupply + L, VN = noSupply + L, T = VY + VN.
// Unit price U is fixed; priceYes = U*VY/T and priceNo = U*VN/T, so buying a
// side raises that side's price and the two prices always sum to U (within
// 2 wei of floor-division rounding).
//
// Buys mint shares at the pre-trade spot price; sells price exclusively off
// the post-sell state. Those two choices together make an immediate full
// round-trip exactly fee-neutral before fees (the minted shares sell back
// for the same gross amount), which is what rules out risk-free arbitrage.
// The post-state sell form is deliberately kept bit-for-bit compatible with
// the reference contract, including its known non-additivity across partial
// sells: tranches gross more than the single shot, so a pool funded by net
// buys can price a late exit above what it holds. The engine surfaces that
// as a distinct insufficient-pool error.
package amm

import (
	"errors"
	"math/big"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
)

// UnitPrice is U: 0.01 native units per share, wei scale.
var UnitPrice = fixedpoint.MilliUnits(10)

var (
	ErrAmountTooLarge = errors.New("amm: amount exceeds curve capacity")
	ErrSharesExceed   = errors.New("amm: shares exceed outstanding supply")
)

// Curve binds the virtual liquidity constant chosen at market creation.
type Curve struct {
	l *big.Int
}

// New returns a curve with per-side virtual liquidity l (share scale).
func New(l *big.Int) Curve {
	return Curve{l: fixedpoint.Clone(l)}
}

// VirtualLiquidity returns L.
func (c Curve) VirtualLiquidity() *big.Int {
	return fixedpoint.Clone(c.l)
}

// virtuals returns (VY, VN, T) for the given real supplies.
func (c Curve) virtuals(yes, no *big.Int) (vy, vn, t *big.Int) {
	vy = new(big.Int).Add(yes, c.l)
	vn = new(big.Int).Add(no, c.l)
	t = new(big.Int).Add(vy, vn)
	return vy, vn, t
}

// Prices returns (priceYes, priceNo) in wei per whole share.
func (c Curve) Prices(yes, no *big.Int) (*big.Int, *big.Int) {
	vy, vn, t := c.virtuals(yes, no)
	priceYes := fixedpoint.MulDiv(UnitPrice, vy, t)
	priceNo := fixedpoint.MulDiv(UnitPrice, vn, t)
	return priceYes, priceNo
}

// Price returns the price of one side.
func (c Curve) Price(yes, no *big.Int, isYes bool) *big.Int {
	priceYes, priceNo := c.Prices(yes, no)
	if isYes {
		return priceYes
	}
	return priceNo
}

// SharesOut computes the shares minted for a net buy amount at the pre-trade
// spot price: s = net * T / (U * Vown), where Vown is the bought side's
// virtual supply. Shares are wei scale like the supplies.
func (c Curve) SharesOut(yes, no, net *big.Int, isYes bool) (*big.Int, error) {
	vy, vn, t := c.virtuals(yes, no)
	own := vy
	if !isYes {
		own = vn
	}
	// denominator U*Vown / WeiScale keeps the result at share scale:
	// net [wei] * T [shares] / (U [wei/share] * Vown [shares] / 1e18 [shares])
	den := new(big.Int).Mul(UnitPrice, own)
	den.Quo(den, fixedpoint.WeiScale)
	if den.Sign() <= 0 {
		return nil, ErrAmountTooLarge
	}
	return fixedpoint.MulDiv(net, t, den), nil
}

// GrossProceeds computes the gross sale value of `shares` of one side,
// priced off the post-sell state: g = s * U * (Vown - s) / (T - s).
// Selling never uses an average of pre/post prices; the averaged form is a
// historical arbitrage bug.
func (c Curve) GrossProceeds(yes, no, shares *big.Int, isYes bool) (*big.Int, error) {
	side := yes
	if !isYes {
		side = no
	}
	if shares.Cmp(side) > 0 {
		return nil, ErrSharesExceed
	}
	vy, vn, t := c.virtuals(yes, no)
	own := vy
	if !isYes {
		own = vn
	}
	ownAfter := new(big.Int).Sub(own, shares)
	tAfter := new(big.Int).Sub(t, shares)
	if tAfter.Sign() <= 0 {
		return nil, ErrSharesExceed
	}
	num := new(big.Int).Mul(shares, UnitPrice)
	num.Mul(num, ownAfter)
	num.Quo(num, fixedpoint.WeiScale) // back to wei after shares*price
	return num.Quo(num, tAfter), nil
}

// MaxSellable finds the largest share count whose gross proceeds fit inside
// pool, capped at the owned amount. Proceeds are not monotonic in size (the
// exit price falls as the sale grows), so the whole position is tried first;
// otherwise the pool bound g <= pool is solved as the smaller root of
// U*s^2 - (U*Vown + pool*1e18)*s + pool*1e18*T. Returns the share count and
// its proceeds. This is a front-end convenience, not a correctness guarantee.
func (c Curve) MaxSellable(yes, no, owned, pool *big.Int, isYes bool) (*big.Int, *big.Int) {
	if owned.Sign() == 0 || pool.Sign() == 0 {
		return fixedpoint.Zero(), fixedpoint.Zero()
	}
	side := yes
	if !isYes {
		side = no
	}
	cap := owned
	if side.Cmp(cap) < 0 {
		cap = side
	}
	if g, err := c.GrossProceeds(yes, no, cap, isYes); err == nil && g.Cmp(pool) <= 0 {
		return fixedpoint.Clone(cap), g
	}

	vy, vn, t := c.virtuals(yes, no)
	own := vy
	if !isYes {
		own = vn
	}
	poolScaled := new(big.Int).Mul(pool, fixedpoint.WeiScale)
	b := new(big.Int).Mul(UnitPrice, own)
	b.Add(b, poolScaled)
	// discriminant b^2 - 4*U*pool*1e18*T
	disc := new(big.Int).Mul(b, b)
	four := new(big.Int).Mul(UnitPrice, poolScaled)
	four.Mul(four, t)
	four.Lsh(four, 2)
	disc.Sub(disc, four)
	if disc.Sign() < 0 {
		return fixedpoint.Zero(), fixedpoint.Zero()
	}
	maxShares := disc.Sqrt(disc)
	maxShares.Sub(b, maxShares)
	maxShares.Quo(maxShares, new(big.Int).Lsh(UnitPrice, 1))
	if maxShares.Cmp(cap) > 0 {
		maxShares = fixedpoint.Clone(cap)
	}
	if maxShares.Sign() <= 0 {
		return fixedpoint.Zero(), fixedpoint.Zero()
	}
	proceeds, err := c.GrossProceeds(yes, no, maxShares, isYes)
	if err != nil {
		return fixedpoint.Zero(), fixedpoint.Zero()
	}
	// Floor rounding in the inversion can overshoot by a wei; step down
	// until the proceeds actually fit.
	one := big.NewInt(1)
	for proceeds.Cmp(pool) > 0 && maxShares.Sign() > 0 {
		maxShares = new(big.Int).Sub(maxShares, one)
		proceeds, err = c.GrossProceeds(yes, no, maxShares, isYes)
		if err != nil {
			return fixedpoint.Zero(), fixedpoint.Zero()
		}
	}
	return maxShares, proceeds
}
