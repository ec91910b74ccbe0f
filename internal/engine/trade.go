package engine

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/amm"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/event"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/ledger"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/market"
)

// TradeResult reports the outcome of a committed buy or sell.
type TradeResult struct {
	MarketID uint64
	Shares   *big.Int // minted (buy) or burned (sell)
	Amount   *big.Int // gross in (buy) or net out (sell)
	PriceYes *big.Int // post-trade spot
	PriceNo  *big.Int
}

// CreateMarket opens a new market. The question must be non-empty, expiry in
// the future and the heat level one of the defined tiers.
func (e *Engine) CreateMarket(creator common.Address, question, evidenceLink, resolutionRules, imageURL string, expiry time.Time, heat market.HeatLevel) (uint64, error) {
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe("create_market", start)

	m, err := e.createMarketLocked(creator, question, evidenceLink, resolutionRules, imageURL, expiry, heat)
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (e *Engine) createMarketLocked(creator common.Address, question, evidenceLink, resolutionRules, imageURL string, expiry time.Time, heat market.HeatLevel) (*market.Market, error) {
	const op = "create_market"
	if e.paused {
		e.reject(op, "paused")
		return nil, ErrPaused
	}
	if strings.TrimSpace(question) == "" {
		e.reject(op, "empty_question")
		return nil, ErrEmptyQuestion
	}
	if !expiry.After(e.now()) {
		e.reject(op, "past_expiry")
		return nil, ErrPastExpiry
	}
	if !heat.Valid() {
		e.reject(op, "invalid_heat")
		return nil, ErrInvalidHeatLevel
	}

	m := &market.Market{
		ID:              e.nextMarketID,
		Question:        question,
		EvidenceLink:    evidenceLink,
		ResolutionRules: resolutionRules,
		ImageURL:        imageURL,
		Creator:         creator,
		Expiry:          expiry,
		Heat:            heat,
		YesSupply:       fixedpoint.Zero(),
		NoSupply:        fixedpoint.Zero(),
		PoolBalance:     fixedpoint.Zero(),
	}
	e.nextMarketID++
	e.markets[m.ID] = m
	e.marketOrder = append(e.marketOrder, m.ID)

	id := m.ID
	e.commit(op, nil, event.TypeMarketCreated, &id, creator, event.MarketCreated{
		Question:  question,
		Creator:   creator.Hex(),
		Expiry:    expiry,
		HeatLevel: heat.String(),
	})
	if e.metrics != nil {
		e.metrics.MarketsOpen.Inc()
	}
	e.log.Info().Uint64("market_id", m.ID).Str("heat", heat.String()).Msg("market created")
	return m, nil
}

// CreateMarketAndBuy atomically opens a market and places the creator's first
// bet. All inputs for both steps are validated before either takes effect, so
// the pair cannot half-apply.
func (e *Engine) CreateMarketAndBuy(creator common.Address, question, evidenceLink, resolutionRules, imageURL string, expiry time.Time, heat market.HeatLevel, isYes bool, amount, minSharesOut *big.Int) (uint64, *TradeResult, error) {
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe("create_market_and_buy", start)

	// Pre-validate the buy against a fresh curve. Creation is infallible
	// once its own inputs pass, so checking the buy first keeps the whole
	// call atomic.
	if e.paused {
		e.reject("create_market_and_buy", "paused")
		return 0, nil, ErrPaused
	}
	if amount == nil || amount.Cmp(e.params.MinBet) < 0 {
		e.reject("create_market_and_buy", "bet_too_small")
		return 0, nil, ErrBetTooSmall
	}
	if heat.Valid() {
		curve := amm.New(heat.VirtualLiquidity())
		net := e.netOfTradeFees(amount)
		shares, err := curve.SharesOut(fixedpoint.Zero(), fixedpoint.Zero(), net, isYes)
		if err != nil {
			e.reject("create_market_and_buy", "amount_too_large")
			return 0, nil, err
		}
		if minSharesOut != nil && shares.Cmp(minSharesOut) < 0 {
			e.reject("create_market_and_buy", "slippage")
			return 0, nil, ErrSlippageExceeded
		}
	}

	m, err := e.createMarketLocked(creator, question, evidenceLink, resolutionRules, imageURL, expiry, heat)
	if err != nil {
		return 0, nil, err
	}
	res, err := e.buyLocked(m, creator, isYes, amount, minSharesOut)
	if err != nil {
		// unreachable given the pre-validation above, but surfaced rather
		// than swallowed if the economics ever change
		return m.ID, nil, err
	}
	return m.ID, res, nil
}

// Buy spends `amount` (gross, wei) on one side of an active market. Fees come
// off the top; shares are minted at the pre-trade spot price. minSharesOut is
// the caller's slippage bound (nil to skip).
func (e *Engine) Buy(buyer common.Address, marketID uint64, isYes bool, amount, minSharesOut *big.Int) (*TradeResult, error) {
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe("buy", start)

	m, err := e.getMarket(marketID)
	if err != nil {
		e.reject("buy", "not_found")
		return nil, err
	}
	return e.buyLocked(m, buyer, isYes, amount, minSharesOut)
}

func (e *Engine) buyLocked(m *market.Market, buyer common.Address, isYes bool, amount, minSharesOut *big.Int) (*TradeResult, error) {
	const op = "buy"
	if e.paused {
		e.reject(op, "paused")
		return nil, ErrPaused
	}
	if e.status(m) != market.StatusActive {
		e.reject(op, "not_active")
		return nil, ErrMarketNotActive
	}
	if amount == nil || amount.Cmp(e.params.MinBet) < 0 {
		e.reject(op, "bet_too_small")
		return nil, ErrBetTooSmall
	}

	platformFee := fixedpoint.BpsOf(amount, e.params.PlatformFeeBps)
	creatorFee := fixedpoint.BpsOf(amount, e.params.CreatorFeeBps)
	net := new(big.Int).Sub(amount, platformFee)
	net.Sub(net, creatorFee)

	curve := amm.New(m.Heat.VirtualLiquidity())
	shares, err := curve.SharesOut(m.YesSupply, m.NoSupply, net, isYes)
	if err != nil {
		e.reject(op, "amount_too_large")
		return nil, err
	}
	if minSharesOut != nil && shares.Cmp(minSharesOut) < 0 {
		e.reject(op, "slippage")
		return nil, ErrSlippageExceeded
	}

	// Commit: supplies, pool, position and ledger move together.
	side := m.YesSupply
	if !isYes {
		side = m.NoSupply
	}
	side.Add(side, shares)
	m.PoolBalance.Add(m.PoolBalance, net)

	pos := e.position(m.ID, buyer)
	pos.SideShares(isYes).Add(pos.SideShares(isYes), shares)
	pos.TotalInvested.Add(pos.TotalInvested, net)

	batch := e.newBatch(opRef(op, m.ID, buyer))
	funds := ledger.ExternalAccount(ledger.SubTypeExternalFunds)
	batch.Add(ledger.JournalTypeTradeNet, ledger.MarketAccount(m.ID, ledger.SubTypePool), funds, net)
	if platformFee.Sign() > 0 {
		batch.Add(ledger.JournalTypePlatformFee, ledger.ExternalAccount(ledger.SubTypeExternalTreasury), funds, platformFee)
	}
	if creatorFee.Sign() > 0 {
		batch.Add(ledger.JournalTypeCreatorFee, ledger.UserAccount(m.Creator, ledger.SubTypeCreatorFees, 0), funds, creatorFee)
	}

	priceYes, priceNo := curve.Prices(m.YesSupply, m.NoSupply)
	id := m.ID
	e.commit(op, batch, event.TypeSharesBought, &id, buyer, event.Trade{
		IsYes:     isYes,
		AmountWei: amount.String(),
		Shares:    shares.String(),
		PriceYes:  priceYes.String(),
		PriceNo:   priceNo.String(),
	})
	return &TradeResult{
		MarketID: m.ID,
		Shares:   shares,
		Amount:   fixedpoint.Clone(amount),
		PriceYes: priceYes,
		PriceNo:  priceNo,
	}, nil
}

// Sell burns `shares` of one side of an active market. Proceeds are priced
// off the post-sell state, fees come off the gross and the net is paid out
// immediately. minAmountOut is the caller's slippage bound on the net (nil to
// skip).
func (e *Engine) Sell(seller common.Address, marketID uint64, isYes bool, shares, minAmountOut *big.Int) (*TradeResult, error) {
	const op = "sell"
	start := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.observe(op, start)

	m, err := e.getMarket(marketID)
	if err != nil {
		e.reject(op, "not_found")
		return nil, err
	}
	if e.paused {
		e.reject(op, "paused")
		return nil, ErrPaused
	}
	if e.status(m) != market.StatusActive {
		e.reject(op, "not_active")
		return nil, ErrMarketNotActive
	}
	if shares == nil || shares.Sign() <= 0 {
		e.reject(op, "no_shares")
		return nil, ErrInsufficientShares
	}
	pos, ok := e.peekPosition(marketID, seller)
	if !ok || pos.SideShares(isYes).Cmp(shares) < 0 {
		e.reject(op, "insufficient_shares")
		return nil, ErrInsufficientShares
	}

	curve := amm.New(m.Heat.VirtualLiquidity())
	gross, err := curve.GrossProceeds(m.YesSupply, m.NoSupply, shares, isYes)
	if err != nil {
		e.reject(op, "shares_exceed")
		return nil, err
	}
	// The pool only holds net contributions; convexity means large sells can
	// price above what the pool can pay. That is the seller's problem to
	// split, not the engine's to subsidize.
	if gross.Cmp(m.PoolBalance) > 0 {
		e.reject(op, "insufficient_pool")
		return nil, ErrInsufficientPool
	}

	platformFee := fixedpoint.BpsOf(gross, e.params.PlatformFeeBps)
	creatorFee := fixedpoint.BpsOf(gross, e.params.CreatorFeeBps)
	net := new(big.Int).Sub(gross, platformFee)
	net.Sub(net, creatorFee)
	if minAmountOut != nil && net.Cmp(minAmountOut) < 0 {
		e.reject(op, "slippage")
		return nil, ErrSlippageExceeded
	}

	side := m.YesSupply
	if !isYes {
		side = m.NoSupply
	}
	side.Sub(side, shares)
	m.PoolBalance.Sub(m.PoolBalance, gross)

	pos.SideShares(isYes).Sub(pos.SideShares(isYes), shares)
	pos.TotalInvested.Sub(pos.TotalInvested, net)
	if pos.TotalInvested.Sign() < 0 {
		pos.TotalInvested.SetInt64(0)
	}

	batch := e.newBatch(opRef(op, m.ID, seller))
	pool := ledger.MarketAccount(m.ID, ledger.SubTypePool)
	funds := ledger.ExternalAccount(ledger.SubTypeExternalFunds)
	batch.Add(ledger.JournalTypeTradeNet, funds, pool, net)
	if platformFee.Sign() > 0 {
		batch.Add(ledger.JournalTypePlatformFee, ledger.ExternalAccount(ledger.SubTypeExternalTreasury), pool, platformFee)
	}
	if creatorFee.Sign() > 0 {
		batch.Add(ledger.JournalTypeCreatorFee, ledger.UserAccount(m.Creator, ledger.SubTypeCreatorFees, 0), pool, creatorFee)
	}

	priceYes, priceNo := curve.Prices(m.YesSupply, m.NoSupply)
	id := m.ID
	e.commit(op, batch, event.TypeSharesSold, &id, seller, event.Trade{
		IsYes:     isYes,
		AmountWei: net.String(),
		Shares:    shares.String(),
		PriceYes:  priceYes.String(),
		PriceNo:   priceNo.String(),
	})
	return &TradeResult{
		MarketID: m.ID,
		Shares:   fixedpoint.Clone(shares),
		Amount:   net,
		PriceYes: priceYes,
		PriceNo:  priceNo,
	}, nil
}

// Quote is a read-only trade preview.
type Quote struct {
	Shares   *big.Int // buy: shares out; sell: shares in
	Amount   *big.Int // buy: net spent after fees; sell: net proceeds
	FeeTotal *big.Int
	PriceYes *big.Int // post-trade spot
	PriceNo  *big.Int
}

// PreviewBuy quotes a buy without committing anything.
func (e *Engine) PreviewBuy(marketID uint64, isYes bool, amount *big.Int) (*Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.getMarket(marketID)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Cmp(e.params.MinBet) < 0 {
		return nil, ErrBetTooSmall
	}
	net, fee := e.splitTradeFees(amount)

	curve := amm.New(m.Heat.VirtualLiquidity())
	shares, err := curve.SharesOut(m.YesSupply, m.NoSupply, net, isYes)
	if err != nil {
		return nil, err
	}
	yes := new(big.Int).Set(m.YesSupply)
	no := new(big.Int).Set(m.NoSupply)
	if isYes {
		yes.Add(yes, shares)
	} else {
		no.Add(no, shares)
	}
	priceYes, priceNo := curve.Prices(yes, no)
	return &Quote{Shares: shares, Amount: net, FeeTotal: fee, PriceYes: priceYes, PriceNo: priceNo}, nil
}

// PreviewSell quotes a sell without committing anything.
func (e *Engine) PreviewSell(marketID uint64, isYes bool, shares *big.Int) (*Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.getMarket(marketID)
	if err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrInsufficientShares
	}
	curve := amm.New(m.Heat.VirtualLiquidity())
	gross, err := curve.GrossProceeds(m.YesSupply, m.NoSupply, shares, isYes)
	if err != nil {
		return nil, err
	}
	if gross.Cmp(m.PoolBalance) > 0 {
		return nil, ErrInsufficientPool
	}
	net, fee := e.splitTradeFees(gross)

	yes := new(big.Int).Set(m.YesSupply)
	no := new(big.Int).Set(m.NoSupply)
	if isYes {
		yes.Sub(yes, shares)
	} else {
		no.Sub(no, shares)
	}
	priceYes, priceNo := curve.Prices(yes, no)
	return &Quote{Shares: fixedpoint.Clone(shares), Amount: net, FeeTotal: fee, PriceYes: priceYes, PriceNo: priceNo}, nil
}

// MaxSellableShares returns the largest share count a holder can sell into
// the current pool on one side, with the gross proceeds at that size.
func (e *Engine) MaxSellableShares(holder common.Address, marketID uint64, isYes bool) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.getMarket(marketID)
	if err != nil {
		return nil, nil, err
	}
	pos, ok := e.peekPosition(marketID, holder)
	if !ok {
		return fixedpoint.Zero(), fixedpoint.Zero(), nil
	}
	curve := amm.New(m.Heat.VirtualLiquidity())
	shares, proceeds := curve.MaxSellable(m.YesSupply, m.NoSupply, pos.SideShares(isYes), m.PoolBalance, isYes)
	return shares, proceeds, nil
}

// splitTradeFees floors each fee independently, matching the committed trade
// paths wei for wei.
func (e *Engine) splitTradeFees(gross *big.Int) (net, feeTotal *big.Int) {
	platformFee := fixedpoint.BpsOf(gross, e.params.PlatformFeeBps)
	creatorFee := fixedpoint.BpsOf(gross, e.params.CreatorFeeBps)
	feeTotal = new(big.Int).Add(platformFee, creatorFee)
	net = new(big.Int).Sub(gross, feeTotal)
	return net, feeTotal
}

func (e *Engine) netOfTradeFees(amount *big.Int) *big.Int {
	net, _ := e.splitTradeFees(amount)
	return net
}

func opRef(op string, marketID uint64, actor common.Address) string {
	return op + ":" + uintStr(marketID) + ":" + actor.Hex()
}

func uintStr(v uint64) string {
	return new(big.Int).SetUint64(v).String()
}
