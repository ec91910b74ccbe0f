package server

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/gov"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/market"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/query"
)

type handlers struct {
	eng *engine.Engine
	qs  *query.Service
	log zerolog.Logger
}

// --- request shapes ---------------------------------------------------------

type createMarketRequest struct {
	Creator         string    `json:"creator"`
	Question        string    `json:"question"`
	EvidenceLink    string    `json:"evidence_link"`
	ResolutionRules string    `json:"resolution_rules"`
	ImageURL        string    `json:"image_url"`
	Expiry          time.Time `json:"expiry"`
	HeatLevel       string    `json:"heat_level"`

	// Optional first bet, creation and buy applied atomically.
	Buy *struct {
		IsYes        bool   `json:"is_yes"`
		AmountWei    string `json:"amount_wei"`
		MinSharesOut string `json:"min_shares_out,omitempty"`
	} `json:"buy,omitempty"`
}

type tradeRequest struct {
	Address      string `json:"address"`
	IsYes        bool   `json:"is_yes"`
	AmountWei    string `json:"amount_wei,omitempty"`    // buys
	Shares       string `json:"shares,omitempty"`        // sells
	MinSharesOut string `json:"min_shares_out,omitempty"`
	MinAmountOut string `json:"min_amount_out,omitempty"`
}

type proposeRequest struct {
	Proposer   string `json:"proposer"`
	Outcome    bool   `json:"outcome"`
	ProofLink  string `json:"proof_link,omitempty"`
	PaymentWei string `json:"payment_wei"`
}

type disputeRequest struct {
	Disputer   string `json:"disputer"`
	PaymentWei string `json:"payment_wei"`
}

type voteRequest struct {
	Voter   string `json:"voter"`
	Outcome bool   `json:"outcome"`
}

type actorRequest struct {
	Address string `json:"address"`
}

type governanceActionRequest struct {
	Signer string `json:"signer"`
	Action struct {
		Type string `json:"type"`

		PlatformBps      uint32 `json:"platform_bps,omitempty"`
		CreatorBps       uint32 `json:"creator_bps,omitempty"`
		ResolutionFeeBps uint32 `json:"resolution_fee_bps,omitempty"`

		JuryShareBps      uint32 `json:"jury_share_bps,omitempty"`
		BondBps           uint32 `json:"bond_bps,omitempty"`
		ProposerRewardBps uint32 `json:"proposer_reward_bps,omitempty"`
		BondFloorWei      string `json:"bond_floor_wei,omitempty"`

		To  string `json:"to,omitempty"`  // sweep target
		Old string `json:"old,omitempty"` // signer replacement
		New string `json:"new,omitempty"`
	} `json:"action"`
}

// --- market lifecycle -------------------------------------------------------

func (h *handlers) createMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	creator, ok := parseAddress(w, req.Creator, "creator")
	if !ok {
		return
	}
	heat, err := market.ParseHeatLevel(req.HeatLevel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Buy != nil {
		amount, ok := parseWeiField(w, req.Buy.AmountWei, "buy.amount_wei")
		if !ok {
			return
		}
		minShares, ok := parseOptionalWei(w, req.Buy.MinSharesOut, "buy.min_shares_out")
		if !ok {
			return
		}
		id, res, err := h.eng.CreateMarketAndBuy(creator, req.Question, req.EvidenceLink,
			req.ResolutionRules, req.ImageURL, req.Expiry, heat, req.Buy.IsYes, amount, minShares)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"market_id": id,
			"shares":    res.Shares.String(),
		})
		return
	}

	id, err := h.eng.CreateMarket(creator, req.Question, req.EvidenceLink,
		req.ResolutionRules, req.ImageURL, req.Expiry, heat)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"market_id": id})
}

func (h *handlers) buy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	var req tradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	buyer, ok := parseAddress(w, req.Address, "address")
	if !ok {
		return
	}
	amount, ok := parseWeiField(w, req.AmountWei, "amount_wei")
	if !ok {
		return
	}
	minShares, ok := parseOptionalWei(w, req.MinSharesOut, "min_shares_out")
	if !ok {
		return
	}
	res, err := h.eng.Buy(buyer, id, req.IsYes, amount, minShares)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeTrade(w, res)
}

func (h *handlers) sell(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	var req tradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	seller, ok := parseAddress(w, req.Address, "address")
	if !ok {
		return
	}
	shares, ok := parseWeiField(w, req.Shares, "shares")
	if !ok {
		return
	}
	minOut, ok := parseOptionalWei(w, req.MinAmountOut, "min_amount_out")
	if !ok {
		return
	}
	res, err := h.eng.Sell(seller, id, req.IsYes, shares, minOut)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeTrade(w, res)
}

func (h *handlers) propose(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	var req proposeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	proposer, ok := parseAddress(w, req.Proposer, "proposer")
	if !ok {
		return
	}
	payment, ok := parseWeiField(w, req.PaymentWei, "payment_wei")
	if !ok {
		return
	}
	if err := h.eng.ProposeOutcome(proposer, id, req.Outcome, req.ProofLink, payment); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "proposed"})
}

func (h *handlers) dispute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	var req disputeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	disputer, ok := parseAddress(w, req.Disputer, "disputer")
	if !ok {
		return
	}
	payment, ok := parseWeiField(w, req.PaymentWei, "payment_wei")
	if !ok {
		return
	}
	if err := h.eng.Dispute(disputer, id, payment); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disputed"})
}

func (h *handlers) vote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	voter, ok := parseAddress(w, req.Voter, "voter")
	if !ok {
		return
	}
	if err := h.eng.Vote(voter, id, req.Outcome); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "voted"})
}

func (h *handlers) finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	var req actorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, req.Address, "address")
	if !ok {
		return
	}
	if err := h.eng.FinalizeMarket(caller, id); err != nil {
		writeEngineError(w, err)
		return
	}
	m, err := h.qs.Market(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// --- payouts ----------------------------------------------------------------

func (h *handlers) claim(w http.ResponseWriter, r *http.Request) {
	h.payout(w, r, h.eng.Claim)
}

func (h *handlers) claimJuryFees(w http.ResponseWriter, r *http.Request) {
	h.payout(w, r, h.eng.ClaimJuryFees)
}

func (h *handlers) emergencyRefund(w http.ResponseWriter, r *http.Request) {
	h.payout(w, r, h.eng.EmergencyRefund)
}

func (h *handlers) payout(w http.ResponseWriter, r *http.Request, op func(common.Address, uint64) (*big.Int, error)) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	var req actorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address, "address")
	if !ok {
		return
	}
	amount, err := op(addr, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount": query.NewAmount(amount)})
}

func (h *handlers) withdrawBonds(w http.ResponseWriter, r *http.Request) {
	h.withdraw(w, r, h.eng.WithdrawBonds)
}

func (h *handlers) withdrawCreatorFees(w http.ResponseWriter, r *http.Request) {
	h.withdraw(w, r, h.eng.WithdrawCreatorFees)
}

func (h *handlers) withdraw(w http.ResponseWriter, r *http.Request, op func(common.Address) (*big.Int, error)) {
	var req actorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address, "address")
	if !ok {
		return
	}
	amount, err := op(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount": query.NewAmount(amount)})
}

// --- reads ------------------------------------------------------------------

func (h *handlers) listMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"markets": h.qs.Markets()})
}

func (h *handlers) getMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	m, err := h.qs.Market(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handlers) getPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, r.PathValue("address"), "address")
	if !ok {
		return
	}
	pos, err := h.qs.Position(addr, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (h *handlers) getPending(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r.PathValue("address"), "address")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.qs.Pending(addr))
}

func (h *handlers) getPendingJuryFees(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, r.PathValue("address"), "address")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount": h.qs.PendingJuryFees(addr, id)})
}

func (h *handlers) proposalBond(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	bond, err := h.qs.ProposalBond(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bond": bond})
}

func (h *handlers) previewBuy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	isYes := r.URL.Query().Get("is_yes") == "true"
	amount, ok := parseWeiField(w, r.URL.Query().Get("amount_wei"), "amount_wei")
	if !ok {
		return
	}
	q, err := h.qs.PreviewBuy(id, isYes, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *handlers) previewSell(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	isYes := r.URL.Query().Get("is_yes") == "true"
	shares, ok := parseWeiField(w, r.URL.Query().Get("shares"), "shares")
	if !ok {
		return
	}
	q, err := h.qs.PreviewSell(id, isYes, shares)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *handlers) maxSellable(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(w, r)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, r.URL.Query().Get("address"), "address")
	if !ok {
		return
	}
	isYes := r.URL.Query().Get("is_yes") == "true"
	q, err := h.qs.MaxSellable(addr, id, isYes)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// --- governance -------------------------------------------------------------

func (h *handlers) listActions(w http.ResponseWriter, r *http.Request) {
	pending := h.eng.PendingActions()
	out := make([]map[string]any, 0, len(pending))
	for _, p := range pending {
		out = append(out, map[string]any{
			"id":            p.ID,
			"type":          p.Action.Type(),
			"proposer":      p.Proposer.Hex(),
			"proposed_at":   p.ProposedAt,
			"confirmations": p.Confirmations(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": out})
}

func (h *handlers) proposeAction(w http.ResponseWriter, r *http.Request) {
	var req governanceActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	signer, ok := parseAddress(w, req.Signer, "signer")
	if !ok {
		return
	}
	action, err := decodeAction(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.eng.ProposeAction(signer, action)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"action_id": id})
}

func (h *handlers) confirmAction(w http.ResponseWriter, r *http.Request) {
	actionID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid action id")
		return
	}
	var req actorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	signer, ok := parseAddress(w, req.Address, "address")
	if !ok {
		return
	}
	if err := h.eng.ConfirmAction(signer, actionID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (h *handlers) sweepableSurplus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"surplus": h.qs.SweepableSurplus()})
}

func decodeAction(req governanceActionRequest) (gov.Action, error) {
	a := req.Action
	switch a.Type {
	case "set_fees":
		return gov.SetFees{
			PlatformBps:      a.PlatformBps,
			CreatorBps:       a.CreatorBps,
			ResolutionFeeBps: a.ResolutionFeeBps,
		}, nil
	case "set_resolution_params":
		floor, ok := new(big.Int).SetString(a.BondFloorWei, 10)
		if !ok {
			return nil, errors.New("invalid bond_floor_wei")
		}
		return gov.SetResolutionParams{
			JuryShareBps:      a.JuryShareBps,
			BondBps:           a.BondBps,
			ProposerRewardBps: a.ProposerRewardBps,
			BondFloor:         floor,
		}, nil
	case "pause":
		return gov.Pause{}, nil
	case "unpause":
		return gov.Unpause{}, nil
	case "sweep":
		if !common.IsHexAddress(a.To) {
			return nil, errors.New("invalid sweep target")
		}
		return gov.Sweep{To: common.HexToAddress(a.To)}, nil
	case "replace_signer":
		if !common.IsHexAddress(a.Old) || !common.IsHexAddress(a.New) {
			return nil, errors.New("invalid signer addresses")
		}
		return gov.ReplaceSigner{
			Old: common.HexToAddress(a.Old),
			New: common.HexToAddress(a.New),
		}, nil
	default:
		return nil, errors.New("unknown action type: " + a.Type)
	}
}
