package server

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/gov"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeTrade(w http.ResponseWriter, res *engine.TradeResult) {
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": res.MarketID,
		"shares":    res.Shares.String(),
		"amount":    res.Amount.String(),
		"price_yes": res.PriceYes.String(),
		"price_no":  res.PriceNo.String(),
	})
}

// writeEngineError maps engine and governance sentinels onto HTTP statuses.
// Unknown errors are treated as internal and their detail withheld.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrMarketNotFound),
		errors.Is(err, gov.ErrUnknownAction):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrAlreadyProposed),
		errors.Is(err, engine.ErrAlreadyDisputed),
		errors.Is(err, engine.ErrAlreadyVoted),
		errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, engine.ErrAlreadyRefunded),
		errors.Is(err, engine.ErrJuryFeesClaimed),
		errors.Is(err, engine.ErrMarketResolved),
		errors.Is(err, gov.ErrAlreadyConfirmed),
		errors.Is(err, gov.ErrActionExecuted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrPaused),
		errors.Is(err, gov.ErrNotSigner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrEmptyQuestion),
		errors.Is(err, engine.ErrPastExpiry),
		errors.Is(err, engine.ErrInvalidHeatLevel),
		errors.Is(err, engine.ErrMarketNotActive),
		errors.Is(err, engine.ErrBetTooSmall),
		errors.Is(err, engine.ErrSlippageExceeded),
		errors.Is(err, engine.ErrInsufficientShares),
		errors.Is(err, engine.ErrInsufficientPool),
		errors.Is(err, engine.ErrMarketNotExpired),
		errors.Is(err, engine.ErrOneSidedMarket),
		errors.Is(err, engine.ErrCreatorPriority),
		errors.Is(err, engine.ErrWrongPayment),
		errors.Is(err, engine.ErrNoProposal),
		errors.Is(err, engine.ErrDisputeWindowClosed),
		errors.Is(err, engine.ErrNoDispute),
		errors.Is(err, engine.ErrVotingClosed),
		errors.Is(err, engine.ErrNoShares),
		errors.Is(err, engine.ErrFinalizeTooEarly),
		errors.Is(err, engine.ErrNotResolved),
		errors.Is(err, engine.ErrNoWinningShares),
		errors.Is(err, engine.ErrRefundTooEarly),
		errors.Is(err, engine.ErrResolutionInProgress),
		errors.Is(err, engine.ErrNoJuryFees),
		errors.Is(err, engine.ErrNothingToWithdraw),
		errors.Is(err, gov.ErrActionExpired),
		errors.Is(err, gov.ErrFeeCeiling),
		errors.Is(err, gov.ErrJuryShareRange),
		errors.Is(err, gov.ErrZeroBondFloor),
		errors.Is(err, gov.ErrZeroSweepTarget),
		errors.Is(err, gov.ErrZeroSigner),
		errors.Is(err, gov.ErrSameSigner),
		errors.Is(err, gov.ErrDuplicateSigner),
		errors.Is(err, gov.ErrUnknownOldSigner):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseMarketID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return 0, false
	}
	return id, true
}

func parseAddress(w http.ResponseWriter, s, field string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		writeError(w, http.StatusBadRequest, "invalid address in "+field)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// parseWeiField decodes a required base-10 wei amount.
func parseWeiField(w http.ResponseWriter, s, field string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "invalid amount in "+field)
		return nil, false
	}
	return v, true
}

// parseOptionalWei decodes an optional wei amount; empty means no bound.
func parseOptionalWei(w http.ResponseWriter, s, field string) (*big.Int, bool) {
	if s == "" {
		return nil, true
	}
	return parseWeiField(w, s, field)
}
