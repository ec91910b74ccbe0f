package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/fixedpoint"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/market"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/observability"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/query"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/testutil"
)

func newTestServer(t *testing.T) (http.Handler, *engine.Engine, *testutil.Clock) {
	t.Helper()
	clk := testutil.NewClock()
	eng, err := engine.New(engine.Config{
		Signers:  testutil.Signers(),
		Treasury: testutil.Treasury(),
		Params:   engine.DefaultParams(),
		Clock:    clk.Now,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	srv := New(":0", eng, query.NewService(eng), nil, observability.NewHealthChecker(), zerolog.Nop(), nil)
	return srv.httpServer.Handler, eng, clk
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// ============================================================================
// Test: market lifecycle over HTTP
// ============================================================================

func TestCreateMarket_HTTP(t *testing.T) {
	h, _, clk := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/markets", map[string]any{
		"creator":    testutil.Addr(0x0C).Hex(),
		"question":   "Will it rain tomorrow?",
		"expiry":     clk.Now().Add(24 * time.Hour),
		"heat_level": "CRACK",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decodeResponse(t, rec)["market_id"]; got != float64(1) {
		t.Errorf("market_id = %v, want 1", got)
	}
}

func TestCreateMarket_WithFirstBet(t *testing.T) {
	h, eng, clk := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/markets", map[string]any{
		"creator":    testutil.Addr(0x0C).Hex(),
		"question":   "q",
		"expiry":     clk.Now().Add(24 * time.Hour),
		"heat_level": "CRACK",
		"buy": map[string]any{
			"is_yes":     true,
			"amount_wei": fixedpoint.Units(100).String(),
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decodeResponse(t, rec)["shares"]; got != fixedpoint.Units(19700).String() {
		t.Errorf("shares = %v, want %s", got, fixedpoint.Units(19700))
	}
	pos, err := eng.Position(testutil.Addr(0x0C), 1)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos.YesShares.Sign() == 0 {
		t.Error("first bet not applied")
	}
}

func TestCreateMarket_Rejections(t *testing.T) {
	h, _, clk := newTestServer(t)
	base := map[string]any{
		"creator":    testutil.Addr(0x0C).Hex(),
		"question":   "q",
		"expiry":     clk.Now().Add(24 * time.Hour),
		"heat_level": "CRACK",
	}

	bad := func(mutate func(map[string]any)) map[string]any {
		m := make(map[string]any, len(base)+1)
		for k, v := range base {
			m[k] = v
		}
		mutate(m)
		return m
	}

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"bad heat", bad(func(m map[string]any) { m["heat_level"] = "VOLCANIC" }), http.StatusBadRequest},
		{"bad creator", bad(func(m map[string]any) { m["creator"] = "zz" }), http.StatusBadRequest},
		{"past expiry", bad(func(m map[string]any) { m["expiry"] = clk.Now().Add(-time.Hour) }), http.StatusBadRequest},
		{"unknown field", bad(func(m map[string]any) { m["surprise"] = 1 }), http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := doJSON(t, h, http.MethodPost, "/api/markets", tc.body)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d (body %s)", tc.name, rec.Code, tc.want, rec.Body)
		}
	}
}

func TestBuy_HTTP(t *testing.T) {
	h, eng, clk := newTestServer(t)
	if _, err := eng.CreateMarket(testutil.Addr(0x0C), "q", "", "", "",
		clk.Now().Add(24*time.Hour), market.HeatCrack); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/markets/1/buy", map[string]any{
		"address":    testutil.Addr(0x01).Hex(),
		"is_yes":     true,
		"amount_wei": fixedpoint.Units(100).String(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	body := decodeResponse(t, rec)
	if body["shares"] != fixedpoint.Units(19700).String() {
		t.Errorf("shares = %v", body["shares"])
	}
}

func TestBuy_ErrorMapping(t *testing.T) {
	h, eng, clk := newTestServer(t)
	if _, err := eng.CreateMarket(testutil.Addr(0x0C), "q", "", "", "",
		clk.Now().Add(24*time.Hour), market.HeatCrack); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	cases := []struct {
		name string
		path string
		body map[string]any
		want int
	}{
		{"unknown market", "/api/markets/99/buy", map[string]any{
			"address": testutil.Addr(0x01).Hex(), "is_yes": true,
			"amount_wei": fixedpoint.Units(1).String()}, http.StatusNotFound},
		{"below min bet", "/api/markets/1/buy", map[string]any{
			"address": testutil.Addr(0x01).Hex(), "is_yes": true,
			"amount_wei": "1"}, http.StatusBadRequest},
		{"negative amount", "/api/markets/1/buy", map[string]any{
			"address": testutil.Addr(0x01).Hex(), "is_yes": true,
			"amount_wei": "-5"}, http.StatusBadRequest},
		{"bad market id", "/api/markets/abc/buy", map[string]any{
			"address": testutil.Addr(0x01).Hex(), "is_yes": true,
			"amount_wei": fixedpoint.Units(1).String()}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := doJSON(t, h, http.MethodPost, tc.path, tc.body)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d (body %s)", tc.name, rec.Code, tc.want, rec.Body)
		}
	}
}

func TestGetMarket_HTTP(t *testing.T) {
	h, eng, clk := newTestServer(t)
	if _, err := eng.CreateMarket(testutil.Addr(0x0C), "Will it rain?", "", "", "",
		clk.Now().Add(24*time.Hour), market.HeatCrack); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/markets/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeResponse(t, rec)["question"]; got != "Will it rain?" {
		t.Errorf("question = %v", got)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/markets/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing market: status = %d, want 404", rec.Code)
	}
}

// ============================================================================
// Test: conflict mapping on resolution
// ============================================================================

func TestPropose_ConflictOnSecondProposal(t *testing.T) {
	h, eng, clk := newTestServer(t)
	creator := testutil.Addr(0x0C)
	id, err := eng.CreateMarket(creator, "q", "", "", "",
		clk.Now().Add(24*time.Hour), market.HeatCrack)
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if _, err := eng.Buy(testutil.Addr(0x01), id, true, fixedpoint.Units(100), nil); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if _, err := eng.Buy(testutil.Addr(0x02), id, false, fixedpoint.Units(50), nil); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	clk.Advance(24*time.Hour + time.Second)

	bond, _ := eng.ProposalBond(id)
	payment := bond.Add(bond, engine.DefaultParams().ResolutionFee)
	body := map[string]any{
		"proposer":    creator.Hex(),
		"outcome":     true,
		"payment_wei": payment.String(),
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/markets/1/propose", body); rec.Code != http.StatusOK {
		t.Fatalf("first proposal: status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/markets/1/propose", body); rec.Code != http.StatusConflict {
		t.Errorf("second proposal: status = %d, want 409", rec.Code)
	}
}

// ============================================================================
// Test: governance endpoints
// ============================================================================

func TestGovernanceActions_HTTP(t *testing.T) {
	h, _, _ := newTestServer(t)
	signers := testutil.Signers()

	rec := doJSON(t, h, http.MethodPost, "/api/governance/actions", map[string]any{
		"signer": signers[0].Hex(),
		"action": map[string]any{"type": "pause"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("propose: status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/governance/actions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	actions := decodeResponse(t, rec)["actions"].([]any)
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}

	// A non-signer cannot confirm.
	rec = doJSON(t, h, http.MethodPost, "/api/governance/actions/1/confirm", map[string]any{
		"address": testutil.Addr(0x01).Hex(),
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("outsider confirm: status = %d, want 403", rec.Code)
	}

	// Unknown action types never reach the engine.
	rec = doJSON(t, h, http.MethodPost, "/api/governance/actions", map[string]any{
		"signer": signers[0].Hex(),
		"action": map[string]any{"type": "self_destruct"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad action type: status = %d, want 400", rec.Code)
	}
}

// ============================================================================
// Test: health endpoints
// ============================================================================

func TestHealthEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t)
	if rec := doJSON(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	// Readiness starts false until the daemon flips it.
	if rec := doJSON(t, h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz = %d, want 503 before ready", rec.Code)
	}
}
