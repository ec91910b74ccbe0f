// Package server exposes the engine over HTTP/JSON plus a websocket event
// feed. Handlers are thin codecs: decode, call the engine or query service,
// map sentinel errors to status codes. Authentication and signature checks
// happen upstream at the gateway; handlers trust the actor addresses they
// are given.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/observability"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/query"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/server/ws"
)

// Server is the HTTP + websocket API server.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New registers all routes and builds the server.
func New(addr string, eng *engine.Engine, qs *query.Service, hub *ws.Hub, health *observability.HealthChecker, log zerolog.Logger, metrics *observability.Metrics) *Server {
	h := &handlers{eng: eng, qs: qs, log: log}
	mux := newInstrumentedMux(metrics)

	mux.HandleFunc("GET /healthz", health.LivenessHandler)
	mux.HandleFunc("GET /readyz", health.ReadinessHandler)

	mux.HandleFunc("GET /api/markets", h.listMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.getMarket)
	mux.HandleFunc("POST /api/markets", h.createMarket)
	mux.HandleFunc("POST /api/markets/{id}/buy", h.buy)
	mux.HandleFunc("POST /api/markets/{id}/sell", h.sell)
	mux.HandleFunc("POST /api/markets/{id}/propose", h.propose)
	mux.HandleFunc("POST /api/markets/{id}/dispute", h.dispute)
	mux.HandleFunc("POST /api/markets/{id}/vote", h.vote)
	mux.HandleFunc("POST /api/markets/{id}/finalize", h.finalize)
	mux.HandleFunc("POST /api/markets/{id}/claim", h.claim)
	mux.HandleFunc("POST /api/markets/{id}/jury-fees", h.claimJuryFees)
	mux.HandleFunc("POST /api/markets/{id}/refund", h.emergencyRefund)

	mux.HandleFunc("GET /api/markets/{id}/bond", h.proposalBond)
	mux.HandleFunc("GET /api/markets/{id}/preview/buy", h.previewBuy)
	mux.HandleFunc("GET /api/markets/{id}/preview/sell", h.previewSell)
	mux.HandleFunc("GET /api/markets/{id}/max-sellable", h.maxSellable)
	mux.HandleFunc("GET /api/markets/{id}/positions/{address}", h.getPosition)

	mux.HandleFunc("GET /api/users/{address}/pending", h.getPending)
	mux.HandleFunc("GET /api/users/{address}/markets/{id}/jury-fees", h.getPendingJuryFees)
	mux.HandleFunc("POST /api/withdrawals/bonds", h.withdrawBonds)
	mux.HandleFunc("POST /api/withdrawals/creator-fees", h.withdrawCreatorFees)

	mux.HandleFunc("GET /api/governance/actions", h.listActions)
	mux.HandleFunc("POST /api/governance/actions", h.proposeAction)
	mux.HandleFunc("POST /api/governance/actions/{id}/confirm", h.confirmAction)
	mux.HandleFunc("GET /api/governance/surplus", h.sweepableSurplus)

	if hub != nil {
		// Registered on the raw mux: the upgrade needs the original
		// ResponseWriter's Hijacker.
		mux.ServeMux.HandleFunc("GET /ws", hub.HandleWS)
	}

	handler := requestLogging(log, mux)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server starting")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogging(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			// The upgrade needs the raw ResponseWriter (Hijacker).
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", rec.status).Dur("dur", time.Since(start)).Msg("http request")
	})
}

// instrumentedMux counts requests per registered route pattern, keeping the
// metric label cardinality bounded regardless of path parameters.
type instrumentedMux struct {
	*http.ServeMux
	metrics *observability.Metrics
}

func newInstrumentedMux(metrics *observability.Metrics) *instrumentedMux {
	return &instrumentedMux{ServeMux: http.NewServeMux(), metrics: metrics}
}

func (m *instrumentedMux) HandleFunc(pattern string, fn http.HandlerFunc) {
	m.ServeMux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		if m.metrics != nil {
			m.metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
		}
	})
}
