// Package engine implements the serialized market engine: the AMM trading
// paths, the resolution state machine, the pull-pattern withdrawal ledger and
// the multisig governance hooks. Every externally visible operation runs to
// completion under one exclusive lock and either fully commits (supplies,
// pool, flags and ledger batch together) or leaves no effect.
//
// The engine never reads the wall clock directly; time is an injected input,
// which keeps every window comparison deterministic under test.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/event"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/gov"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/ledger"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/market"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/observability"
)

// Output couples one committed operation's event envelope with its journal
// batch. The persist channel receives every output with a blocking send; the
// broadcast channel is best-effort.
type Output struct {
	Envelope event.Envelope
	Batch    *ledger.Batch
}

type positionKey struct {
	marketID uint64
	addr     common.Address
}

// Config wires an Engine.
type Config struct {
	Signers       []common.Address
	Treasury      common.Address
	ActionExpiry  time.Duration
	Params        Params
	Clock         func() time.Time
	Logger        zerolog.Logger
	Metrics       *observability.Metrics
	PersistChan   chan<- Output
	BroadcastChan chan<- Output
}

// Engine holds the entire mutable state: markets, positions, the money
// ledger and the governance queue.
type Engine struct {
	mu    sync.Mutex
	clock func() time.Time
	log   zerolog.Logger

	params   Params
	paused   bool
	treasury common.Address

	nextMarketID uint64
	markets      map[uint64]*market.Market
	marketOrder  []uint64
	positions    map[positionKey]*market.Position

	tracker   *ledger.BalanceTracker
	validator *ledger.InvariantValidator

	council      *gov.Queue
	actionExpiry time.Duration

	seq     int64
	metrics *observability.Metrics

	persistChan   chan<- Output
	broadcastChan chan<- Output
}

// New builds an engine. Governance requires at least one signer; the
// reference deployment uses three.
func New(cfg Config) (*Engine, error) {
	if cfg.ActionExpiry <= 0 {
		cfg.ActionExpiry = 72 * time.Hour
	}
	council, err := gov.NewQueue(cfg.Signers, cfg.ActionExpiry)
	if err != nil {
		return nil, fmt.Errorf("governance: %w", err)
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.Treasury == (common.Address{}) {
		return nil, fmt.Errorf("treasury address is required")
	}
	tracker := ledger.NewBalanceTracker()
	return &Engine{
		clock:         cfg.Clock,
		log:           cfg.Logger,
		params:        cfg.Params,
		treasury:      cfg.Treasury,
		nextMarketID:  1,
		markets:       make(map[uint64]*market.Market),
		positions:     make(map[positionKey]*market.Position),
		tracker:       tracker,
		validator:     ledger.NewInvariantValidator(tracker),
		council:       council,
		actionExpiry:  cfg.ActionExpiry,
		metrics:       cfg.Metrics,
		persistChan:   cfg.PersistChan,
		broadcastChan: cfg.BroadcastChan,
	}, nil
}

// --- internal plumbing -----------------------------------------------------

func (e *Engine) now() time.Time {
	return e.clock()
}

func (e *Engine) getMarket(id uint64) (*market.Market, error) {
	m, ok := e.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrMarketNotFound, id)
	}
	return m, nil
}

func (e *Engine) position(id uint64, addr common.Address) *market.Position {
	key := positionKey{marketID: id, addr: addr}
	pos, ok := e.positions[key]
	if !ok {
		pos = market.NewPosition()
		e.positions[key] = pos
	}
	return pos
}

// peekPosition returns the position without creating one.
func (e *Engine) peekPosition(id uint64, addr common.Address) (*market.Position, bool) {
	pos, ok := e.positions[positionKey{marketID: id, addr: addr}]
	return pos, ok
}

func (e *Engine) status(m *market.Market) market.Status {
	return m.Status(e.now(), e.params.Windows)
}

func (e *Engine) newBatch(ref string) *ledger.Batch {
	return ledger.NewBatch(ref, e.seq, e.now().UnixMicro())
}

// commit applies the batch, runs post-checks and emits the event. Invariant
// violations after a committed batch mean the money math itself is broken;
// that state must not keep running, so they are fatal, matching the
// reference core.
func (e *Engine) commit(op string, batch *ledger.Batch, typ event.Type, marketID *uint64, actor common.Address, payload any) {
	if batch != nil && len(batch.Journals) > 0 {
		if err := e.tracker.ApplyBatch(batch); err != nil {
			panic(fmt.Sprintf("FATAL: apply batch for %s: %v", op, err))
		}
	}
	e.postCheckInvariants(op, marketID)

	env := event.Envelope{
		Sequence:  e.seq,
		Type:      typ,
		MarketID:  marketID,
		Actor:     actor,
		Timestamp: e.now(),
		Payload:   payload,
	}
	out := Output{Envelope: env, Batch: batch}
	e.seq++

	if e.persistChan != nil {
		// Blocking send: persistence backpressure stalls the engine rather
		// than losing an event.
		e.persistChan <- out
	}
	if e.broadcastChan != nil {
		select {
		case e.broadcastChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.BroadcastDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.EngineSequence.Set(float64(e.seq))
	}
	e.log.Debug().Str("op", op).Int64("seq", env.Sequence).Msg("committed")
}

func (e *Engine) postCheckInvariants(op string, marketID *uint64) {
	if marketID != nil {
		if err := e.validator.ValidatePoolNonNegative(*marketID); err != nil {
			panic(fmt.Sprintf("FATAL: %s: %v", op, err))
		}
		if m, ok := e.markets[*marketID]; ok {
			ledgerPool := e.tracker.Balance(ledger.MarketAccount(*marketID, ledger.SubTypePool))
			if ledgerPool.Cmp(m.PoolBalance) != 0 {
				panic(fmt.Sprintf("FATAL: %s: market %d pool mirror diverged: ledger=%s market=%s",
					op, *marketID, ledgerPool, m.PoolBalance))
			}
		}
	}
	// Full scans are cheap relative to trade volume only when amortized;
	// the reference core checks globals every 1000 events.
	if e.seq > 0 && e.seq%1000 == 0 {
		if err := e.validator.ValidateZeroSum(); err != nil {
			panic(fmt.Sprintf("FATAL: %s: %v", op, err))
		}
		if err := e.validator.ValidateInternalNonNegative(); err != nil {
			panic(fmt.Sprintf("FATAL: %s: %v", op, err))
		}
	}
}

func (e *Engine) reject(op, reason string) {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
}

func (e *Engine) observe(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// Sequence returns the next event sequence the engine will assign.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// Paused reports the global pause switch.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Signers returns the current governance signer set.
func (e *Engine) Signers() []common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.council.Signers()
}
