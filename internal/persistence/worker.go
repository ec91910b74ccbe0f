package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/observability"
)

// Worker drains the engine's persist channel and batch-writes to Postgres.
// The engine sends on that channel blockingly, so when this worker falls
// behind the engine stalls instead of losing events. Flushes happen when the
// batch fills or the flush timeout fires, whichever is first.
type Worker struct {
	writer       *EventLogWriter
	input        <-chan engine.Output
	batchSize    int
	flushTimeout time.Duration
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewWorker(db *sql.DB, input <-chan engine.Output, batchSize int, flushTimeout time.Duration, log zerolog.Logger, metrics *observability.Metrics) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          log,
		metrics:      metrics,
	}
}

// Run loops until ctx is cancelled or the input channel closes, flushing any
// buffered rows on the way out.
func (w *Worker) Run(ctx context.Context) error {
	events := make([]EventRow, 0, w.batchSize)
	journals := make([]JournalRow, 0, w.batchSize*2)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(events) > 0 {
				// Shutdown flush runs on a fresh context; ctx is already dead.
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				w.flush(flushCtx, events, journals)
				cancel()
			}
			return ctx.Err()

		case out, ok := <-w.input:
			if !ok {
				if len(events) > 0 {
					w.flush(context.Background(), events, journals)
				}
				return nil
			}
			ev, rows, err := convertOutput(out)
			if err != nil {
				w.log.Error().Int64("seq", out.Envelope.Sequence).Err(err).Msg("encode output")
				if w.metrics != nil {
					w.metrics.PersistErrors.WithLabelValues("encode").Inc()
				}
				continue
			}
			events = append(events, ev)
			journals = append(journals, rows...)

			if len(events) >= w.batchSize {
				w.flushWithRetry(ctx, events, journals)
				events = events[:0]
				journals = journals[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(events) > 0 {
				w.flushWithRetry(ctx, events, journals)
				events = events[:0]
				journals = journals[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds or
// the context dies. The worker never drops a buffered event.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, journals []JournalRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().Int("attempt", attempt).Dur("backoff", backoff).
				Int("events", len(events)).Msg("persistence retry")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
		if err := w.flush(ctx, events, journals); err == nil {
			return
		} else if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("flush").Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, events []EventRow, journals []JournalRow) error {
	if err := w.writer.WriteEventBatch(ctx, events); err != nil {
		w.log.Error().Err(err).Int("events", len(events)).Msg("write event batch")
		return err
	}
	if err := w.writer.WriteJournalBatch(ctx, journals); err != nil {
		w.log.Error().Err(err).Int("journals", len(journals)).Msg("write journal batch")
		return err
	}
	if w.metrics != nil {
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		w.metrics.PersistJournalsWritten.Add(float64(len(journals)))
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
	}
	return nil
}

func convertOutput(out engine.Output) (EventRow, []JournalRow, error) {
	payload, err := MarshalEventPayload(out.Envelope.Payload)
	if err != nil {
		return EventRow{}, nil, err
	}
	ev := EventRow{
		Sequence:  out.Envelope.Sequence,
		EventType: string(out.Envelope.Type),
		MarketID:  out.Envelope.MarketID,
		Actor:     out.Envelope.Actor.Hex(),
		Payload:   payload,
		Timestamp: out.Envelope.Timestamp,
	}
	if out.Batch == nil {
		return ev, nil, nil
	}
	rows := make([]JournalRow, 0, len(out.Batch.Journals))
	for _, j := range out.Batch.Journals {
		rows = append(rows, JournalRow{
			JournalID:     j.JournalID.String(),
			BatchID:       j.BatchID.String(),
			EventRef:      j.EventRef,
			Sequence:      j.Sequence,
			DebitAccount:  j.DebitAccount.AccountPath(),
			CreditAccount: j.CreditAccount.AccountPath(),
			Amount:        j.Amount.String(),
			JournalType:   j.JournalType.String(),
			Timestamp:     j.Timestamp,
		})
	}
	return ev, rows, nil
}
