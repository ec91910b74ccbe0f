// Package publish mirrors committed engine events onto NATS JetStream for
// indexers and other downstream consumers. Publishing is best-effort: the
// durable source of truth is the Postgres event log.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/observability"
)

const (
	StreamName    = "JNGLZ_EVENTS"
	subjectPrefix = "jnglz.events"
)

// Publisher drains a channel of engine outputs and publishes the envelopes.
// Subjects follow jnglz.events.{event_type}[.{market_id}].
type Publisher struct {
	js      jetstream.JetStream
	input   <-chan engine.Output
	log     zerolog.Logger
	metrics *observability.Metrics
}

func New(js jetstream.JetStream, input <-chan engine.Output, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{js: js, input: input, log: log, metrics: metrics}
}

// Run loops until ctx is cancelled or the input channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out, ok := <-p.input:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, out); err != nil {
				p.log.Warn().Int64("seq", out.Envelope.Sequence).Err(err).Msg("outbound publish failed")
				if p.metrics != nil {
					p.metrics.PublishDrops.Inc()
				}
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out engine.Output) error {
	data, err := json.Marshal(out.Envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", subjectPrefix, out.Envelope.Type)
	if out.Envelope.MarketID != nil {
		subject = fmt.Sprintf("%s.%d", subject, *out.Envelope.MarketID)
	}
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
