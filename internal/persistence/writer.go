// Package persistence stores the engine's event log and journal batches in
// Postgres and replays them on restart. Writes are batched multi-row INSERTs
// with ON CONFLICT DO NOTHING, so a crash between flush and ack can replay
// the same rows harmlessly.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventRow is a row in jnglz.events.
type EventRow struct {
	Sequence  int64
	EventType string
	MarketID  *uint64
	Actor     string
	Payload   []byte // JSON-encoded event payload
	Timestamp time.Time
}

// JournalRow is a row in jnglz.journal. Amount is a decimal string; wei
// values overflow int64 and NUMERIC(78,0) holds any uint256.
type JournalRow struct {
	JournalID     string
	BatchID       string
	EventRef      string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	Amount        string
	JournalType   string
	Timestamp     int64
}

// EventLogWriter batch-writes events and journals.
type EventLogWriter struct {
	db *sql.DB
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch inserts event rows with a single multi-row statement.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}
	query := `INSERT INTO jnglz.events
		(sequence, event_type, market_id, actor, payload, timestamp)
		VALUES `
	values := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*6)
	for i, e := range events {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		var marketID any
		if e.MarketID != nil {
			marketID = int64(*e.MarketID)
		}
		args = append(args, e.Sequence, e.EventType, marketID, e.Actor, e.Payload, e.Timestamp)
	}
	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// WriteJournalBatch inserts journal rows with a single multi-row statement.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}
	query := `INSERT INTO jnglz.journal
		(journal_id, batch_id, event_ref, sequence, debit_account, credit_account, amount, journal_type, timestamp)
		VALUES `
	values := make([]string, 0, len(journals))
	args := make([]any, 0, len(journals)*9)
	for i, j := range journals {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			j.JournalID, j.BatchID, j.EventRef, j.Sequence,
			j.DebitAccount, j.CreditAccount, j.Amount, j.JournalType, j.Timestamp,
		)
	}
	query += strings.Join(values, ", ")
	query += " ON CONFLICT (journal_id) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// LatestSequence returns the highest persisted event sequence, -1 when the
// log is empty.
func (w *EventLogWriter) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM jnglz.events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query latest sequence: %w", err)
	}
	if !seq.Valid {
		return -1, nil
	}
	return seq.Int64, nil
}

// MarshalEventPayload serializes an event payload for the payload column.
func MarshalEventPayload(payload any) ([]byte, error) {
	return json.Marshal(payload)
}
