package events

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tarsy-labs/queryweave/pkg/orchestrator"
)

// Publisher persists each orchestrator Event to the events table and
// broadcasts it via pg_notify in the same transaction (pg_notify is
// transactional — held until COMMIT), exactly as the teacher's
// EventPublisher did for session/timeline events. It implements
// orchestrator.Sink so an Orchestrator can be configured to stream
// directly into durable, cross-process delivery.
type Publisher struct {
	db      *stdsql.DB
	timeout time.Duration
}

// NewPublisher builds a Publisher over db, which should be the *sql.DB
// from database.Client.DB().
func NewPublisher(db *stdsql.DB) *Publisher {
	return &Publisher{db: db, timeout: 5 * time.Second}
}

// Publish implements orchestrator.Sink. The orchestrator's Sink interface
// carries no error return (SPEC_FULL.md §9's explicit event-channel
// abstraction), so a persist failure is logged, never raised to the
// caller — matching the teacher's PublishSessionStatus best-effort
// pattern of continuing past a failed publish.
func (p *Publisher) Publish(event orchestrator.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.PublishEvent(ctx, event); err != nil {
		slog.Warn("failed to publish orchestrator event",
			"conversation_id", event.ConversationID, "kind", event.Kind, "error", err)
	}
}

// PublishEvent persists and broadcasts one orchestrator Event, returning
// any error instead of swallowing it — used directly by callers (and
// tests) that want to observe publish failures.
func (p *Publisher) PublishEvent(ctx context.Context, event orchestrator.Event) error {
	payload := FromOrchestratorEvent(event, time.Now().UTC())
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	channel := ConversationChannel(event.ConversationID)
	return p.persistAndNotify(ctx, channel, payloadJSON)
}

// persistAndNotify persists a pre-marshaled event to the database and
// broadcasts via NOTIFY in a single transaction.
func (p *Publisher) persistAndNotify(ctx context.Context, channel string, payloadJSON []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (channel, payload, created_at) VALUES ($1, $2, $3) RETURNING id`,
		channel, payloadJSON, time.Now(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("persist event: %w", err)
	}

	notifyPayload, err := injectDBEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event transaction: %w", err)
	}
	return nil
}

// injectDBEventIDAndTruncate adds db_event_id to the JSON payload for
// NOTIFY delivery and applies truncation if the result exceeds
// PostgreSQL's NOTIFY payload limit.
func injectDBEventIDAndTruncate(payloadJSON []byte, dbEventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = dbEventID

	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal enriched NOTIFY payload: %w", err)
	}
	return truncateIfNeeded(string(enriched))
}

// truncateIfNeeded returns payloadStr as-is if it fits within PostgreSQL's
// 8000-byte NOTIFY limit, otherwise a minimal truncation envelope with
// only the routing fields a subscriber needs to re-fetch the full row.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type           string `json:"type"`
		ConversationID string `json:"conversation_id"`
		DBEventID      *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":            routing.Type,
		"conversation_id": routing.ConversationID,
		"truncated":       true,
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	b, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("marshal truncated payload: %w", err)
	}
	return string(b), nil
}
