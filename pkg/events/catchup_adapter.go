package events

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
)

// Store reads back persisted events for catchup delivery. It implements
// CatchupQuerier directly over the events table Publisher writes to,
// replacing the teacher's ent-backed EventServiceAdapter (ent is dropped
// — see DESIGN.md) with a plain *sql.DB query.
type Store struct {
	db *stdsql.DB
}

// NewStore builds a Store over db, the same *sql.DB handle Publisher uses.
func NewStore(db *stdsql.DB) *Store {
	return &Store{db: db}
}

// GetCatchupEvents returns up to limit events on channel with id > sinceID,
// ordered oldest-first.
func (s *Store) GetCatchupEvents(ctx context.Context, channel string, sinceID int64, limit int) ([]CatchupEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM events WHERE channel = $1 AND id > $2 ORDER BY id ASC LIMIT $3`,
		channel, sinceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query catchup events: %w", err)
	}
	defer rows.Close()

	var result []CatchupEvent
	for rows.Next() {
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan catchup event: %w", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal catchup event %d: %w", id, err)
		}
		result = append(result, CatchupEvent{ID: id, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catchup events: %w", err)
	}
	return result, nil
}
