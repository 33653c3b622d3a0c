package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

// TurnRepo persists Turn rows. TurnNumber monotonicity per conversation is
// enforced by pkg/conversation, which serializes writers via pkg/convlock
// before calling NextTurnNumber + Create.
type TurnRepo struct {
	pool *pgxpool.Pool
}

// NewTurnRepo constructs a TurnRepo over an open pool.
func NewTurnRepo(pool *pgxpool.Pool) *TurnRepo {
	return &TurnRepo{pool: pool}
}

// NextTurnNumber returns the next 1-indexed turn number for a conversation.
// Must be called while holding that conversation's convlock.
func (r *TurnRepo) NextTurnNumber(ctx context.Context, conversationID uuid.UUID) (int, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(turn_number), 0) + 1 FROM turns WHERE conversation_id = $1`,
		conversationID)
	var next int
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("next turn number: %w", err)
	}
	return next, nil
}

// Create inserts a completed Turn.
func (r *TurnRepo) Create(ctx context.Context, t *models.Turn) error {
	confidence, err := json.Marshal(t.Confidence)
	if err != nil {
		return fmt.Errorf("marshal confidence: %w", err)
	}
	reasoning, err := json.Marshal(t.Reasoning)
	if err != nil {
		return fmt.Errorf("marshal reasoning trace: %w", err)
	}
	var validation, execution, schemaCtx, examplesUsed any
	if t.Validation != nil {
		if validation, err = json.Marshal(t.Validation); err != nil {
			return fmt.Errorf("marshal validation: %w", err)
		}
	}
	if t.Execution != nil {
		if execution, err = json.Marshal(t.Execution); err != nil {
			return fmt.Errorf("marshal execution: %w", err)
		}
	}
	if t.SchemaContext != nil {
		if schemaCtx, err = json.Marshal(t.SchemaContext); err != nil {
			return fmt.Errorf("marshal schema context: %w", err)
		}
	}
	if len(t.ExamplesUsed) > 0 {
		if examplesUsed, err = json.Marshal(t.ExamplesUsed); err != nil {
			return fmt.Errorf("marshal examples used: %w", err)
		}
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO turns (
			id, conversation_id, turn_number, user_input, generated_query,
			confidence_score, confidence_breakdown, iterations,
			clarification_needed, clarification_question,
			validation_result, execution_result, reasoning_trace,
			schema_context, rag_examples_used
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at`,
		t.ID, t.ConversationID, t.TurnNumber, t.UserInput, t.GeneratedQuery,
		t.Confidence.Value, confidence, t.Iterations,
		t.ClarificationNeeded, nullIfEmpty(t.ClarificationQuestion),
		validation, execution, reasoning,
		schemaCtx, examplesUsed,
	)
	if err := row.Scan(&t.CreatedAt); err != nil {
		return fmt.Errorf("create turn: %w", err)
	}
	return nil
}

// ListByConversation returns all turns for a conversation, ordered by
// turn_number ascending.
func (r *TurnRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*models.Turn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, turn_number, user_input, generated_query,
			confidence_score, iterations, clarification_needed,
			clarification_question, created_at
		FROM turns WHERE conversation_id = $1 ORDER BY turn_number ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []*models.Turn
	for rows.Next() {
		var t models.Turn
		var clarification *string
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.TurnNumber, &t.UserInput,
			&t.GeneratedQuery, &t.Confidence.Value, &t.Iterations,
			&t.ClarificationNeeded, &clarification, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if clarification != nil {
			t.ClarificationQuestion = *clarification
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// Get fetches one turn by ID.
func (r *TurnRepo) Get(ctx context.Context, id uuid.UUID) (*models.Turn, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, conversation_id, turn_number, user_input, generated_query,
			confidence_score, iterations, clarification_needed,
			clarification_question, created_at
		FROM turns WHERE id = $1`, id)

	var t models.Turn
	var clarification *string
	if err := row.Scan(&t.ID, &t.ConversationID, &t.TurnNumber, &t.UserInput,
		&t.GeneratedQuery, &t.Confidence.Value, &t.Iterations,
		&t.ClarificationNeeded, &clarification, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: turn %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get turn: %w", err)
	}
	if clarification != nil {
		t.ClarificationQuestion = *clarification
	}
	return &t, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
