package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

// ExampleRepo persists Example rows used by pkg/retrieval. Grounded on
// original_source/src/text2x/repositories/rag.py's method surface
// (get_by_provider, get_approved, mark_reviewed).
type ExampleRepo struct {
	pool *pgxpool.Pool
}

// NewExampleRepo constructs an ExampleRepo over an open pool.
func NewExampleRepo(pool *pgxpool.Pool) *ExampleRepo {
	return &ExampleRepo{pool: pool}
}

// Create inserts a new Example with the status given in e.Status.
func (r *ExampleRepo) Create(ctx context.Context, e *models.Example) error {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO examples (
			id, provider_id, natural_language_query, generated_query,
			is_good_example, status, involved_tables, query_intent, complexity_level,
			source_conversation_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		e.ID, e.ProviderID, e.NaturalLanguageQuery, e.GeneratedQuery,
		e.IsGoodExample, e.Status, e.InvolvedTables, e.QueryIntent, e.ComplexityLevel,
		e.SourceConversationID,
	)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("create example: %w", err)
	}
	return nil
}

// ApprovedByProvider returns every approved example for a provider, used
// to seed in-process retrieval strategies (schema-aware/intent-filtered
// scan the full approved set; keyword/vector query the database directly).
func (r *ExampleRepo) ApprovedByProvider(ctx context.Context, providerID string) ([]*models.Example, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, provider_id, natural_language_query, generated_query,
			is_good_example, status, involved_tables, query_intent, complexity_level,
			expert_corrected_query, embedding, embeddings_generated, reviewed_at
		FROM examples
		WHERE provider_id = $1 AND status = 'approved'`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list approved examples: %w", err)
	}
	defer rows.Close()

	var examples []*models.Example
	for rows.Next() {
		e, err := scanExample(rows)
		if err != nil {
			return nil, err
		}
		examples = append(examples, e)
	}
	return examples, rows.Err()
}

// KeywordSearch ranks approved examples by Postgres full-text relevance
// against the natural language query, per spec.md §4.4's Keyword strategy.
func (r *ExampleRepo) KeywordSearch(ctx context.Context, providerID, query string, limit int) ([]*models.Example, []float64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, provider_id, natural_language_query, generated_query,
			is_good_example, status, involved_tables, query_intent, complexity_level,
			expert_corrected_query, embedding, embeddings_generated, reviewed_at,
			ts_rank(to_tsvector('english', natural_language_query), plainto_tsquery('english', $2)) AS rank
		FROM examples
		WHERE provider_id = $1 AND status = 'approved'
			AND to_tsvector('english', natural_language_query) @@ plainto_tsquery('english', $2)
		ORDER BY rank DESC
		LIMIT $3`, providerID, query, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var examples []*models.Example
	var scores []float64
	for rows.Next() {
		var rank float64
		e, err := scanExampleWithRank(rows, &rank)
		if err != nil {
			return nil, nil, err
		}
		examples = append(examples, e)
		scores = append(scores, rank)
	}
	return examples, scores, rows.Err()
}

// ByQuestionAndConversation finds an existing example derived from the
// same natural-language question within a conversation, so the Feedback
// Router can update it in place instead of creating a duplicate, per
// spec.md §4.8.
func (r *ExampleRepo) ByQuestionAndConversation(ctx context.Context, conversationID uuid.UUID, question string) (*models.Example, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, provider_id, natural_language_query, generated_query,
			is_good_example, status, involved_tables, query_intent, complexity_level,
			expert_corrected_query, embedding, embeddings_generated, reviewed_at
		FROM examples WHERE source_conversation_id = $1 AND natural_language_query = $2
		ORDER BY created_at DESC LIMIT 1`, conversationID, question)

	e, err := scanExample(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: example for conversation %s", ErrNotFound, conversationID)
		}
		return nil, err
	}
	return e, nil
}

// SetStatus updates an example's status, is_good_example flag, and
// embeddings_generated flag in one write, used by the Feedback Router to
// update an existing example instead of creating a duplicate, and by the
// Review Service to flip a superseded example's good-example flag.
func (r *ExampleRepo) SetStatus(ctx context.Context, id uuid.UUID, status models.ExampleStatus, isGoodExample bool, resetEmbeddingsGenerated bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE examples SET status = $2, is_good_example = $3,
			embeddings_generated = CASE WHEN $4 THEN false ELSE embeddings_generated END,
			updated_at = now()
		WHERE id = $1`, id, status, isGoodExample, resetEmbeddingsGenerated)
	if err != nil {
		return fmt.Errorf("set example status: %w", err)
	}
	return nil
}

// Get fetches one example by ID.
func (r *ExampleRepo) Get(ctx context.Context, id uuid.UUID) (*models.Example, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, provider_id, natural_language_query, generated_query,
			is_good_example, status, involved_tables, query_intent, complexity_level,
			expert_corrected_query, embedding, embeddings_generated, reviewed_at
		FROM examples WHERE id = $1`, id)

	e, err := scanExample(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: example %s", ErrNotFound, id)
		}
		return nil, err
	}
	return e, nil
}

// MarkReviewed records a reviewer's decision, mirroring
// RAGExample.mark_reviewed in original_source.
func (r *ExampleRepo) MarkReviewed(ctx context.Context, id uuid.UUID, reviewer string, status models.ExampleStatus, correctedQuery, notes string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE examples SET
			status = $2, reviewed_by = $3, reviewed_at = now(),
			expert_corrected_query = NULLIF($4, ''), review_notes = NULLIF($5, ''),
			updated_at = now()
		WHERE id = $1`, id, status, reviewer, correctedQuery, notes)
	if err != nil {
		return fmt.Errorf("mark example reviewed: %w", err)
	}
	return nil
}

// SetEmbedding stores a generated embedding vector for an example.
func (r *ExampleRepo) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE examples SET embedding = $2, embeddings_generated = true, updated_at = now() WHERE id = $1`,
		id, embedding)
	if err != nil {
		return fmt.Errorf("set example embedding: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExample(row rowScanner) (*models.Example, error) {
	var e models.Example
	var corrected *string
	if err := row.Scan(&e.ID, &e.ProviderID, &e.NaturalLanguageQuery, &e.GeneratedQuery,
		&e.IsGoodExample, &e.Status, &e.InvolvedTables, &e.QueryIntent, &e.ComplexityLevel,
		&corrected, &e.Embedding, &e.EmbeddingsGenerated, &e.ReviewedAt); err != nil {
		return nil, fmt.Errorf("scan example: %w", err)
	}
	if corrected != nil {
		e.ExpertCorrectedQuery = *corrected
	}
	return &e, nil
}

func scanExampleWithRank(row rowScanner, rank *float64) (*models.Example, error) {
	var e models.Example
	var corrected *string
	if err := row.Scan(&e.ID, &e.ProviderID, &e.NaturalLanguageQuery, &e.GeneratedQuery,
		&e.IsGoodExample, &e.Status, &e.InvolvedTables, &e.QueryIntent, &e.ComplexityLevel,
		&corrected, &e.Embedding, &e.EmbeddingsGenerated, &e.ReviewedAt, rank); err != nil {
		return nil, fmt.Errorf("scan example with rank: %w", err)
	}
	if corrected != nil {
		e.ExpertCorrectedQuery = *corrected
	}
	return &e, nil
}
