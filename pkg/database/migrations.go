package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// This powers the Keyword retrieval strategy's ts_rank/plainto_tsquery
// lookups over examples.natural_language_query (spec.md §4.4).
func CreateGINIndexes(ctx context.Context, db *stdsql.DB) error {
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_examples_question_gin
		ON examples USING gin(to_tsvector('english', natural_language_query))`)
	if err != nil {
		return fmt.Errorf("failed to create examples question GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_turns_user_input_gin
		ON turns USING gin(to_tsvector('english', user_input))`)
	if err != nil {
		return fmt.Errorf("failed to create turns user_input GIN index: %w", err)
	}

	return nil
}
