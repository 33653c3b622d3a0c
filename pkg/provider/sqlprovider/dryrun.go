package sqlprovider

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

// DryRunViaStdlib runs query's EXPLAIN plan through a plain database/sql
// handle instead of the provider's pgx pool. Some deployments front their
// analytics database through a proxy that only speaks the database/sql
// wire protocol (PgBouncer in statement mode, MySQL-compatible dialects);
// this path keeps those usable without a dedicated provider.
func DryRunViaStdlib(ctx context.Context, db *sql.DB, query string) (*models.ValidationResult, error) {
	rows, err := db.QueryContext(ctx, "EXPLAIN "+query)
	if err != nil {
		return &models.ValidationResult{Valid: false, SyntaxErrors: []string{err.Error()}}, nil
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dry run query: %w", err)
	}
	return &models.ValidationResult{Valid: true}, nil
}
