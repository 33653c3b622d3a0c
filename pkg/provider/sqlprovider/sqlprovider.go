// Package sqlprovider implements pkg/provider.Provider over a SQL
// database via pgx, grounded on
// original_source/src/text2x/providers/sql_provider.py: dialect-aware
// connection string, statement-timeout-at-connect, and the same
// capability set (schema introspection, validation, execution,
// explanation — no cost estimation for SQL).
package sqlprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/provider"
)

// Provider queries a Postgres-compatible database.
type Provider struct {
	cfg     *config.ProviderConfig
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker
}

var _ provider.Provider = (*Provider)(nil)

// New connects to the configured database and wraps query execution in a
// circuit breaker so a misbehaving backend can't cascade failures through
// the orchestrator (grounded on jordigilh-kubernaut's use of gobreaker).
func New(ctx context.Context, cfg *config.ProviderConfig, password string) (*Provider, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.Username, password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse sql provider dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect sql provider: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sqlprovider:" + cfg.ID,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Provider{cfg: cfg, pool: pool, breaker: breaker}, nil
}

// ID returns the configured provider ID.
func (p *Provider) ID() string { return p.cfg.ID }

// QueryLanguage reports the generated-query language for this provider.
func (p *Provider) QueryLanguage() string { return "SQL" }

// Capabilities lists what this provider supports.
func (p *Provider) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapabilitySchemaIntrospection,
		provider.CapabilityQueryValidation,
		provider.CapabilityQueryExecution,
		provider.CapabilityQueryExplanation,
		provider.CapabilityDryRun,
	}
}

// HasCapability reports whether c is in Capabilities().
func (p *Provider) HasCapability(c provider.Capability) bool {
	return provider.HasCapability(p.Capabilities(), c)
}

// GetSchema introspects tables, columns, and foreign keys from
// information_schema.
func (p *Provider) GetSchema(ctx context.Context) (*models.SchemaContext, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES'
		FROM information_schema.columns c
		WHERE c.table_schema = 'public'
		ORDER BY c.table_name, c.ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("introspect schema: %w", err)
	}
	defer rows.Close()

	tablesByName := map[string]*models.Table{}
	var order []string
	for rows.Next() {
		var tableName, columnName, dataType string
		var nullable bool
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan schema row: %w", err)
		}
		t, ok := tablesByName[tableName]
		if !ok {
			t = &models.Table{Name: tableName}
			tablesByName[tableName] = t
			order = append(order, tableName)
		}
		t.Columns = append(t.Columns, models.Column{Name: columnName, DataType: dataType, Nullable: nullable})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fkRows, err := p.pool.Query(ctx, `
		SELECT
			tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
		JOIN information_schema.constraint_column_usage ccu ON tc.constraint_name = ccu.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY'`)
	if err != nil {
		return nil, fmt.Errorf("introspect foreign keys: %w", err)
	}
	defer fkRows.Close()
	for fkRows.Next() {
		var table, column, refTable, refColumn string
		if err := fkRows.Scan(&table, &column, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("scan fk row: %w", err)
		}
		if t, ok := tablesByName[table]; ok {
			t.ForeignKeys = append(t.ForeignKeys, models.ForeignKey{
				Column: column, ReferencedTable: refTable, ReferencedCol: refColumn,
			})
		}
	}

	schema := &models.SchemaContext{}
	for _, name := range order {
		schema.Tables = append(schema.Tables, *tablesByName[name])
	}
	return schema, fkRows.Err()
}

// ValidateSyntax asks Postgres to parse (but not execute) the query via
// EXPLAIN, which rejects syntactically invalid SQL without side effects.
func (p *Provider) ValidateSyntax(ctx context.Context, query string) (*models.ValidationResult, error) {
	_, err := p.pool.Query(ctx, "EXPLAIN "+query)
	if err != nil {
		return &models.ValidationResult{Valid: false, SyntaxErrors: []string{err.Error()}}, nil
	}
	return &models.ValidationResult{Valid: true}, nil
}

// ExecuteQuery runs query through the circuit breaker. The row limit is
// applied by a LIMIT on a wrapping SELECT; the configured QueryTimeout is
// applied via "SET LOCAL statement_timeout" inside the same transaction so
// the timeout never leaks to other callers of the pool.
func (p *Provider) ExecuteQuery(ctx context.Context, query string, limit int) (*models.ExecutionResult, error) {
	if limit <= 0 || limit > p.cfg.DefaultRowLimit {
		limit = p.cfg.DefaultRowLimit
	}

	start := time.Now()
	result, err := p.breaker.Execute(func() (any, error) {
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback(ctx)

		timeoutMs := p.cfg.QueryTimeout.Milliseconds()
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeoutMs)); err != nil {
			return nil, err
		}

		rows, err := tx.Query(ctx, fmt.Sprintf("SELECT * FROM (%s) _bounded LIMIT %d", query, limit))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		var sample []map[string]any
		count := 0
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return nil, err
			}
			row := make(map[string]any, len(fields))
			for i, f := range fields {
				row[string(f.Name)] = values[i]
			}
			sample = append(sample, row)
			count++
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return sample, tx.Commit(ctx)
	})

	elapsed := time.Since(start)
	if err != nil {
		return &models.ExecutionResult{Success: false, ErrorMessage: err.Error(), ExecutionTimeMs: elapsed.Milliseconds()}, nil
	}

	sample, _ := result.([]map[string]any)
	return &models.ExecutionResult{
		Success:         true,
		RowCount:        len(sample),
		ExecutionTimeMs: elapsed.Milliseconds(),
		SampleRows:      sample,
	}, nil
}

// ExplainQuery returns the Postgres query plan as text.
func (p *Provider) ExplainQuery(ctx context.Context, query string) (string, error) {
	rows, err := p.pool.Query(ctx, "EXPLAIN "+query)
	if err != nil {
		return "", fmt.Errorf("explain query: %w", err)
	}
	defer rows.Close()

	var plan string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", fmt.Errorf("scan explain line: %w", err)
		}
		plan += line + "\n"
	}
	return plan, rows.Err()
}

// EstimateCost is unsupported for SQL providers; callers should check
// HasCapability before calling.
func (p *Provider) EstimateCost(ctx context.Context, query string) (float64, error) {
	return 0, fmt.Errorf("sqlprovider: %w", provider.ErrUnsupported)
}

// Close releases the connection pool.
func (p *Provider) Close() {
	p.pool.Close()
}
