package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

// AnnotationRepo persists Annotation rows consumed by pkg/schemaexpert and
// pkg/masking.
type AnnotationRepo struct {
	pool *pgxpool.Pool
}

// NewAnnotationRepo constructs an AnnotationRepo over an open pool.
func NewAnnotationRepo(pool *pgxpool.Pool) *AnnotationRepo {
	return &AnnotationRepo{pool: pool}
}

// ByProvider returns every annotation registered for a provider.
func (r *AnnotationRepo) ByProvider(ctx context.Context, providerID string) ([]models.Annotation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, provider_id, target_type, table_name, column_name,
			description, business_terms, examples, relationships, date_format,
			enum_values, sensitive, primary_lookup_column, represents,
			is_searchable, search_type, aggregation, data_format, join_hints, created_by
		FROM annotations WHERE provider_id = $1`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	var out []models.Annotation
	for rows.Next() {
		var a models.Annotation
		var tableName, columnName, dateFormat, lookupCol, represents, searchType, aggregation, dataFormat *string
		var isSearchable *bool
		var joinHints []byte
		if err := rows.Scan(&a.ID, &a.ProviderID, &a.TargetType, &tableName, &columnName,
			&a.Description, &a.BusinessTerms, &a.Examples, &a.Relationships, &dateFormat,
			&a.EnumValues, &a.Sensitive, &lookupCol, &represents,
			&isSearchable, &searchType, &aggregation, &dataFormat, &joinHints, &a.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		if tableName != nil {
			a.TableName = *tableName
		}
		if columnName != nil {
			a.ColumnName = *columnName
		}
		if dateFormat != nil {
			a.DateFormat = *dateFormat
		}
		if lookupCol != nil {
			a.PrimaryLookupColumn = *lookupCol
		}
		if represents != nil {
			a.Represents = *represents
		}
		if isSearchable != nil {
			a.IsSearchable = *isSearchable
		}
		if searchType != nil {
			a.SearchType = *searchType
		}
		if aggregation != nil {
			a.Aggregation = *aggregation
		}
		if dataFormat != nil {
			a.DataFormat = *dataFormat
		}
		if len(joinHints) > 0 {
			var hint models.JoinHint
			if err := json.Unmarshal(joinHints, &hint); err == nil {
				a.JoinHint = &hint
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a new table- or column-level annotation.
func (r *AnnotationRepo) Create(ctx context.Context, a *models.Annotation) error {
	var joinHints []byte
	if a.JoinHint != nil {
		var err error
		joinHints, err = json.Marshal(a.JoinHint)
		if err != nil {
			return fmt.Errorf("marshal join hint: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO annotations (
			id, provider_id, target_type, table_name, column_name, description,
			business_terms, examples, relationships, date_format, enum_values, sensitive,
			primary_lookup_column, represents, is_searchable, search_type, aggregation,
			data_format, join_hints, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		a.ID, a.ProviderID, a.TargetType, nullIfEmpty(a.TableName), nullIfEmpty(a.ColumnName),
		a.Description, a.BusinessTerms, a.Examples, a.Relationships, nullIfEmpty(a.DateFormat),
		a.EnumValues, a.Sensitive, nullIfEmpty(a.PrimaryLookupColumn), nullIfEmpty(a.Represents),
		a.IsSearchable, nullIfEmpty(a.SearchType), nullIfEmpty(a.Aggregation),
		nullIfEmpty(a.DataFormat), joinHints, a.CreatedBy)
	if err != nil {
		return fmt.Errorf("create annotation: %w", err)
	}
	return nil
}
