package models

// SchemaContext is the subset of a provider's schema surfaced to the query
// builder for one turn: the tables the Schema Expert (C5) judged relevant,
// expanded by foreign-key closure and join hints, enriched with
// annotations.
type SchemaContext struct {
	Tables         []Table      `json:"tables"`
	Annotations    []Annotation `json:"annotations,omitempty"`
	SuggestedJoins []string     `json:"suggested_joins,omitempty"`
}

// Table describes one table (or collection, or sourcetype) surfaced to the
// query builder.
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
	Relevance   float64      `json:"relevance,omitempty"`
}

// Column describes one column within a Table.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// ForeignKey records a join path from one table/column to another, used by
// the Schema Expert's closure expansion (spec.md §4.3 steps 4-5).
type ForeignKey struct {
	Column          string `json:"column"`
	ReferencedTable string `json:"referenced_table"`
	ReferencedCol   string `json:"referenced_column"`
}

// AnnotationTargetType distinguishes table-level from column-level
// Annotations.
type AnnotationTargetType string

const (
	AnnotationTargetTable  AnnotationTargetType = "table"
	AnnotationTargetColumn AnnotationTargetType = "column"
)

// Annotation is a user-provided hint attached to a table or column that
// helps the LLM understand the schema and helps the query builder choose
// search/aggregation strategies. Field-for-field grounded on
// original_source/src/text2x/models/annotation.py's SchemaAnnotation.
type Annotation struct {
	ID         string               `json:"id"`
	ProviderID string               `json:"provider_id"`
	TargetType AnnotationTargetType `json:"target_type"`
	TableName  string               `json:"table_name,omitempty"`
	ColumnName string               `json:"column_name,omitempty"`

	Description    string   `json:"description"`
	BusinessTerms  []string `json:"business_terms,omitempty"`
	Examples       []string `json:"examples,omitempty"`
	Relationships  []string `json:"relationships,omitempty"`
	DateFormat     string   `json:"date_format,omitempty"`
	EnumValues     []string `json:"enum_values,omitempty"`
	Sensitive      bool     `json:"sensitive"`

	// Table-level query-generation hints.
	PrimaryLookupColumn string `json:"primary_lookup_column,omitempty"`
	Represents          string `json:"represents,omitempty"`

	// Column-level query-generation hints.
	IsSearchable bool   `json:"is_searchable,omitempty"`
	SearchType   string `json:"search_type,omitempty"`
	Aggregation  string `json:"aggregation,omitempty"`
	DataFormat   string `json:"data_format,omitempty"`

	JoinHint *JoinHint `json:"join_hints,omitempty"`

	CreatedBy string `json:"created_by"`
}

// JoinHint is a join-path suggestion attached to a column annotation.
type JoinHint struct {
	TargetTable string `json:"target_table"`
	JoinColumn  string `json:"join_column"`
	Cardinality string `json:"cardinality"`
}

// IsTableAnnotation reports whether this annotation targets a table as a
// whole rather than a single column.
func (a Annotation) IsTableAnnotation() bool {
	return a.TargetType == AnnotationTargetTable
}
