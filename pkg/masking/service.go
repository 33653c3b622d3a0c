// Package masking redacts sensitive values out of the sample rows a
// Validator returns after executing a candidate query (C8's execution
// path). Rewritten from the teacher's MCP-server-keyed pattern groups:
// resolution here is keyed by a column's Annotation.Sensitive flag rather
// than by MCP server id, since this domain has no server-scoped tool
// results, only query result rows addressed by column name.
package masking

import (
	"log/slog"

	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/models"
)

// Redacted is the literal value substituted for a sensitive column.
const Redacted = "[REDACTED]"

// Service applies built-in PII patterns and caller-configured custom
// patterns to SampleRows, plus unconditional redaction of any column an
// Annotation marks sensitive. Stateless aside from its compiled patterns,
// safe for concurrent use, kept from the teacher's
// compile-once-at-construction idiom.
type Service struct {
	enabled  bool
	patterns []CompiledPattern
}

// New compiles cfg's custom patterns alongside the built-ins. A nil cfg
// falls back to config.DefaultMaskingConfig, which is enabled; only a
// disabled cfg yields a Service whose Mask is a no-op.
func New(cfg *config.MaskingConfig) *Service {
	if cfg == nil {
		cfg = config.DefaultMaskingConfig()
	}
	patterns := make([]CompiledPattern, 0, len(builtinPatterns)+len(cfg.CustomPatterns))
	patterns = append(patterns, builtinPatterns...)
	patterns = append(patterns, compileCustomPatterns(cfg.CustomPatterns)...)

	svc := &Service{enabled: cfg.Enabled, patterns: patterns}
	slog.Info("masking service initialized", "enabled", cfg.Enabled, "patterns", len(patterns))
	return svc
}

// Mask redacts rows in place semantics (returns a new slice; does not
// mutate the caller's rows) according to annotations' sensitive columns,
// then sweeps every remaining string value through the compiled patterns.
// Satisfies validator.RowMasker.
func (s *Service) Mask(rows []map[string]any, annotations []models.Annotation) []map[string]any {
	if s == nil || !s.enabled || len(rows) == 0 {
		return rows
	}

	sensitive := sensitiveColumns(annotations)

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		masked := make(map[string]any, len(row))
		for col, val := range row {
			if sensitive[col] {
				masked[col] = Redacted
				continue
			}
			masked[col] = s.maskValue(val)
		}
		out[i] = masked
	}
	return out
}

// maskValue applies every compiled pattern to a string value; non-string
// values (numbers, bools, nested documents) pass through unchanged — the
// patterns are text-shaped PII, not structural redaction.
func (s *Service) maskValue(val any) any {
	str, ok := val.(string)
	if !ok {
		return val
	}
	for _, p := range s.patterns {
		str = p.Regex.ReplaceAllString(str, p.Replacement)
	}
	return str
}

// sensitiveColumns collects the column names marked Annotation.Sensitive=true
// on a column-level annotation.
func sensitiveColumns(annotations []models.Annotation) map[string]bool {
	out := make(map[string]bool)
	for _, a := range annotations {
		if a.IsTableAnnotation() || !a.Sensitive {
			continue
		}
		out[a.ColumnName] = true
	}
	return out
}
