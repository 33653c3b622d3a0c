// Package validator implements the Validator (C8): it runs a Provider's
// syntax check, overlays the dialect-aware dangerous-operation heuristic,
// and optionally executes the query under a caller-supplied row cap,
// masking sensitive columns in any returned sample rows. Dangerous-keyword
// lists are grounded on
// original_source/src/text2x/providers/{sql_provider,nosql_provider,
// splunk_provider}.py.
package validator

import (
	"context"
	"fmt"

	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/provider"
)

// Status is the validator's coarse verdict for one candidate query.
type Status string

const (
	StatusPassed  Status = "Passed"
	StatusFailed  Status = "Failed"
	StatusWarning Status = "Warning"
)

// StatusOf derives the coarse Status from a ValidationResult: warnings
// never fail the gate, errors always do, per spec.md §4.6.
func StatusOf(v *models.ValidationResult) Status {
	if v == nil || !v.Valid {
		return StatusFailed
	}
	if len(v.Warnings) > 0 {
		return StatusWarning
	}
	return StatusPassed
}

// RowMasker redacts sensitive values out of execution sample rows before
// they leave the validator. Implementations are nil-safe no-ops when
// unconfigured, the same pattern the teacher uses for pkg/slack.Service.
type RowMasker interface {
	Mask(rows []map[string]any, annotations []models.Annotation) []map[string]any
}

// Request asks the Validator to check (and optionally execute) one
// candidate query.
type Request struct {
	Query           string
	Dialect         Dialect
	EnableExecution bool
	RowLimit        int
}

// Validator runs syntax validation, dangerous-operation detection, and
// bounded execution for one Provider.
type Validator struct {
	provider provider.Provider
	masker   RowMasker
}

// New builds a Validator over p. masker may be nil.
func New(p provider.Provider, masker RowMasker) *Validator {
	return &Validator{provider: p, masker: masker}
}

// Validate runs the full C8 pipeline and returns the structured
// ValidationResult plus an ExecutionResult when execution ran.
func (v *Validator) Validate(ctx context.Context, req Request, annotations []models.Annotation) (*models.ValidationResult, *models.ExecutionResult, error) {
	result, err := v.provider.ValidateSyntax(ctx, req.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("validator: validate syntax: %w", err)
	}
	if result == nil {
		result = &models.ValidationResult{Valid: true}
	}

	dangerous, warning := Detect(req.Query, req.Dialect)
	if dangerous {
		result.DangerousOpFlag = true
		result.Warnings = append(result.Warnings, warning)
	}

	if !result.Valid || !req.EnableExecution || !v.provider.HasCapability(provider.CapabilityQueryExecution) {
		return result, nil, nil
	}

	if dangerous {
		result.Warnings = append(result.Warnings, "execution refused: dangerous operation")
		return result, nil, nil
	}

	exec, err := v.provider.ExecuteQuery(ctx, req.Query, req.RowLimit)
	if err != nil {
		result.Valid = false
		result.SemanticErrors = append(result.SemanticErrors, err.Error())
		return result, nil, nil
	}
	if !exec.Success {
		result.Valid = false
		result.SemanticErrors = append(result.SemanticErrors, exec.ErrorMessage)
		return result, exec, nil
	}

	if v.masker != nil {
		exec.SampleRows = v.masker.Mask(exec.SampleRows, annotations)
	}
	return result, exec, nil
}
