package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/models"
)

func TestService_Mask_RedactsAnnotatedSensitiveColumn(t *testing.T) {
	svc := New(&config.MaskingConfig{Enabled: true})
	rows := []map[string]any{{"id": 1, "ssn": "123-45-6789", "name": "Jane"}}
	annotations := []models.Annotation{
		{TableName: "customers", ColumnName: "ssn", Sensitive: true},
	}

	out := svc.Mask(rows, annotations)
	require.Len(t, out, 1)
	assert.Equal(t, Redacted, out[0]["ssn"])
	assert.Equal(t, "Jane", out[0]["name"])
	assert.Equal(t, 1, out[0]["id"])
}

func TestService_Mask_AppliesBuiltinPatternsToUnannotatedColumns(t *testing.T) {
	svc := New(&config.MaskingConfig{Enabled: true})
	rows := []map[string]any{{"notes": "reach out at jane@example.com"}}

	out := svc.Mask(rows, nil)
	assert.Equal(t, "reach out at [REDACTED_EMAIL]", out[0]["notes"])
}

func TestService_Mask_NoOpWhenDisabled(t *testing.T) {
	svc := New(&config.MaskingConfig{Enabled: false})
	rows := []map[string]any{{"ssn": "123-45-6789"}}
	annotations := []models.Annotation{{TableName: "customers", ColumnName: "ssn", Sensitive: true}}

	out := svc.Mask(rows, annotations)
	assert.Equal(t, "123-45-6789", out[0]["ssn"])
}

func TestService_Mask_NilServiceIsNoOp(t *testing.T) {
	var svc *Service
	rows := []map[string]any{{"ssn": "123-45-6789"}}
	out := svc.Mask(rows, nil)
	assert.Equal(t, rows, out)
}

func TestService_Mask_TableAnnotationDoesNotRedactColumns(t *testing.T) {
	svc := New(&config.MaskingConfig{Enabled: true})
	rows := []map[string]any{{"name": "Jane"}}
	annotations := []models.Annotation{{TableName: "customers", Sensitive: true}}

	out := svc.Mask(rows, annotations)
	assert.Equal(t, "Jane", out[0]["name"])
}

func TestService_Mask_CustomPatternApplied(t *testing.T) {
	svc := New(&config.MaskingConfig{
		Enabled: true,
		CustomPatterns: []config.MaskingPattern{
			{Name: "internal_id", Pattern: `INT-\d+`, Replacement: "[REDACTED_INTERNAL_ID]"},
		},
	})
	rows := []map[string]any{{"ref": "see INT-42 for details"}}

	out := svc.Mask(rows, nil)
	assert.Equal(t, "see [REDACTED_INTERNAL_ID] for details", out[0]["ref"])
}
