package sqlprovider

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunViaStdlib_Valid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("EXPLAIN SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow("Seq Scan on orders"))

	result, err := DryRunViaStdlib(context.Background(), db, "SELECT * FROM orders")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDryRunViaStdlib_SyntaxError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("EXPLAIN SELEKT").
		WillReturnError(assert.AnError)

	result, err := DryRunViaStdlib(context.Background(), db, "SELEKT * FROM orders")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.SyntaxErrors)
}
