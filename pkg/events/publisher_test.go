package events

import (
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/queryweave/pkg/orchestrator"
)

func TestPublisher_PublishEvent_PersistsAndNotifies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	convID := uuid.New()
	channel := ConversationChannel(convID)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO events").
		WithArgs(channel, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec("SELECT pg_notify").
		WithArgs(channel, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	p := NewPublisher(db)
	ev := orchestrator.Event{
		Kind:           orchestrator.EventProgress,
		ConversationID: convID,
		Iteration:      1,
		Progress:       &orchestrator.ProgressPayload{Stage: orchestrator.StageStarted, Progress: 0},
	}

	require.NoError(t, p.PublishEvent(t.Context(), ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_PublishEvent_RollsBackOnNotifyFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	convID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO events").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("SELECT pg_notify").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	p := NewPublisher(db)
	err = p.PublishEvent(t.Context(), orchestrator.Event{
		Kind:           orchestrator.EventError,
		ConversationID: convID,
		Error:          &orchestrator.ErrorPayload{Kind: orchestrator.KindInternal, Message: "boom"},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_Publish_NeverPanicsOnFailure(t *testing.T) {
	// Sink.Publish has no error return (spec.md §4.7 streaming model); a
	// persist failure must be swallowed, not panicked or re-raised.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(assert.AnError)

	p := NewPublisher(db)
	assert.NotPanics(t, func() {
		p.Publish(orchestrator.Event{Kind: orchestrator.EventResult, ConversationID: uuid.New()})
	})
}

func TestTruncateIfNeeded(t *testing.T) {
	t.Run("passes through a normal payload", func(t *testing.T) {
		result, err := truncateIfNeeded(`{"type":"orchestrator.result","conversation_id":"abc"}`)
		require.NoError(t, err)
		assert.Contains(t, result, "orchestrator.result")
	})

	t.Run("truncates an oversized payload", func(t *testing.T) {
		long := strings.Repeat("a", 8000)
		payload := `{"type":"orchestrator.result","conversation_id":"abc","db_event_id":7,"blob":"` + long + `"}`

		result, err := truncateIfNeeded(payload)
		require.NoError(t, err)
		assert.Less(t, len(result), 8000)
		assert.Contains(t, result, `"truncated":true`)
		assert.Contains(t, result, `"db_event_id":7`)
	})
}

func TestInjectDBEventIDAndTruncate(t *testing.T) {
	out, err := injectDBEventIDAndTruncate([]byte(`{"type":"orchestrator.progress"}`), 99)
	require.NoError(t, err)
	assert.Contains(t, out, `"db_event_id":99`)
}
