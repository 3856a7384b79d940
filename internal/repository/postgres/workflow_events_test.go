package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/barswebadmin/leagueops/internal/domain"
)

type mockDB struct {
	mock.Mock
}

func (m *mockDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	called := m.Called(ctx, query, args)
	res, _ := called.Get(0).(sql.Result)
	return res, called.Error(1)
}

func (m *mockDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	called := m.Called(ctx, query, args)
	rows, _ := called.Get(0).(*sql.Rows)
	return rows, called.Error(1)
}

func TestWorkflowEventRepository_Create(t *testing.T) {
	db := new(mockDB)
	var args []interface{}
	db.On("ExecContext", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "INSERT INTO workflow_events")
	}), mock.Anything).
		Run(func(a mock.Arguments) { args = a.Get(2).([]interface{}) }).
		Return(driver.RowsAffected(1), nil)

	repo := NewWorkflowEventRepository(db, nil)
	event := &domain.WorkflowEvent{
		OrderReference: "#42234",
		EventType:      "order_decided",
		FromState:      domain.StateCreated,
		ToState:        domain.StateOrderDecided,
		OperatorID:     "U0CANCEL",
		EventData:      map[string]interface{}{"channel": "C0REFUNDS"},
	}
	require.NoError(t, repo.Record(context.Background(), event))
	db.AssertExpectations(t)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	require.Len(t, args, 8)
	assert.Equal(t, event.ID, args[0])
	assert.Equal(t, "#42234", args[1])
	assert.Equal(t, "CREATED", args[3])
	assert.Equal(t, "ORDER_DECIDED", args[4])

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(args[6].([]byte), &data))
	assert.Equal(t, "C0REFUNDS", data["channel"])
}

func TestWorkflowEventRepository_CreateKeepsGivenIDs(t *testing.T) {
	db := new(mockDB)
	db.On("ExecContext", mock.Anything, mock.Anything, mock.Anything).Return(driver.RowsAffected(1), nil)

	id := uuid.New()
	at := time.Date(2024, 9, 16, 9, 0, 0, 0, time.UTC)
	event := &domain.WorkflowEvent{ID: id, CreatedAt: at, OrderReference: "#42234", EventType: "request_created", ToState: domain.StateCreated}
	require.NoError(t, NewWorkflowEventRepository(db, nil).Create(context.Background(), event))

	assert.Equal(t, id, event.ID)
	assert.Equal(t, at, event.CreatedAt)
}

func TestWorkflowEventRepository_CreateError(t *testing.T) {
	db := new(mockDB)
	db.On("ExecContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, assert.AnError)

	err := NewWorkflowEventRepository(db, nil).Create(context.Background(), &domain.WorkflowEvent{OrderReference: "#42234"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWorkflowEventRepository_ListError(t *testing.T) {
	db := new(mockDB)
	db.On("QueryContext", mock.Anything, mock.Anything, []interface{}{"#42234"}).Return(nil, assert.AnError)

	_, err := NewWorkflowEventRepository(db, nil).ListByOrderReference(context.Background(), "42234")
	assert.ErrorIs(t, err, assert.AnError)
	db.AssertExpectations(t)
}
