package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/domain"
)

// DBTX is the subset of *sql.DB the repositories use
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type workflowEventRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewWorkflowEventRepository creates a new workflow event repository
func NewWorkflowEventRepository(db DBTX, logger *zap.Logger) *workflowEventRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &workflowEventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *workflowEventRepository) Create(ctx context.Context, event *domain.WorkflowEvent) error {
	query := `
		INSERT INTO workflow_events (id, order_reference, event_type, from_state, to_state, operator_id, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var eventDataJSON []byte
	var err error
	if event.EventData != nil {
		eventDataJSON, err = json.Marshal(event.EventData)
		if err != nil {
			return err
		}
	}

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.OrderReference,
		event.EventType,
		string(event.FromState),
		string(event.ToState),
		event.OperatorID,
		eventDataJSON,
		event.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow event",
			zap.String("order", event.OrderReference),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// Record satisfies refund.AuditLog
func (r *workflowEventRepository) Record(ctx context.Context, event *domain.WorkflowEvent) error {
	return r.Create(ctx, event)
}

func (r *workflowEventRepository) ListByOrderReference(ctx context.Context, orderRef string) ([]*domain.WorkflowEvent, error) {
	query := `
		SELECT id, order_reference, event_type, from_state, to_state, operator_id, event_data, created_at
		FROM workflow_events
		WHERE order_reference = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, domain.NormalizeOrderReference(orderRef))
	if err != nil {
		r.logger.Error("Failed to list workflow events", zap.String("order", orderRef), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var events []*domain.WorkflowEvent
	for rows.Next() {
		var event domain.WorkflowEvent
		var from, to string
		var eventDataJSON []byte

		if err := rows.Scan(
			&event.ID,
			&event.OrderReference,
			&event.EventType,
			&from,
			&to,
			&event.OperatorID,
			&eventDataJSON,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		event.FromState = domain.WorkflowState(from)
		event.ToState = domain.WorkflowState(to)

		if len(eventDataJSON) > 0 {
			if err := json.Unmarshal(eventDataJSON, &event.EventData); err != nil {
				return nil, err
			}
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}
