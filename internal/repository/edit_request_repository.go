package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/pkg/database"
)

const (
	editRequestColumns = `id, record_id, batch_id, requested_by, previous_status, proposed_status, reason, status, admin_notes, resolved_by, created_at, resolved_at`
	onePendingIndex    = "attendance_edit_requests_one_pending"
)

// EditRequestRepository persists attendance edit requests.
type EditRequestRepository struct {
	db *sqlx.DB
}

// NewEditRequestRepository constructs the repository.
func NewEditRequestRepository(db *sqlx.DB) *EditRequestRepository {
	return &EditRequestRepository{db: db}
}

// Create inserts a new pending request. A second pending request for the same
// record yields ErrPendingRequestExists.
func (r *EditRequestRepository) Create(ctx context.Context, req *models.EditRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.EditRequestPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_edit_requests
	(id, record_id, batch_id, requested_by, previous_status, proposed_status, reason, status, admin_notes, resolved_by, created_at, resolved_at)
	VALUES (:id, :record_id, :batch_id, :requested_by, :previous_status, :proposed_status, :reason, :status, :admin_notes, :resolved_by, :created_at, :resolved_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, req); err != nil {
		if database.IsUniqueViolation(err, onePendingIndex) {
			return ErrPendingRequestExists
		}
		return fmt.Errorf("create edit request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *EditRequestRepository) GetByID(ctx context.Context, id string) (*models.EditRequest, error) {
	query := `SELECT ` + editRequestColumns + ` FROM attendance_edit_requests WHERE id = $1`
	var req models.EditRequest
	if err := database.Conn(ctx, r.db).GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetForUpdate fetches a request and holds its row lock.
func (r *EditRequestRepository) GetForUpdate(ctx context.Context, id string) (*models.EditRequest, error) {
	query := `SELECT ` + editRequestColumns + ` FROM attendance_edit_requests WHERE id = $1 FOR UPDATE`
	var req models.EditRequest
	if err := database.Conn(ctx, r.db).GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// HasPending reports whether the record already carries a pending request.
func (r *EditRequestRepository) HasPending(ctx context.Context, recordID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM attendance_edit_requests WHERE record_id = $1 AND status = $2)`
	var exists bool
	if err := database.Conn(ctx, r.db).GetContext(ctx, &exists, query, recordID, models.EditRequestPending); err != nil {
		return false, fmt.Errorf("check pending edit request: %w", err)
	}
	return exists, nil
}

// List returns requests matching the filter, newest first.
func (r *EditRequestRepository) List(ctx context.Context, filter models.EditRequestFilter) ([]models.EditRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + editRequestColumns + ` FROM attendance_edit_requests`)

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RecordID != "" {
		args = append(args, filter.RecordID)
		conditions = append(conditions, fmt.Sprintf("record_id = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.EditRequest
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list edit requests: %w", err)
	}
	return requests, nil
}

// Resolve moves a PENDING request to its terminal state. It returns
// sql.ErrNoRows when the request is no longer pending.
func (r *EditRequestRepository) Resolve(ctx context.Context, params models.ResolveEditRequestParams) error {
	query := fmt.Sprintf(`UPDATE attendance_edit_requests
SET status = :status, resolved_by = :resolved_by, resolved_at = :resolved_at, admin_notes = :admin_notes
WHERE id = :id AND status = '%s'`, models.EditRequestPending)
	result, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"status":      params.Status,
		"resolved_by": params.ResolvedBy,
		"resolved_at": params.ResolvedAt,
		"admin_notes": params.AdminNotes,
	})
	if err != nil {
		return fmt.Errorf("resolve edit request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check edit request resolve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
