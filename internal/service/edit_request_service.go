package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/umi-schedule-api/internal/dto"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/internal/repository"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

type editRequestStore interface {
	Create(ctx context.Context, req *models.EditRequest) error
	GetByID(ctx context.Context, id string) (*models.EditRequest, error)
	GetForUpdate(ctx context.Context, id string) (*models.EditRequest, error)
	HasPending(ctx context.Context, recordID string) (bool, error)
	List(ctx context.Context, filter models.EditRequestFilter) ([]models.EditRequest, error)
	Resolve(ctx context.Context, params models.ResolveEditRequestParams) error
}

type correctableRecords interface {
	FindByIDForUpdate(ctx context.Context, id string) (*models.AttendanceRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus, markedBy string) (*models.AttendanceRecord, error)
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
}

// EditRequestService runs the post-lock correction workflow: instructors ask
// for a change with a reason and an admin approves or rejects it.
type EditRequestService struct {
	requests  editRequestStore
	records   correctableRecords
	sessions  sessionReader
	entries   entryReader
	tx        txRunner
	rollups   rollupInvalidator
	events    emitter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEditRequestService constructs the service.
func NewEditRequestService(requests editRequestStore, records correctableRecords, sessions sessionReader, entries entryReader, tx txRunner, rollups rollupInvalidator, events EventSink, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EditRequestService {
	if tx == nil {
		tx = passthroughTx{}
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EditRequestService{
		requests:  requests,
		records:   records,
		sessions:  sessions,
		entries:   entries,
		tx:        tx,
		rollups:   rollups,
		events:    emitter{sink: events, logger: logger},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create files one PENDING request per record. Several records produce
// independent requests sharing a batch id; either all are created or none.
func (s *EditRequestService) Create(ctx context.Context, actor models.Actor, req dto.CreateEditRequest) ([]models.EditRequest, error) {
	if err := authorize(actor, models.RoleInstructor, models.RoleAdmin); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid edit request payload")
	}
	proposed := models.AttendanceStatus(strings.ToUpper(strings.TrimSpace(req.ProposedStatus)))

	recordIDs := make([]string, 0, len(req.RecordIDs))
	seen := make(map[string]struct{}, len(req.RecordIDs))
	for _, id := range req.RecordIDs {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate record_id in payload: "+id)
		}
		seen[id] = struct{}{}
		recordIDs = append(recordIDs, id)
	}

	var batchID *string
	if len(recordIDs) > 1 {
		id := uuid.NewString()
		batchID = &id
	}

	created := make([]models.EditRequest, 0, len(recordIDs))
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, recordID := range recordIDs {
			record, err := s.records.FindByIDForUpdate(ctx, recordID)
			if err != nil {
				return notFoundOr(err, "attendance record")
			}
			session, err := s.sessions.FindByID(ctx, record.SessionID)
			if err != nil {
				return notFoundOr(err, "attendance session")
			}
			if !session.Locked() {
				return appErrors.Clone(appErrors.ErrInvalidState, "session is open; edit the record directly")
			}
			if err := s.ensureOwner(ctx, actor, session); err != nil {
				return err
			}

			pending, err := s.requests.HasPending(ctx, record.ID)
			if err != nil {
				return internalError(err, "failed to check pending edit requests")
			}
			if pending {
				return appErrors.Clone(appErrors.ErrDuplicateRequest, fmt.Sprintf("record %s already has a pending edit request", record.ID))
			}

			request := models.EditRequest{
				RecordID:       record.ID,
				BatchID:        batchID,
				RequestedBy:    actor.UserID,
				PreviousStatus: record.Status,
				ProposedStatus: proposed,
				Reason:         reason,
				Status:         models.EditRequestPending,
				CreatedAt:      s.now().UTC(),
			}
			if err := s.requests.Create(ctx, &request); err != nil {
				if errors.Is(err, repository.ErrPendingRequestExists) {
					return appErrors.Clone(appErrors.ErrDuplicateRequest, fmt.Sprintf("record %s already has a pending edit request", record.ID))
				}
				return internalError(err, "failed to create edit request")
			}
			created = append(created, request)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEditRequests(len(created))
	events := make([]models.DomainEvent, 0, len(created))
	for _, request := range created {
		events = append(events, newEvent(ctx, models.EventEditRequestCreated, actor, "attendance_edit_request", request.ID, request))
	}
	s.events.emit(ctx, events...)
	return created, nil
}

// Resolve applies an admin decision to a PENDING request. Approval rewrites
// the record's status and the request's state in one transaction; the
// session stays LOCKED. Rejection leaves the record untouched.
func (s *EditRequestService) Resolve(ctx context.Context, actor models.Actor, id string, req dto.ResolveEditRequest) (*models.ResolutionResult, error) {
	if err := authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid resolution payload")
	}
	decision := models.EditDecision(strings.ToUpper(strings.TrimSpace(req.Decision)))

	var result models.ResolutionResult
	var courseID string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		request, err := s.requests.GetForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "edit request")
		}
		if request.Status != models.EditRequestPending {
			return appErrors.Clone(appErrors.ErrInvalidState, "already resolved")
		}

		status := models.EditRequestRejected
		if decision == models.DecisionApprove {
			status = models.EditRequestApproved
			record, err := s.records.UpdateStatus(ctx, request.RecordID, request.ProposedStatus, actor.UserID)
			if err != nil {
				return notFoundOr(err, "attendance record")
			}
			result.Record = record
			if session, err := s.sessions.FindByID(ctx, record.SessionID); err == nil {
				courseID = session.CourseID
			}
		}

		resolvedAt := s.now().UTC()
		params := models.ResolveEditRequestParams{
			ID:         request.ID,
			Status:     status,
			ResolvedBy: actor.UserID,
			ResolvedAt: resolvedAt,
			AdminNotes: optionalString(req.AdminNotes),
		}
		if err := s.requests.Resolve(ctx, params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidState, "already resolved")
			}
			return internalError(err, "failed to resolve edit request")
		}

		request.Status = status
		request.ResolvedBy = &params.ResolvedBy
		request.ResolvedAt = &resolvedAt
		request.AdminNotes = params.AdminNotes
		result.Request = *request
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEditResolution(result.Request.Status)
	if courseID != "" && s.rollups != nil {
		s.rollups.InvalidateCourse(ctx, courseID)
	}
	s.events.emit(ctx, newEvent(ctx, models.EventEditRequestResolved, actor, "attendance_edit_request", result.Request.ID, result))
	return &result, nil
}

// Get returns a request. Instructors only see their own requests.
func (s *EditRequestService) Get(ctx context.Context, actor models.Actor, id string) (*models.EditRequest, error) {
	if err := authorize(actor, models.RoleInstructor, models.RoleAdmin); err != nil {
		return nil, err
	}
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "edit request")
	}
	if !actor.IsAdmin() && request.RequestedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "edit request not found")
	}
	return request, nil
}

// List returns requests matching the query, newest first. Instructors are
// restricted to their own requests.
func (s *EditRequestService) List(ctx context.Context, actor models.Actor, query dto.EditRequestQuery) ([]models.EditRequest, error) {
	if err := authorize(actor, models.RoleInstructor, models.RoleAdmin); err != nil {
		return nil, err
	}
	filter := models.EditRequestFilter{
		RecordID: query.RecordID,
		BatchID:  query.BatchID,
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	for _, raw := range query.Status {
		for _, part := range strings.Split(raw, ",") {
			status := models.EditRequestStatus(strings.ToUpper(strings.TrimSpace(part)))
			switch status {
			case "":
				continue
			case models.EditRequestPending, models.EditRequestApproved, models.EditRequestRejected:
				filter.Status = append(filter.Status, status)
			default:
				return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported status filter: "+part)
			}
		}
	}
	if !actor.IsAdmin() {
		filter.RequestedBy = actor.UserID
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list edit requests")
	}
	if requests == nil {
		requests = []models.EditRequest{}
	}
	return requests, nil
}

func (s *EditRequestService) ensureOwner(ctx context.Context, actor models.Actor, session *models.AttendanceSession) error {
	if actor.IsAdmin() {
		return nil
	}
	entry, err := s.entries.FindByID(ctx, session.TimetableEntryID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return internalError(err, "failed to load timetable entry")
	}
	return ensureOwnsEntry(actor, entry)
}
