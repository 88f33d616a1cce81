package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/umi-schedule-api/internal/models"
)

var (
	adminActor = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	hodActor   = models.Actor{UserID: "hod-1", Role: models.RoleHOD, DepartmentID: "dept-1"}
)

func instructorActor(id string) models.Actor {
	return models.Actor{UserID: "user-" + id, Role: models.RoleInstructor, InstructorID: id}
}

// txStub counts transactions and lets stubs roll back their state when fn
// fails.
type txStub struct {
	calls     int
	rollbacks int
	snapshots []func() func()
}

func (t *txStub) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	restores := make([]func(), 0, len(t.snapshots))
	for _, snap := range t.snapshots {
		restores = append(restores, snap())
	}
	if err := fn(ctx); err != nil {
		t.rollbacks++
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

type timetableRepoStub struct {
	entries   map[string]*models.TimetableEntry
	lockedDay []models.Weekday
	seq       int
	createErr error
	listErr   error

	// beforeCreate runs ahead of createErr, standing in for a concurrent commit.
	beforeCreate func()
}

func newTimetableRepoStub(entries ...models.TimetableEntry) *timetableRepoStub {
	repo := &timetableRepoStub{entries: make(map[string]*models.TimetableEntry)}
	for i := range entries {
		entry := entries[i]
		repo.entries[entry.ID] = &entry
	}
	return repo
}

func (r *timetableRepoStub) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntry, int, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	var result []models.TimetableEntry
	for _, entry := range r.sorted() {
		if filter.DayOfWeek != "" && entry.DayOfWeek != filter.DayOfWeek {
			continue
		}
		if filter.InstructorID != "" && entry.InstructorID != filter.InstructorID {
			continue
		}
		result = append(result, entry)
	}
	return result, len(result), nil
}

func (r *timetableRepoStub) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	entry, ok := r.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *entry
	return &clone, nil
}

func (r *timetableRepoStub) ListByInstructor(ctx context.Context, instructorID string) ([]models.TimetableEntry, error) {
	var result []models.TimetableEntry
	for _, entry := range r.sorted() {
		if entry.InstructorID == instructorID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *timetableRepoStub) ListByDay(ctx context.Context, day models.Weekday) ([]models.TimetableEntry, error) {
	var result []models.TimetableEntry
	for _, entry := range r.sorted() {
		if entry.DayOfWeek == day {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *timetableRepoStub) FindCandidates(ctx context.Context, day models.Weekday, instructorID, room string) ([]models.TimetableEntry, error) {
	var result []models.TimetableEntry
	for _, entry := range r.sorted() {
		if entry.DayOfWeek != day {
			continue
		}
		if entry.InstructorID == instructorID || (room != "" && entry.Room == room) {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *timetableRepoStub) LockDay(ctx context.Context, day models.Weekday) error {
	r.lockedDay = append(r.lockedDay, day)
	return nil
}

func (r *timetableRepoStub) Create(ctx context.Context, entry *models.TimetableEntry) error {
	if r.beforeCreate != nil {
		r.beforeCreate()
	}
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	entry.ID = fmt.Sprintf("entry-%d", r.seq)
	clone := *entry
	r.entries[entry.ID] = &clone
	return nil
}

func (r *timetableRepoStub) Update(ctx context.Context, entry *models.TimetableEntry) error {
	if _, ok := r.entries[entry.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *entry
	r.entries[entry.ID] = &clone
	return nil
}

func (r *timetableRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.entries[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.entries, id)
	return nil
}

func (r *timetableRepoStub) sorted() []models.TimetableEntry {
	result := make([]models.TimetableEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

type sessionStoreStub struct {
	sessions map[string]*models.AttendanceSession
	seq      int
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{sessions: make(map[string]*models.AttendanceSession)}
}

func (s *sessionStoreStub) GetOrCreate(ctx context.Context, entry models.TimetableEntry, date time.Time) (*models.AttendanceSession, error) {
	if existing, err := s.FindByEntryAndDate(ctx, entry.ID, date); err == nil {
		return existing, nil
	}
	s.seq++
	session := &models.AttendanceSession{
		ID:               fmt.Sprintf("session-%d", s.seq),
		TimetableEntryID: entry.ID,
		CourseID:         entry.CourseID,
		Date:             date,
		Status:           models.SessionStatusOpen,
	}
	s.sessions[session.ID] = session
	clone := *session
	return &clone, nil
}

func (s *sessionStoreStub) FindByEntryAndDate(ctx context.Context, entryID string, date time.Time) (*models.AttendanceSession, error) {
	for _, session := range s.sessions {
		if session.TimetableEntryID == entryID && session.Date.Equal(date) {
			clone := *session
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *sessionStoreStub) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *session
	return &clone, nil
}

func (s *sessionStoreStub) FindByIDForUpdate(ctx context.Context, id string) (*models.AttendanceSession, error) {
	return s.FindByID(ctx, id)
}

func (s *sessionStoreStub) MarkLocked(ctx context.Context, id, lockedBy string, at time.Time) error {
	session, ok := s.sessions[id]
	if !ok || session.Status != models.SessionStatusOpen {
		return sql.ErrNoRows
	}
	session.Status = models.SessionStatusLocked
	session.LockedBy = &lockedBy
	session.LockedAt = &at
	return nil
}

type recordStoreStub struct {
	records map[string]*models.AttendanceRecord
	seq     int
}

func newRecordStoreStub() *recordStoreStub {
	return &recordStoreStub{records: make(map[string]*models.AttendanceRecord)}
}

func (r *recordStoreStub) Upsert(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	for _, existing := range r.records {
		if existing.SessionID == record.SessionID && existing.StudentID == record.StudentID {
			existing.Status = record.Status
			existing.MarkedBy = record.MarkedBy
			*record = *existing
			return false, nil
		}
	}
	r.seq++
	record.ID = fmt.Sprintf("record-%d", r.seq)
	clone := *record
	r.records[record.ID] = &clone
	return true, nil
}

func (r *recordStoreStub) FindByIDForUpdate(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (r *recordStoreStub) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	var result []models.AttendanceRecord
	for _, record := range r.records {
		if record.SessionID == sessionID {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

func (r *recordStoreStub) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus, markedBy string) (*models.AttendanceRecord, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	record.Status = status
	record.MarkedBy = markedBy
	clone := *record
	return &clone, nil
}

func (r *recordStoreStub) byStudent(sessionID, studentID string) *models.AttendanceRecord {
	for _, record := range r.records {
		if record.SessionID == sessionID && record.StudentID == studentID {
			return record
		}
	}
	return nil
}

type editRequestStoreStub struct {
	requests  map[string]*models.EditRequest
	seq       int
	lastQuery models.EditRequestFilter
}

func newEditRequestStoreStub() *editRequestStoreStub {
	return &editRequestStoreStub{requests: make(map[string]*models.EditRequest)}
}

func (s *editRequestStoreStub) Create(ctx context.Context, req *models.EditRequest) error {
	s.seq++
	req.ID = fmt.Sprintf("request-%d", s.seq)
	clone := *req
	s.requests[req.ID] = &clone
	return nil
}

func (s *editRequestStoreStub) GetByID(ctx context.Context, id string) (*models.EditRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *req
	return &clone, nil
}

func (s *editRequestStoreStub) GetForUpdate(ctx context.Context, id string) (*models.EditRequest, error) {
	return s.GetByID(ctx, id)
}

func (s *editRequestStoreStub) HasPending(ctx context.Context, recordID string) (bool, error) {
	for _, req := range s.requests {
		if req.RecordID == recordID && req.Status == models.EditRequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *editRequestStoreStub) List(ctx context.Context, filter models.EditRequestFilter) ([]models.EditRequest, error) {
	s.lastQuery = filter
	var result []models.EditRequest
	for _, req := range s.requests {
		if filter.RequestedBy != "" && req.RequestedBy != filter.RequestedBy {
			continue
		}
		result = append(result, *req)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *editRequestStoreStub) Resolve(ctx context.Context, params models.ResolveEditRequestParams) error {
	req, ok := s.requests[params.ID]
	if !ok || req.Status != models.EditRequestPending {
		return sql.ErrNoRows
	}
	req.Status = params.Status
	req.ResolvedBy = &params.ResolvedBy
	req.ResolvedAt = &params.ResolvedAt
	req.AdminNotes = params.AdminNotes
	return nil
}

// snapshot captures the request map and returns a restore func.
func (s *editRequestStoreStub) snapshot() func() {
	saved := make(map[string]*models.EditRequest, len(s.requests))
	for id, req := range s.requests {
		clone := *req
		saved[id] = &clone
	}
	seq := s.seq
	return func() {
		s.requests = saved
		s.seq = seq
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.DomainEvent
	err    error
}

func (r *eventRecorder) Publish(ctx context.Context, event models.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

type invalidatorStub struct {
	courses []string
}

func (i *invalidatorStub) InvalidateCourse(ctx context.Context, courseID string) {
	i.courses = append(i.courses, courseID)
}

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

func slot(id string, day models.Weekday, start, end, room, instructorID, courseID string) models.TimetableEntry {
	s, err := models.ParseClockTime(start)
	if err != nil {
		panic(err)
	}
	e, err := models.ParseClockTime(end)
	if err != nil {
		panic(err)
	}
	return models.TimetableEntry{
		ID:           id,
		DayOfWeek:    day,
		StartTime:    s,
		EndTime:      e,
		Room:         room,
		InstructorID: instructorID,
		CourseID:     courseID,
		SemesterID:   "sem-1",
	}
}
