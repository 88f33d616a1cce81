package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/umi-schedule-api/internal/dto"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

type attendanceFixture struct {
	svc      *AttendanceService
	entries  *timetableRepoStub
	sessions *sessionStoreStub
	records  *recordStoreStub
	rollups  *invalidatorStub
	events   *eventRecorder
	metrics  *MetricsService
}

func newAttendanceFixture(cfg AttendanceServiceConfig) *attendanceFixture {
	f := &attendanceFixture{
		entries:  newTimetableRepoStub(slot("entry-c", models.Friday, "09:00", "10:00", "101", "inst-x", "course-c")),
		sessions: newSessionStoreStub(),
		records:  newRecordStoreStub(),
		rollups:  &invalidatorStub{},
		events:   &eventRecorder{},
		metrics:  NewMetricsService(),
	}
	f.svc = NewAttendanceService(f.sessions, f.records, f.entries, &txStub{}, f.rollups, f.events, f.metrics, nil, nil, cfg)
	return f
}

func markRequest(date string, items ...dto.MarkItem) dto.MarkAttendanceRequest {
	return dto.MarkAttendanceRequest{
		SessionRequest: dto.SessionRequest{TimetableEntryID: "entry-c", Date: date},
		Items:          items,
	}
}

func TestAttendanceMarkSubmitThenRejectFurtherMarks(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{})
	actor := instructorActor("inst-x")
	ctx := context.Background()

	result, err := f.svc.BulkMark(ctx, actor, markRequest("2025-01-10",
		dto.MarkItem{StudentID: "s1", Status: "PRESENT"},
		dto.MarkItem{StudentID: "s2", Status: "present"},
		dto.MarkItem{StudentID: "s3", Status: "ABSENT"},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, models.SessionStatusOpen, result.Session.Status)
	assert.Equal(t, "course-c", result.Session.CourseID)

	submitted, err := f.svc.Submit(ctx, actor, dto.SubmitAttendanceRequest{TimetableEntryID: "entry-c", Date: "2025-01-10"})
	require.NoError(t, err)
	assert.True(t, submitted.Locked)
	assert.Equal(t, models.SessionStatusLocked, submitted.Session.Status)
	require.NotNil(t, submitted.Session.LockedBy)
	assert.Equal(t, actor.UserID, *submitted.Session.LockedBy)

	_, err = f.svc.BulkMark(ctx, actor, markRequest("2025-01-10", dto.MarkItem{StudentID: "s4", Status: "PRESENT"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
	assert.Nil(t, f.records.byStudent(submitted.Session.ID, "s4"))

	_, err = f.svc.UpsertRecord(ctx, actor, submitted.Session.ID, "s3", models.AttendanceStatusPresent)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
	assert.Equal(t, models.AttendanceStatusAbsent, f.records.byStudent(submitted.Session.ID, "s3").Status)
}

func TestAttendanceSubmitTwiceFailsAndEmitsOnce(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{})
	actor := instructorActor("inst-x")
	ctx := context.Background()

	session, err := f.svc.GetOrCreateSession(ctx, actor, dto.SessionRequest{TimetableEntryID: "entry-c", Date: "2025-01-10"})
	require.NoError(t, err)

	_, err = f.svc.SubmitSession(ctx, actor, session.ID)
	require.NoError(t, err)

	_, err = f.svc.SubmitSession(ctx, actor, session.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
	assert.Contains(t, err.Error(), "already submitted")

	assert.Equal(t, []string{models.EventSessionLocked}, f.events.types())
	assert.Equal(t, []string{"course-c"}, f.rollups.courses)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().SessionsLocked)
}

func TestAttendanceGetOrCreateSessionIsIdempotent(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{})
	actor := instructorActor("inst-x")

	first, err := f.svc.GetOrCreateSession(context.Background(), actor, dto.SessionRequest{TimetableEntryID: "entry-c", Date: "2025-01-10"})
	require.NoError(t, err)
	second, err := f.svc.GetOrCreateSession(context.Background(), actor, dto.SessionRequest{TimetableEntryID: "entry-c", Date: "2025-01-10"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.sessions.sessions, 1)
}

func TestAttendanceEmptyDateDefaultsToTodayInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	f := newAttendanceFixture(AttendanceServiceConfig{Location: loc})
	f.svc.now = func() time.Time { return time.Date(2025, 1, 9, 20, 0, 0, 0, time.UTC) }

	session, err := f.svc.GetOrCreateSession(context.Background(), adminActor, dto.SessionRequest{TimetableEntryID: "entry-c"})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", session.Date.Format("2006-01-02"))
}

func TestAttendanceRejectsOtherInstructors(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.GetOrCreateSession(ctx, instructorActor("inst-y"), dto.SessionRequest{TimetableEntryID: "entry-c", Date: "2025-01-10"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	session, err := f.svc.GetOrCreateSession(ctx, adminActor, dto.SessionRequest{TimetableEntryID: "entry-c", Date: "2025-01-10"})
	require.NoError(t, err)

	_, err = f.svc.SubmitSession(ctx, instructorActor("inst-y"), session.ID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.GetOrCreateSession(ctx, hodActor, dto.SessionRequest{TimetableEntryID: "entry-c"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestAttendanceBulkMarkValidation(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{MaxBulkItems: 2})
	actor := instructorActor("inst-x")
	ctx := context.Background()

	_, err := f.svc.BulkMark(ctx, actor, markRequest("2025-01-10",
		dto.MarkItem{StudentID: "s1", Status: "PRESENT"},
		dto.MarkItem{StudentID: "s1", Status: "ABSENT"},
	))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.BulkMark(ctx, actor, markRequest("2025-01-10", dto.MarkItem{StudentID: "s1"}))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.BulkMark(ctx, actor, markRequest("2025-01-10", dto.MarkItem{StudentID: "s1", Status: "EXCUSED"}))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.BulkMark(ctx, actor, markRequest("10/01/2025", dto.MarkItem{StudentID: "s1", Status: "LATE"}))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.BulkMark(ctx, actor, markRequest("2025-01-10",
		dto.MarkItem{StudentID: "s1", Status: "PRESENT"},
		dto.MarkItem{StudentID: "s2", Status: "PRESENT"},
		dto.MarkItem{StudentID: "s3", Status: "PRESENT"},
	))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	assert.Empty(t, f.sessions.sessions)
	assert.Empty(t, f.records.records)
}

func TestAttendanceBulkMarkRejectsBlankStudentID(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{})

	_, err := f.svc.BulkMark(context.Background(), instructorActor("inst-x"), markRequest("2025-01-10",
		dto.MarkItem{StudentID: "s1", Status: "PRESENT"},
		dto.MarkItem{StudentID: "   ", Status: "PRESENT"},
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.sessions.sessions)
	assert.Empty(t, f.records.records)
}

func TestAttendanceUpsertRecordOverwritesWhileOpen(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{})
	actor := instructorActor("inst-x")
	ctx := context.Background()

	session, err := f.svc.GetOrCreateSession(ctx, actor, dto.SessionRequest{TimetableEntryID: "entry-c", Date: "2025-01-10"})
	require.NoError(t, err)

	first, err := f.svc.UpsertRecord(ctx, actor, session.ID, "s1", models.AttendanceStatusAbsent)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := f.svc.UpsertRecord(ctx, actor, session.ID, "s1", "late")
	require.NoError(t, err)
	assert.True(t, second.Updated)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, models.AttendanceStatusLate, f.records.byStudent(session.ID, "s1").Status)
	assert.Len(t, f.records.records, 1)

	_, err = f.svc.UpsertRecord(ctx, actor, session.ID, " ", models.AttendanceStatusPresent)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAttendanceGetSessionIncludesRecords(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{})
	actor := instructorActor("inst-x")
	ctx := context.Background()

	result, err := f.svc.BulkMark(ctx, actor, markRequest("2025-01-10",
		dto.MarkItem{StudentID: "s2", Status: "ABSENT"},
		dto.MarkItem{StudentID: "s1", Status: "PRESENT"},
	))
	require.NoError(t, err)

	detail, err := f.svc.GetSession(ctx, actor, result.Session.ID)
	require.NoError(t, err)
	require.Len(t, detail.Records, 2)
	assert.Equal(t, "s1", detail.Records[0].StudentID)
	require.NotNil(t, detail.Entry)
	assert.Equal(t, "entry-c", detail.Entry.ID)

	_, err = f.svc.GetSession(ctx, actor, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAttendanceSessionSurvivesEntryDeletionForAdmins(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{})
	ctx := context.Background()

	session, err := f.svc.GetOrCreateSession(ctx, adminActor, dto.SessionRequest{TimetableEntryID: "entry-c", Date: "2025-01-10"})
	require.NoError(t, err)
	delete(f.entries.entries, "entry-c")

	detail, err := f.svc.GetSession(ctx, adminActor, session.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Entry)

	_, err = f.svc.SubmitSession(ctx, adminActor, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"course-c"}, f.rollups.courses)
}

func TestAttendanceSubmitUnknownSession(t *testing.T) {
	f := newAttendanceFixture(AttendanceServiceConfig{})

	_, err := f.svc.Submit(context.Background(), adminActor, dto.SubmitAttendanceRequest{TimetableEntryID: "entry-c", Date: "2025-01-11"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Submit(context.Background(), adminActor, dto.SubmitAttendanceRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
