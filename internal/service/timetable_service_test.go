package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/umi-schedule-api/internal/dto"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/internal/repository"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

func newTimetableFixture(entries ...models.TimetableEntry) (*TimetableService, *timetableRepoStub, *txStub, *eventRecorder) {
	repo := newTimetableRepoStub(entries...)
	tx := &txStub{}
	events := &eventRecorder{}
	return NewTimetableService(repo, tx, events, nil, nil, nil), repo, tx, events
}

func entryRequest(day, start, end, room, instructorID string) dto.TimetableEntryRequest {
	return dto.TimetableEntryRequest{
		DayOfWeek:    day,
		StartTime:    start,
		EndTime:      end,
		Room:         room,
		InstructorID: instructorID,
		CourseID:     "course-2",
		SemesterID:   "sem-1",
	}
}

func TestTimetableCreateRejectsInstructorOverlapAcrossRooms(t *testing.T) {
	existing := slot("entry-x", models.Monday, "09:00", "10:00", "101", "inst-x", "course-1")
	svc, repo, tx, events := newTimetableFixture(existing)

	_, err := svc.Create(context.Background(), hodActor, entryRequest("MONDAY", "09:30", "10:30", "102", "inst-x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, "entry-x", conflictErr.Conflicts[0].Entry.ID)
	assert.Equal(t, []models.ConflictDimension{models.ConflictInstructor}, conflictErr.Conflicts[0].Dimensions)

	assert.Len(t, repo.entries, 1)
	assert.Equal(t, 1, tx.rollbacks)
	assert.Equal(t, []models.Weekday{models.Monday}, repo.lockedDay)
	assert.Empty(t, events.events)
}

func TestTimetableCreateRejectsRoomOverlap(t *testing.T) {
	existing := slot("entry-x", models.Monday, "09:00", "10:00", "101", "inst-x", "course-1")
	svc, _, _, _ := newTimetableFixture(existing)

	_, err := svc.Create(context.Background(), hodActor, entryRequest("mon", "09:15", "09:45", " 101 ", "inst-y"))
	require.Error(t, err)

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, []models.ConflictDimension{models.ConflictRoom}, conflictErr.Conflicts[0].Dimensions)
	assert.Contains(t, err.Error(), "room already booked")
}

func TestTimetableCreateReportsEveryConflict(t *testing.T) {
	svc, _, _, _ := newTimetableFixture(
		slot("entry-a", models.Monday, "08:00", "09:30", "101", "inst-x", "course-1"),
		slot("entry-b", models.Monday, "09:30", "11:00", "201", "inst-z", "course-3"),
	)

	_, err := svc.Create(context.Background(), hodActor, entryRequest("MONDAY", "09:00", "10:00", "201", "inst-x"))
	require.Error(t, err)

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Conflicts, 2)
	assert.Equal(t, "entry-a", conflictErr.Conflicts[0].Entry.ID)
	assert.Equal(t, "entry-b", conflictErr.Conflicts[1].Entry.ID)
	assert.Contains(t, err.Error(), "instructor and room")

	appErr := appErrors.FromError(err)
	assert.Equal(t, conflictErr.Conflicts, appErr.Details)
}

func TestTimetableCreateAllowsTouchingSlotsAndEmptyRooms(t *testing.T) {
	svc, repo, _, events := newTimetableFixture(
		slot("entry-a", models.Monday, "09:00", "10:00", "", "inst-x", "course-1"),
		slot("entry-b", models.Monday, "11:00", "12:00", "", "inst-z", "course-3"),
	)

	// Back-to-back with the same instructor is allowed.
	created, err := svc.Create(context.Background(), hodActor, entryRequest("MONDAY", "10:00", "11:00", "", "inst-x"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	// Two entries with no room never collide on the room dimension.
	_, err = svc.Create(context.Background(), hodActor, entryRequest("MONDAY", "11:30", "12:30", "", "inst-y"))
	require.NoError(t, err)

	assert.Len(t, repo.entries, 4)
	assert.Equal(t, []string{models.EventEntryCreated, models.EventEntryCreated}, events.types())
}

func TestTimetableCreateRejectsInvalidWindowBeforeConflictCheck(t *testing.T) {
	svc, repo, tx, _ := newTimetableFixture(slot("entry-x", models.Monday, "09:00", "10:00", "101", "inst-x", "course-1"))

	for _, req := range []dto.TimetableEntryRequest{
		entryRequest("MONDAY", "09:00", "09:00", "101", "inst-x"),
		entryRequest("MONDAY", "10:00", "09:00", "101", "inst-x"),
	} {
		_, err := svc.Create(context.Background(), hodActor, req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
	}
	assert.Zero(t, tx.calls)
	assert.Empty(t, repo.lockedDay)
}

func TestTimetableCreateValidatesPayload(t *testing.T) {
	svc, _, _, _ := newTimetableFixture()

	_, err := svc.Create(context.Background(), hodActor, entryRequest("FUNDAY", "25:00", "10:00", "", ""))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	fields, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "weekday", fields["DayOfWeek"])
	assert.Equal(t, "clock_time", fields["StartTime"])
	assert.Equal(t, "required", fields["InstructorID"])
}

func TestTimetableCreateRequiresHOD(t *testing.T) {
	svc, _, _, _ := newTimetableFixture()

	_, err := svc.Create(context.Background(), instructorActor("inst-x"), entryRequest("MONDAY", "09:00", "10:00", "", "inst-x"))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(context.Background(), models.Actor{}, entryRequest("MONDAY", "09:00", "10:00", "", "inst-x"))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	superAdmin := models.Actor{UserID: "root", Role: models.RoleSuperAdmin}
	_, err = svc.Create(context.Background(), superAdmin, entryRequest("MONDAY", "09:00", "10:00", "", "inst-x"))
	assert.NoError(t, err)
}

func TestTimetableCreateMapsExclusionViolation(t *testing.T) {
	svc, repo, _, _ := newTimetableFixture()
	repo.createErr = repository.ErrSlotOverlap

	_, err := svc.Create(context.Background(), hodActor, entryRequest("MONDAY", "09:00", "10:00", "101", "inst-x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.True(t, errors.Is(err, repository.ErrSlotOverlap))
}

func TestTimetableCreateExclusionViolationListsWinningEntry(t *testing.T) {
	svc, repo, _, _ := newTimetableFixture()
	repo.createErr = repository.ErrSlotOverlap
	repo.beforeCreate = func() {
		racer := slot("entry-race", models.Monday, "09:30", "10:30", "101", "inst-y", "course-2")
		repo.entries[racer.ID] = &racer
	}

	_, err := svc.Create(context.Background(), hodActor, entryRequest("MONDAY", "09:00", "10:00", "101", "inst-x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, "entry-race", conflictErr.Conflicts[0].Entry.ID)
	assert.True(t, conflictErr.Conflicts[0].Has(models.ConflictRoom))
	assert.Equal(t, conflictErr.Conflicts, appErrors.FromError(err).Details)
}

func TestTimetableUpdateExcludesItself(t *testing.T) {
	svc, repo, _, events := newTimetableFixture(slot("entry-x", models.Monday, "09:00", "10:00", "101", "inst-x", "course-1"))

	updated, err := svc.Update(context.Background(), hodActor, "entry-x", entryRequest("MONDAY", "09:30", "10:30", "101", "inst-x"))
	require.NoError(t, err)
	assert.Equal(t, "entry-x", updated.ID)
	assert.Equal(t, models.NewClockTime(9, 30), repo.entries["entry-x"].StartTime)
	assert.Equal(t, []string{models.EventEntryUpdated}, events.types())

	payload, ok := events.events[0].Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, models.NewClockTime(9, 0), payload["before"].(models.TimetableEntry).StartTime)
}

func TestTimetableUpdateAcrossDaysLocksBothDays(t *testing.T) {
	svc, repo, _, _ := newTimetableFixture(
		slot("entry-x", models.Tuesday, "09:00", "10:00", "101", "inst-x", "course-1"),
		slot("entry-y", models.Monday, "09:00", "10:00", "101", "inst-y", "course-3"),
	)

	_, err := svc.Update(context.Background(), hodActor, "entry-x", entryRequest("MONDAY", "09:00", "10:00", "101", "inst-x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.ElementsMatch(t, []models.Weekday{models.Monday, models.Tuesday}, repo.lockedDay)
	assert.Equal(t, models.Tuesday, repo.entries["entry-x"].DayOfWeek)
}

func TestTimetableUpdateMissingEntry(t *testing.T) {
	svc, _, _, _ := newTimetableFixture()

	_, err := svc.Update(context.Background(), hodActor, "missing", entryRequest("MONDAY", "09:00", "10:00", "", "inst-x"))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestTimetableDeleteEmitsEvent(t *testing.T) {
	svc, repo, _, events := newTimetableFixture(slot("entry-x", models.Monday, "09:00", "10:00", "101", "inst-x", "course-1"))

	require.NoError(t, svc.Delete(context.Background(), hodActor, "entry-x"))
	assert.Empty(t, repo.entries)
	assert.Equal(t, []string{models.EventEntryDeleted}, events.types())
	assert.Equal(t, "entry-x", events.events[0].ResourceID)

	err := svc.Delete(context.Background(), hodActor, "entry-x")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestTimetableValidateSlotReturnsConflictsWithoutWriting(t *testing.T) {
	svc, repo, tx, _ := newTimetableFixture(slot("entry-x", models.Monday, "09:00", "10:00", "101", "inst-x", "course-1"))

	conflicts, err := svc.ValidateSlot(context.Background(), adminActor, entryRequest("MONDAY", "09:30", "10:30", "101", "inst-x"), "")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.ElementsMatch(t, []models.ConflictDimension{models.ConflictInstructor, models.ConflictRoom}, conflicts[0].Dimensions)

	conflicts, err = svc.ValidateSlot(context.Background(), adminActor, entryRequest("MONDAY", "09:30", "10:30", "101", "inst-x"), "entry-x")
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	assert.Len(t, repo.entries, 1)
	assert.Zero(t, tx.calls)
}

func TestTimetableListBuildsPagination(t *testing.T) {
	svc, _, _, _ := newTimetableFixture(
		slot("entry-a", models.Monday, "09:00", "10:00", "", "inst-x", "course-1"),
		slot("entry-b", models.Tuesday, "09:00", "10:00", "", "inst-x", "course-1"),
	)

	entries, pagination, err := svc.List(context.Background(), dto.TimetableQuery{DayOfWeek: "tue", PageSize: 500})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "entry-b", entries[0].ID)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, pagination)

	_, _, err = svc.List(context.Background(), dto.TimetableQuery{DayOfWeek: "someday"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTimetableConflictMetricsRecordedAfterRejection(t *testing.T) {
	metrics := NewMetricsService()
	repo := newTimetableRepoStub(slot("entry-x", models.Monday, "09:00", "10:00", "101", "inst-x", "course-1"))
	svc := NewTimetableService(repo, &txStub{}, nil, metrics, nil, nil)

	_, err := svc.Create(context.Background(), hodActor, entryRequest("MONDAY", "09:00", "10:00", "101", "inst-x"))
	require.Error(t, err)
	assert.Equal(t, uint64(1), metrics.Snapshot().ConflictsRejected)
}

func TestLockOrderIsStableAndDistinct(t *testing.T) {
	assert.Equal(t, []models.Weekday{models.Monday, models.Tuesday}, lockOrder(models.Tuesday, models.Monday))
	assert.Equal(t, []models.Weekday{models.Friday}, lockOrder(models.Friday, models.Friday))
}
