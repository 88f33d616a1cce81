package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var countsRowColumns = []string{"student_id", "present", "absent", "late", "total"}

func TestAggregateRepositoryStudentCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAggregateRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("AND r.student_id = $2 GROUP BY r.student_id")).
		WithArgs("course-1", "stu-1").
		WillReturnRows(sqlmock.NewRows(countsRowColumns).AddRow("stu-1", 3, 1, 0, 4))

	counts, err := repo.StudentCounts(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Present)
	assert.Equal(t, 75, counts.Percentage())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateRepositoryStudentCountsWithoutLockedSessions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAggregateRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.status = 'LOCKED' AND s.course_id = $1")).
		WithArgs("course-1", "stu-9").
		WillReturnRows(sqlmock.NewRows(countsRowColumns))

	counts, err := repo.StudentCounts(context.Background(), "stu-9", "course-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-9", counts.StudentID)
	assert.Equal(t, 0, counts.Total)
	assert.Equal(t, 0, counts.Percentage())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateRepositoryCourseCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAggregateRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY r.student_id ORDER BY r.student_id ASC")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows(countsRowColumns).
			AddRow("stu-1", 2, 0, 0, 2).
			AddRow("stu-2", 1, 0, 1, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_sessions")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows, err := repo.CourseCounts(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 50, rows[1].Percentage())

	locked, err := repo.LockedSessionCount(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, 2, locked)
	require.NoError(t, mock.ExpectationsWereMet())
}
