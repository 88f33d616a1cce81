package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/umi-schedule-api/internal/models"
)

// InstructorRepository reads the instructor directory mirror.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// ListByDepartment returns the department's instructors ordered by name.
func (r *InstructorRepository) ListByDepartment(ctx context.Context, departmentID string) ([]models.Instructor, error) {
	const query = `SELECT id, department_id, name FROM instructors WHERE department_id = $1 ORDER BY name ASC, id ASC`
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, departmentID); err != nil {
		return nil, fmt.Errorf("list instructors by department: %w", err)
	}
	return instructors, nil
}
