package dto

// TimetableEntryRequest is the payload for creating, updating or validating a
// timetable entry. Times use "HH:MM".
type TimetableEntryRequest struct {
	DayOfWeek    string `json:"day_of_week" validate:"required,weekday"`
	StartTime    string `json:"start_time" validate:"required,clock_time"`
	EndTime      string `json:"end_time" validate:"required,clock_time"`
	Room         string `json:"room" validate:"max=64"`
	InstructorID string `json:"instructor_id" validate:"required"`
	CourseID     string `json:"course_id" validate:"required"`
	SemesterID   string `json:"semester_id" validate:"required"`
}

// ValidateSlotRequest checks a candidate without persisting it.
type ValidateSlotRequest struct {
	TimetableEntryRequest
	ExcludeID string `json:"exclude_id"`
}

// TimetableQuery mirrors supported listing filters.
type TimetableQuery struct {
	DayOfWeek    string `form:"day_of_week"`
	InstructorID string `form:"instructor_id"`
	CourseID     string `form:"course_id"`
	SemesterID   string `form:"semester_id"`
	Room         string `form:"room"`
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
}

// AvailabilityQuery asks which instructors of a department are free.
type AvailabilityQuery struct {
	DayOfWeek    string `form:"day_of_week" validate:"required,weekday"`
	StartTime    string `form:"start_time" validate:"required,clock_time"`
	EndTime      string `form:"end_time" validate:"required,clock_time"`
	DepartmentID string `form:"department_id" validate:"required"`
}
