package repository

import "errors"

// Sentinel errors translated from storage constraint violations.
var (
	// ErrSlotOverlap is returned when an exclusion constraint rejects an
	// overlapping timetable entry that slipped past the application check.
	ErrSlotOverlap = errors.New("timetable slot overlaps an existing entry")
	// ErrPendingRequestExists is returned when a record already carries an
	// unresolved edit request.
	ErrPendingRequestExists = errors.New("record already has a pending edit request")
)
