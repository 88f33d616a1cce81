package dto

// CreateEditRequest proposes a correction for one or more locked records.
// Several record ids produce independent requests sharing a batch id.
type CreateEditRequest struct {
	RecordIDs      []string `json:"record_ids" validate:"required,min=1,dive,required"`
	ProposedStatus string   `json:"proposed_status" validate:"required,attendance_status"`
	Reason         string   `json:"reason" validate:"required"`
}

// ResolveEditRequest carries an admin decision.
type ResolveEditRequest struct {
	Decision   string `json:"decision" validate:"required,decision"`
	AdminNotes string `json:"admin_notes" validate:"max=2000"`
}

// EditRequestQuery mirrors supported listing filters.
type EditRequestQuery struct {
	Status   []string `form:"status"`
	RecordID string   `form:"record_id"`
	BatchID  string   `form:"batch_id"`
	Limit    int      `form:"limit"`
	Offset   int      `form:"offset"`
}
