package dto

import "github.com/edudist/btd-api/internal/models"

// ReviewAction is a reviewer decision on a requisition.
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "approve"
	ReviewActionReject  ReviewAction = "reject"
)

// ReviewRequisitionRequest captures a tier reviewer's decision. Remark is
// required for approvals and lands in the reviewing tier's own remark column.
type ReviewRequisitionRequest struct {
	Action ReviewAction `json:"action"`
	Remark string       `json:"remark"`
}

// SaveRemarkRequest persists a remark without touching the state machine.
type SaveRemarkRequest struct {
	Remark string `json:"remark" validate:"required"`
}

// RequisitionQuery mirrors supported listing filters.
type RequisitionQuery struct {
	Status      []models.RequisitionStatus
	BookID      string
	SchoolUDISE string
	PendingOnly bool
	Page        int
	PageSize    int
}

// SchoolRequisitionGroup buckets a school's requisitions for display.
type SchoolRequisitionGroup struct {
	SchoolUDISE  string               `json:"school_udise"`
	SchoolName   string               `json:"school_name"`
	Requisitions []models.Requisition `json:"requisitions"`
}
