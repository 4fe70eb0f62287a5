package models

import "time"

// RequisitionStatus captures workflow states for book requests.
type RequisitionStatus string

const (
	RequisitionStatusPendingBlock     RequisitionStatus = "PENDING_BLOCK_APPROVAL"
	RequisitionStatusPendingDistrict  RequisitionStatus = "PENDING_DISTRICT_APPROVAL"
	RequisitionStatusRejectedBlock    RequisitionStatus = "REJECTED_BY_BLOCK"
	RequisitionStatusRejectedDistrict RequisitionStatus = "REJECTED_BY_DISTRICT"
	RequisitionStatusApproved         RequisitionStatus = "APPROVED"
	RequisitionStatusCompleted        RequisitionStatus = "COMPLETED"
)

// requisitionTransitions is the directed edge set of the approval workflow.
// COMPLETED is reached implicitly when received catches up with quantity
// during installment sending, never through a review action.
var requisitionTransitions = map[RequisitionStatus][]RequisitionStatus{
	RequisitionStatusPendingBlock:     {RequisitionStatusPendingDistrict, RequisitionStatusRejectedBlock},
	RequisitionStatusRejectedBlock:    {RequisitionStatusPendingDistrict},
	RequisitionStatusPendingDistrict:  {RequisitionStatusApproved, RequisitionStatusRejectedDistrict},
	RequisitionStatusRejectedDistrict: {RequisitionStatusApproved},
	RequisitionStatusApproved:         {RequisitionStatusCompleted},
}

// CanTransition reports whether the workflow allows moving from one status to
// another.
func CanTransition(from, to RequisitionStatus) bool {
	for _, allowed := range requisitionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ReviewTier parametrises the shared review engine so block and district
// approval share one implementation instead of drifting copies.
type ReviewTier struct {
	Role           UserRole
	PendingStatus  RequisitionStatus
	ForwardStatus  RequisitionStatus
	RejectedStatus RequisitionStatus
	RemarkColumn   string
}

// ReviewTierFor returns the review parameters for a role, or false when the
// role does not review requisitions.
func ReviewTierFor(role UserRole) (ReviewTier, bool) {
	switch role {
	case RoleBlock:
		return ReviewTier{
			Role:           RoleBlock,
			PendingStatus:  RequisitionStatusPendingBlock,
			ForwardStatus:  RequisitionStatusPendingDistrict,
			RejectedStatus: RequisitionStatusRejectedBlock,
			RemarkColumn:   "block_remark",
		}, true
	case RoleDistrict:
		return ReviewTier{
			Role:           RoleDistrict,
			PendingStatus:  RequisitionStatusPendingDistrict,
			ForwardStatus:  RequisitionStatusApproved,
			RejectedStatus: RequisitionStatusRejectedDistrict,
			RemarkColumn:   "district_remark",
		}, true
	default:
		return ReviewTier{}, false
	}
}

// Requisition is one school's request for a quantity of one book.
type Requisition struct {
	ID             string            `db:"id" json:"id"`
	RequestCode    string            `db:"request_code" json:"request_code"`
	BookID         string            `db:"book_id" json:"book_id"`
	SchoolUDISE    string            `db:"school_udise" json:"school_udise"`
	Quantity       int               `db:"quantity" json:"quantity"`
	Received       int               `db:"received" json:"received"`
	Status         RequisitionStatus `db:"status" json:"status"`
	BlockRemark    *string           `db:"block_remark" json:"block_remark,omitempty"`
	DistrictRemark *string           `db:"district_remark" json:"district_remark,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// Remaining returns the undelivered quantity.
func (r *Requisition) Remaining() int {
	remaining := r.Quantity - r.Received
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RequisitionFilter constrains listing queries. BlockCode and DistrictCode
// filter through the schools table, not through code prefixes.
type RequisitionFilter struct {
	Status       []RequisitionStatus
	BookID       string
	SchoolUDISE  string
	BlockCode    string
	DistrictCode string
	Page         int
	PageSize     int
}

// Installment records one partial fulfillment against a requisition. The
// idempotency key is unique so a replayed send returns the original row
// instead of decrementing stock twice.
type Installment struct {
	ID             string    `db:"id" json:"id"`
	RequisitionID  string    `db:"requisition_id" json:"requisition_id"`
	Quantity       int       `db:"quantity" json:"quantity"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key"`
	SentBy         string    `db:"sent_by" json:"sent_by"`
	SentAt         time.Time `db:"sent_at" json:"sent_at"`
}
