package models

import "time"

// IssuePriority orders problem reports for reviewers.
type IssuePriority string

const (
	IssuePriorityLow      IssuePriority = "LOW"
	IssuePriorityMedium   IssuePriority = "MEDIUM"
	IssuePriorityHigh     IssuePriority = "HIGH"
	IssuePriorityCritical IssuePriority = "CRITICAL"
)

// IssueStatus captures the escalation workflow states.
type IssueStatus string

const (
	IssueStatusPendingBlock     IssueStatus = "PENDING_BLOCK_REVIEW"
	IssueStatusPendingDistrict  IssueStatus = "PENDING_DISTRICT_REVIEW"
	IssueStatusPendingState     IssueStatus = "PENDING_STATE_REVIEW"
	IssueStatusResolved         IssueStatus = "RESOLVED"
	IssueStatusRejectedBlock    IssueStatus = "REJECTED_BY_BLOCK"
	IssueStatusRejectedDistrict IssueStatus = "REJECTED_BY_DISTRICT"
	IssueStatusRejectedState    IssueStatus = "REJECTED_BY_STATE"
)

// IssueAction is a reviewer decision.
type IssueAction string

const (
	IssueActionResolve  IssueAction = "resolve"
	IssueActionReject   IssueAction = "reject"
	IssueActionEscalate IssueAction = "escalate"
)

// IssueTier parametrises per-tier review: which pending status the tier owns,
// where escalation goes (empty at STATE), which rejection value it writes and
// which remark/timestamp columns it stamps.
type IssueTier struct {
	Role           UserRole
	PendingStatus  IssueStatus
	EscalateStatus IssueStatus
	RejectedStatus IssueStatus
	RemarkColumn   string
	ReviewedColumn string
}

// IssueTierFor returns the review parameters for a role, or false when the
// role does not review issues.
func IssueTierFor(role UserRole) (IssueTier, bool) {
	switch role {
	case RoleBlock:
		return IssueTier{
			Role:           RoleBlock,
			PendingStatus:  IssueStatusPendingBlock,
			EscalateStatus: IssueStatusPendingDistrict,
			RejectedStatus: IssueStatusRejectedBlock,
			RemarkColumn:   "block_remarks",
			ReviewedColumn: "block_reviewed_at",
		}, true
	case RoleDistrict:
		return IssueTier{
			Role:           RoleDistrict,
			PendingStatus:  IssueStatusPendingDistrict,
			EscalateStatus: IssueStatusPendingState,
			RejectedStatus: IssueStatusRejectedDistrict,
			RemarkColumn:   "district_remarks",
			ReviewedColumn: "district_reviewed_at",
		}, true
	case RoleState:
		return IssueTier{
			Role:           RoleState,
			PendingStatus:  IssueStatusPendingState,
			RejectedStatus: IssueStatusRejectedState,
			RemarkColumn:   "state_remarks",
			ReviewedColumn: "state_reviewed_at",
		}, true
	default:
		return IssueTier{}, false
	}
}

// CanReview reports whether the tier may act on the issue in its current state.
func (t IssueTier) CanReview(status IssueStatus) bool {
	return status == t.PendingStatus
}

// Issue is a problem report raised by a school, escalating from block to district
// to state. Remarks accumulate per tier and are never overwritten by later tiers.
type Issue struct {
	ID                 string        `db:"id" json:"id"`
	IssueCode          string        `db:"issue_code" json:"issue_code"`
	Title              string        `db:"title" json:"title"`
	Description        string        `db:"description" json:"description"`
	Priority           IssuePriority `db:"priority" json:"priority"`
	Status             IssueStatus   `db:"status" json:"status"`
	SchoolUDISE        string        `db:"school_udise" json:"school_udise"`
	RaisedBy           string        `db:"raised_by" json:"raised_by"`
	BlockRemarks       *string       `db:"block_remarks" json:"block_remarks,omitempty"`
	DistrictRemarks    *string       `db:"district_remarks" json:"district_remarks,omitempty"`
	StateRemarks       *string       `db:"state_remarks" json:"state_remarks,omitempty"`
	BlockReviewedAt    *time.Time    `db:"block_reviewed_at" json:"block_reviewed_at,omitempty"`
	DistrictReviewedAt *time.Time    `db:"district_reviewed_at" json:"district_reviewed_at,omitempty"`
	StateReviewedAt    *time.Time    `db:"state_reviewed_at" json:"state_reviewed_at,omitempty"`
	ResolvedAt         *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	RejectedAt         *time.Time    `db:"rejected_at" json:"rejected_at,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// IssueFilter constrains issue listing queries.
type IssueFilter struct {
	Status       []IssueStatus
	Priority     IssuePriority
	SchoolUDISE  string
	BlockCode    string
	DistrictCode string
	Page         int
	PageSize     int
}
