package dto

import "github.com/edudist/btd-api/internal/models"

// CreateIssueRequest raises a new problem report for a school.
type CreateIssueRequest struct {
	Title       string               `json:"title" validate:"required"`
	Description string               `json:"description" validate:"required"`
	Priority    models.IssuePriority `json:"priority" validate:"required,issuepriority"`
	SchoolUDISE string               `json:"school_udise" validate:"required"`
}

// ReviewIssueRequest captures a tier reviewer's decision on an issue.
type ReviewIssueRequest struct {
	Action  models.IssueAction `json:"action"`
	Remarks string             `json:"remarks"`
}

// IssueQuery mirrors supported listing filters.
type IssueQuery struct {
	Status   []models.IssueStatus
	Priority models.IssuePriority
	Page     int
	PageSize int
}
