package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edudist/btd-api/internal/models"
)

const issueColumns = `i.id, i.issue_code, i.title, i.description, i.priority, i.status, i.school_udise, i.raised_by,
       i.block_remarks, i.district_remarks, i.state_remarks,
       i.block_reviewed_at, i.district_reviewed_at, i.state_reviewed_at,
       i.resolved_at, i.rejected_at, i.created_at, i.updated_at`

// IssueRepository persists issue escalation data.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository constructs the repository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Create inserts a new issue row.
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now
	if issue.Status == "" {
		issue.Status = models.IssueStatusPendingBlock
	}
	const query = `INSERT INTO issues
	(id, issue_code, title, description, priority, status, school_udise, raised_by, created_at, updated_at)
	VALUES (:id, :issue_code, :title, :description, :priority, :status, :school_udise, :raised_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, issue); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

// GetByID fetches an issue by identifier.
func (r *IssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues i WHERE i.id = $1`, issueColumns)
	var issue models.Issue
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		return nil, err
	}
	return &issue, nil
}

// List returns issues matching the filter with a total count, newest first.
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	base := `FROM issues i JOIN schools s ON s.udise_code = i.school_udise`
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		values := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			values = append(values, string(status))
		}
		conditions = append(conditions, fmt.Sprintf("i.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("i.priority = $%d", len(args)+1))
		args = append(args, filter.Priority)
	}
	if filter.SchoolUDISE != "" {
		conditions = append(conditions, fmt.Sprintf("i.school_udise = $%d", len(args)+1))
		args = append(args, filter.SchoolUDISE)
	}
	if filter.BlockCode != "" {
		conditions = append(conditions, fmt.Sprintf("s.block_code = $%d", len(args)+1))
		args = append(args, filter.BlockCode)
	}
	if filter.DistrictCode != "" {
		conditions = append(conditions, fmt.Sprintf("s.district_code = $%d", len(args)+1))
		args = append(args, filter.DistrictCode)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY i.created_at DESC LIMIT %d OFFSET %d`,
		issueColumns, base, whereClause, pageSize, offset)
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s%s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}
	return issues, total, nil
}

// UpdateIssueReviewParams groups mutable columns for an issue decision.
type UpdateIssueReviewParams struct {
	ID             string
	ExpectedStatus models.IssueStatus
	NewStatus      models.IssueStatus
	RemarkColumn   string
	Remarks        *string
	ReviewedColumn string
	ReviewedAt     time.Time
	ResolvedAt     *time.Time
	RejectedAt     *time.Time
}

// UpdateReview applies a review outcome conditionally on the status the
// reviewer saw. Only the acting tier's remark and timestamp columns are
// written; earlier tiers' remarks are untouched.
func (r *IssueRepository) UpdateReview(ctx context.Context, params UpdateIssueReviewParams) error {
	setParts := []string{"status = $1", fmt.Sprintf("%s = $2", params.ReviewedColumn), "updated_at = $3"}
	args := []interface{}{params.NewStatus, params.ReviewedAt, params.ReviewedAt}
	if params.Remarks != nil {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", params.RemarkColumn, len(args)+1))
		args = append(args, *params.Remarks)
	}
	if params.ResolvedAt != nil {
		setParts = append(setParts, fmt.Sprintf("resolved_at = $%d", len(args)+1))
		args = append(args, *params.ResolvedAt)
	}
	if params.RejectedAt != nil {
		setParts = append(setParts, fmt.Sprintf("rejected_at = $%d", len(args)+1))
		args = append(args, *params.RejectedAt)
	}
	query := fmt.Sprintf("UPDATE issues SET %s WHERE id = $%d AND status = $%d",
		strings.Join(setParts, ", "), len(args)+1, len(args)+2)
	args = append(args, params.ID, params.ExpectedStatus)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update issue review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check issue review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
