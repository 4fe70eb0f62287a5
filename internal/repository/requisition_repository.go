package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edudist/btd-api/internal/models"
)

// Sentinel errors for installment preconditions. The service layer maps them
// onto the HTTP error taxonomy.
var (
	ErrRequisitionNotApproved   = errors.New("requisition is not in an approved state")
	ErrQuantityExceedsRemaining = errors.New("quantity exceeds remaining requirement")
	ErrInsufficientStock        = errors.New("insufficient central stock")
)

const requisitionColumns = `r.id, r.request_code, r.book_id, r.school_udise, r.quantity, r.received, r.status, r.block_remark, r.district_remark, r.created_at, r.updated_at`

// RequisitionRepository persists requisition workflow data.
type RequisitionRepository struct {
	db *sqlx.DB
}

// NewRequisitionRepository constructs the repository.
func NewRequisitionRepository(db *sqlx.DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

// List returns requisitions matching the filter with a total count, newest
// first. Block and district scope go through the schools table.
func (r *RequisitionRepository) List(ctx context.Context, filter models.RequisitionFilter) ([]models.Requisition, int, error) {
	base := `FROM requisitions r JOIN schools s ON s.udise_code = r.school_udise`
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		values := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			values = append(values, string(status))
		}
		conditions = append(conditions, fmt.Sprintf("r.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.BookID != "" {
		conditions = append(conditions, fmt.Sprintf("r.book_id = $%d", len(args)+1))
		args = append(args, filter.BookID)
	}
	if filter.SchoolUDISE != "" {
		conditions = append(conditions, fmt.Sprintf("r.school_udise = $%d", len(args)+1))
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

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY r.created_at DESC LIMIT %d OFFSET %d`,
		requisitionColumns, base, whereClause, pageSize, offset)
	var requisitions []models.Requisition
	if err := r.db.SelectContext(ctx, &requisitions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requisitions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s%s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count requisitions: %w", err)
	}
	return requisitions, total, nil
}

// GetByID fetches a requisition by identifier.
func (r *RequisitionRepository) GetByID(ctx context.Context, id string) (*models.Requisition, error) {
	query := fmt.Sprintf(`SELECT %s FROM requisitions r WHERE r.id = $1`, requisitionColumns)
	var requisition models.Requisition
	if err := r.db.GetContext(ctx, &requisition, query, id); err != nil {
		return nil, err
	}
	return &requisition, nil
}

// UpdateReviewParams groups mutable columns for a review decision.
type UpdateReviewParams struct {
	ID             string
	ExpectedStatus models.RequisitionStatus
	NewStatus      models.RequisitionStatus
	RemarkColumn   string
	Remark         *string
	UpdatedAt      time.Time
}

// UpdateReview applies a review outcome with a conditional update: the row
// must still carry the status the reviewer saw. Zero rows affected means a
// concurrent reviewer won and the caller gets sql.ErrNoRows.
func (r *RequisitionRepository) UpdateReview(ctx context.Context, params UpdateReviewParams) error {
	setParts := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{params.NewStatus, params.UpdatedAt}
	if params.Remark != nil {
		setParts = append(setParts, fmt.Sprintf("%s = $3", params.RemarkColumn))
		args = append(args, *params.Remark)
	}
	query := fmt.Sprintf("UPDATE requisitions SET %s WHERE id = $%d AND status = $%d",
		strings.Join(setParts, ", "), len(args)+1, len(args)+2)
	args = append(args, params.ID, params.ExpectedStatus)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update requisition review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check requisition review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveRemark persists a remark without touching the state machine. Allowed
// regardless of status.
func (r *RequisitionRepository) SaveRemark(ctx context.Context, id, remarkColumn, remark string) error {
	query := fmt.Sprintf("UPDATE requisitions SET %s = $1, updated_at = $2 WHERE id = $3", remarkColumn)
	result, err := r.db.ExecContext(ctx, query, remark, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("save requisition remark: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check requisition remark rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// WorkOrderLines aggregates demand per book across pending and approved
// requisitions.
func (r *RequisitionRepository) WorkOrderLines(ctx context.Context) ([]models.WorkOrderLine, error) {
	statuses := []string{
		string(models.RequisitionStatusPendingBlock),
		string(models.RequisitionStatusPendingDistrict),
		string(models.RequisitionStatusApproved),
	}
	const query = `SELECT b.id AS book_id, b.title AS book_title, b.class, b.subject,
       COALESCE(SUM(r.quantity), 0) AS total_requisition,
       COALESCE(SUM(r.received), 0) AS total_received,
       b.current_stock,
       COUNT(DISTINCT r.school_udise) AS school_count
FROM books b
JOIN requisitions r ON r.book_id = b.id
WHERE r.status = ANY($1)
GROUP BY b.id, b.title, b.class, b.subject, b.current_stock
ORDER BY b.class, b.title`
	var lines []models.WorkOrderLine
	if err := r.db.SelectContext(ctx, &lines, query, pq.Array(statuses)); err != nil {
		return nil, fmt.Errorf("aggregate work order lines: %w", err)
	}
	return lines, nil
}

// InstallmentParams describes one fulfillment attempt.
type InstallmentParams struct {
	RequisitionID  string
	Quantity       int
	IdempotencyKey string
	SentBy         string
}

// SendInstallment applies a partial fulfillment transactionally: it locks the
// requisition and book rows, enforces received+qty <= quantity and
// stock >= qty, records the installment and recomputes the status. A repeated
// idempotency key replays the stored installment without mutating anything.
func (r *RequisitionRepository) SendInstallment(ctx context.Context, params InstallmentParams) (*models.Installment, *models.Requisition, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin installment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if params.IdempotencyKey != "" {
		var existing models.Installment
		err := tx.GetContext(ctx, &existing,
			`SELECT id, requisition_id, quantity, idempotency_key, sent_by, sent_at FROM installments WHERE idempotency_key = $1`,
			params.IdempotencyKey)
		if err == nil {
			requisition, loadErr := r.getForUpdate(ctx, tx, existing.RequisitionID)
			if loadErr != nil {
				return nil, nil, loadErr
			}
			if commitErr := tx.Commit(); commitErr != nil {
				return nil, nil, fmt.Errorf("commit installment replay: %w", commitErr)
			}
			return &existing, requisition, nil
		}
		if err != sql.ErrNoRows {
			return nil, nil, fmt.Errorf("lookup installment key: %w", err)
		}
	}

	requisition, err := r.getForUpdate(ctx, tx, params.RequisitionID)
	if err != nil {
		return nil, nil, err
	}
	if requisition.Status != models.RequisitionStatusApproved {
		return nil, nil, ErrRequisitionNotApproved
	}
	if params.Quantity > requisition.Remaining() {
		return nil, nil, ErrQuantityExceedsRemaining
	}

	var stock int
	if err := tx.GetContext(ctx, &stock, `SELECT current_stock FROM books WHERE id = $1 FOR UPDATE`, requisition.BookID); err != nil {
		return nil, nil, fmt.Errorf("lock book stock: %w", err)
	}
	if stock < params.Quantity {
		return nil, nil, ErrInsufficientStock
	}

	now := time.Now().UTC()
	installment := &models.Installment{
		ID:             uuid.NewString(),
		RequisitionID:  requisition.ID,
		Quantity:       params.Quantity,
		IdempotencyKey: params.IdempotencyKey,
		SentBy:         params.SentBy,
		SentAt:         now,
	}
	if installment.IdempotencyKey == "" {
		installment.IdempotencyKey = installment.ID
	}
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO installments (id, requisition_id, quantity, idempotency_key, sent_by, sent_at)
VALUES (:id, :requisition_id, :quantity, :idempotency_key, :sent_by, :sent_at)`,
		installment); err != nil {
		return nil, nil, fmt.Errorf("insert installment: %w", err)
	}

	newReceived := requisition.Received + params.Quantity
	newStatus := requisition.Status
	if newReceived >= requisition.Quantity {
		newStatus = models.RequisitionStatusCompleted
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE requisitions SET received = $1, status = $2, updated_at = $3 WHERE id = $4`,
		newReceived, newStatus, now, requisition.ID); err != nil {
		return nil, nil, fmt.Errorf("update requisition received: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE books SET current_stock = current_stock - $1, updated_at = $2 WHERE id = $3`,
		params.Quantity, now, requisition.BookID); err != nil {
		return nil, nil, fmt.Errorf("decrement book stock: %w", err)
	}

	updated, err := r.getForUpdate(ctx, tx, requisition.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit installment: %w", err)
	}
	return installment, updated, nil
}

func (r *RequisitionRepository) getForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Requisition, error) {
	query := fmt.Sprintf(`SELECT %s FROM requisitions r WHERE r.id = $1 FOR UPDATE`, requisitionColumns)
	var requisition models.Requisition
	if err := tx.GetContext(ctx, &requisition, query, id); err != nil {
		return nil, err
	}
	return &requisition, nil
}
