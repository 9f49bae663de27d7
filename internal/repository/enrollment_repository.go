package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pawhaven/petclass-api/internal/models"
)

// EnrollmentRepository handles persistence of class enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, tenant_id, class_id, pet_id, customer_id, amount_paid, amount_due,
        payment_status, status, total_sessions, notes, enrolled_at, dropped_at`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, tenantID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := "FROM class_enrollments WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filter.ClassID != "" {
		base += fmt.Sprintf(" AND class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.PetID != "" {
		base += fmt.Sprintf(" AND pet_id = $%d", len(args)+1)
		args = append(args, filter.PetID)
	}
	if filter.CustomerID != "" {
		base += fmt.Sprintf(" AND customer_id = $%d", len(args)+1)
		args = append(args, filter.CustomerID)
	}
	if filter.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"enrolled_at": true,
		"status":      true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", enrollmentColumns, base, sortBy, order, size, offset)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID scoped to the tenant.
func (r *EnrollmentRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM class_enrollments WHERE tenant_id = $1 AND id = $2", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, tenantID, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive checks whether the pet already holds an ACTIVE enrollment
// in the class. Run it on the admission transaction after the seat
// reservation: the class row lock serializes concurrent enrolls, so the
// probe cannot miss a competing insert.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, exec sqlx.ExtContext, tenantID, classID, petID string) (bool, error) {
	const query = `SELECT 1 FROM class_enrollments WHERE tenant_id = $1 AND class_id = $2 AND pet_id = $3 AND status = $4 LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, exec, &exists, query, tenantID, classID, petID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO class_enrollments (id, tenant_id, class_id, pet_id, customer_id, amount_paid, amount_due,
        payment_status, status, total_sessions, notes, enrolled_at, dropped_at)
        VALUES (:id, :tenant_id, :class_id, :pet_id, :customer_id, :amount_paid, :amount_due,
        :payment_status, :status, :total_sessions, :notes, :enrolled_at, :dropped_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// MarkDropped transitions an ACTIVE enrollment to DROPPED, appending the
// drop reason to the notes. Zero rows affected means the enrollment was
// missing or already terminal.
func (r *EnrollmentRepository) MarkDropped(ctx context.Context, exec sqlx.ExtContext, tenantID, id, reason string, droppedAt time.Time) (bool, error) {
	const query = `UPDATE class_enrollments
        SET status = $4, dropped_at = $5,
            notes = CASE WHEN notes = '' THEN $6 ELSE notes || E'\n' || $6 END
        WHERE tenant_id = $1 AND id = $2 AND status = $3`
	note := fmt.Sprintf("Dropped: %s", reason)
	res, err := exec.ExecContext(ctx, query, tenantID, id, models.EnrollmentStatusActive, models.EnrollmentStatusDropped, droppedAt, note)
	if err != nil {
		return false, fmt.Errorf("mark enrollment dropped: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark dropped rows: %w", err)
	}
	return affected == 1, nil
}

// ListActiveByClass returns the active roster of a class.
func (r *EnrollmentRepository) ListActiveByClass(ctx context.Context, tenantID, classID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_enrollments WHERE tenant_id = $1 AND class_id = $2 AND status = $3 ORDER BY enrolled_at ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, tenantID, classID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return enrollments, nil
}
