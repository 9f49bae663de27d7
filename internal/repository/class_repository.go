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

// ClassRepository manages persistence for training classes and their sessions.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching filter criteria for a tenant.
func (r *ClassRepository) List(ctx context.Context, tenantID string, filter models.ClassFilter) ([]models.TrainingClass, int, error) {
	base := "FROM training_classes WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"start_date": true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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

	query := fmt.Sprintf(`SELECT id, tenant_id, name, description, max_capacity, current_enrolled, price_per_series,
        total_sessions, start_date, total_weeks, days_of_week, start_time, duration_minutes, created_at, updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, sortBy, order, size, offset)
	var classes []models.TrainingClass
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class record by ID scoped to the tenant.
func (r *ClassRepository) FindByID(ctx context.Context, tenantID, id string) (*models.TrainingClass, error) {
	const query = `SELECT id, tenant_id, name, description, max_capacity, current_enrolled, price_per_series,
        total_sessions, start_date, total_weeks, days_of_week, start_time, duration_minutes, created_at, updated_at
        FROM training_classes WHERE tenant_id = $1 AND id = $2`
	var class models.TrainingClass
	if err := r.db.GetContext(ctx, &class, query, tenantID, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create persists a class record.
func (r *ClassRepository) Create(ctx context.Context, exec sqlx.ExtContext, class *models.TrainingClass) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO training_classes (id, tenant_id, name, description, max_capacity, current_enrolled,
        price_per_series, total_sessions, start_date, total_weeks, days_of_week, start_time, duration_minutes, created_at, updated_at)
        VALUES (:id, :tenant_id, :name, :description, :max_capacity, :current_enrolled, :price_per_series,
        :total_sessions, :start_date, :total_weeks, :days_of_week, :start_time, :duration_minutes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Lock acquires the class row lock for the current transaction. Waitlist
// mutations take it first so position assignment and compaction serialize
// per class; a plain MAX(position) read under READ COMMITTED would let two
// concurrent joins observe the same tail.
func (r *ClassRepository) Lock(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string) error {
	const query = `SELECT id FROM training_classes WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	var id string
	if err := sqlx.GetContext(ctx, exec, &id, query, tenantID, classID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock class row: %w", err)
	}
	return nil
}

// ReserveSeat atomically claims one seat when capacity allows. The
// conditional update is the only admission gate; callers must never
// pre-check the counter and insert separately.
func (r *ClassRepository) ReserveSeat(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string) (bool, error) {
	const query = `UPDATE training_classes SET current_enrolled = current_enrolled + 1, updated_at = $3
        WHERE tenant_id = $1 AND id = $2 AND current_enrolled < max_capacity`
	res, err := exec.ExecContext(ctx, query, tenantID, classID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve seat rows: %w", err)
	}
	return affected == 1, nil
}

// ReleaseSeat returns one seat to the class. Zero rows affected means the
// class is missing or the counter is already at zero, which indicates a
// caller bug rather than a business outcome.
func (r *ClassRepository) ReleaseSeat(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string) error {
	const query = `UPDATE training_classes SET current_enrolled = current_enrolled - 1, updated_at = $3
        WHERE tenant_id = $1 AND id = $2 AND current_enrolled > 0`
	res, err := exec.ExecContext(ctx, query, tenantID, classID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release seat rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("release seat: class %s has no seats to release", classID)
	}
	return nil
}

// CountEnrollments returns the number of enrollment rows (any status)
// referencing the class. Used to guard class deletion.
func (r *ClassRepository) CountEnrollments(ctx context.Context, tenantID, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_enrollments WHERE tenant_id = $1 AND class_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tenantID, classID); err != nil {
		return 0, fmt.Errorf("count class enrollments: %w", err)
	}
	return count, nil
}

// Delete removes a class record.
func (r *ClassRepository) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM training_classes WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete class rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertSessions persists a generated session batch for a class.
func (r *ClassRepository) InsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.ClassSession) error {
	if len(sessions) == 0 {
		return nil
	}
	const query = `INSERT INTO class_sessions (id, tenant_id, class_id, session_number, scheduled_date, scheduled_time, duration_minutes)
        VALUES (:id, :tenant_id, :class_id, :session_number, :scheduled_date, :scheduled_time, :duration_minutes)`
	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = uuid.NewString()
		}
	}
	if _, err := sqlx.NamedExecContext(ctx, exec, query, sessions); err != nil {
		return fmt.Errorf("insert class sessions: %w", err)
	}
	return nil
}

// DeleteSessionsByClass removes all sessions for a class. Regeneration
// deletes before inserting so session numbers stay gapless.
func (r *ClassRepository) DeleteSessionsByClass(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM class_sessions WHERE tenant_id = $1 AND class_id = $2`, tenantID, classID); err != nil {
		return fmt.Errorf("delete class sessions: %w", err)
	}
	return nil
}

// ListSessions returns the ordered session schedule for a class.
func (r *ClassRepository) ListSessions(ctx context.Context, tenantID, classID string) ([]models.ClassSession, error) {
	const query = `SELECT id, tenant_id, class_id, session_number, scheduled_date, scheduled_time, duration_minutes
        FROM class_sessions WHERE tenant_id = $1 AND class_id = $2 ORDER BY session_number ASC`
	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, tenantID, classID); err != nil {
		return nil, fmt.Errorf("list class sessions: %w", err)
	}
	return sessions, nil
}
