package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pawhaven/petclass-api/internal/models"
)

// WaitlistRepository handles persistence of per-class FIFO waitlists.
// Positions within a class must stay gapless 1..K; every mutation here
// is written so the invariant holds after commit.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

const waitlistColumns = `id, tenant_id, class_id, pet_id, customer_id, position, status, notified, notified_at, created_at`

// Exists checks whether the pet already occupies a waitlist slot for the class.
func (r *WaitlistRepository) Exists(ctx context.Context, tenantID, classID, petID string) (bool, error) {
	const query = `SELECT 1 FROM class_waitlist WHERE tenant_id = $1 AND class_id = $2 AND pet_id = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, tenantID, classID, petID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check waitlist entry: %w", err)
	}
	return true, nil
}

// Enqueue appends the pet to the tail of the class waitlist. The position
// is computed inside the INSERT. Callers must hold the class row lock in
// the same transaction: the MAX(position) snapshot alone does not stop two
// concurrent joins from observing the same tail.
func (r *WaitlistRepository) Enqueue(ctx context.Context, exec sqlx.ExtContext, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = models.WaitlistStatusWaiting
	}
	const query = `INSERT INTO class_waitlist (id, tenant_id, class_id, pet_id, customer_id, position, status, notified, created_at)
        SELECT $1, $2, $3, $4, $5, COALESCE(MAX(position), 0) + 1, $6, FALSE, $7
        FROM class_waitlist WHERE tenant_id = $2 AND class_id = $3
        RETURNING position`
	row := exec.QueryRowxContext(ctx, query,
		entry.ID, entry.TenantID, entry.ClassID, entry.PetID, entry.CustomerID, entry.Status, entry.CreatedAt)
	if err := row.Scan(&entry.Position); err != nil {
		return fmt.Errorf("enqueue waitlist entry: %w", err)
	}
	return nil
}

// FindByID returns a waitlist entry by ID scoped to the tenant.
func (r *WaitlistRepository) FindByID(ctx context.Context, tenantID, id string) (*models.WaitlistEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM class_waitlist WHERE tenant_id = $1 AND id = $2", waitlistColumns)
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, tenantID, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByIDForUpdate locks the entry row for the current transaction.
func (r *WaitlistRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.WaitlistEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM class_waitlist WHERE tenant_id = $1 AND id = $2 FOR UPDATE", waitlistColumns)
	var entry models.WaitlistEntry
	if err := sqlx.GetContext(ctx, exec, &entry, query, tenantID, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByClassAndPetForUpdate locks the pet's entry in the class, if any.
func (r *WaitlistRepository) FindByClassAndPetForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, classID, petID string) (*models.WaitlistEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM class_waitlist WHERE tenant_id = $1 AND class_id = $2 AND pet_id = $3 FOR UPDATE", waitlistColumns)
	var entry models.WaitlistEntry
	if err := sqlx.GetContext(ctx, exec, &entry, query, tenantID, classID, petID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes a single entry. Callers must compact positions in the
// same transaction; use ShiftPositionsAfter.
func (r *WaitlistRepository) Delete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error {
	res, err := exec.ExecContext(ctx, `DELETE FROM class_waitlist WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete waitlist rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ShiftPositionsAfter closes the gap left by a removed entry: every entry
// in the class with a higher position moves down by exactly one.
func (r *WaitlistRepository) ShiftPositionsAfter(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string, removedPosition int) error {
	const query = `UPDATE class_waitlist SET position = position - 1
        WHERE tenant_id = $1 AND class_id = $2 AND position > $3`
	if _, err := exec.ExecContext(ctx, query, tenantID, classID, removedPosition); err != nil {
		return fmt.Errorf("compact waitlist positions: %w", err)
	}
	return nil
}

// PeekHead returns the WAITING entry with the lowest position, or
// sql.ErrNoRows when the waitlist is empty.
func (r *WaitlistRepository) PeekHead(ctx context.Context, tenantID, classID string) (*models.WaitlistEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_waitlist WHERE tenant_id = $1 AND class_id = $2 AND status = $3
        ORDER BY position ASC LIMIT 1`, waitlistColumns)
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, tenantID, classID, models.WaitlistStatusWaiting); err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkNotified flags the entry as notified with the given timestamp.
// Position and status are left untouched.
func (r *WaitlistRepository) MarkNotified(ctx context.Context, tenantID, id string, at time.Time) error {
	const query = `UPDATE class_waitlist SET notified = TRUE, notified_at = $3 WHERE tenant_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, tenantID, id, at); err != nil {
		return fmt.Errorf("mark waitlist notified: %w", err)
	}
	return nil
}

// ListByClass returns the class waitlist ordered by position ascending.
func (r *WaitlistRepository) ListByClass(ctx context.Context, tenantID, classID string) ([]models.WaitlistEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_waitlist WHERE tenant_id = $1 AND class_id = $2 ORDER BY position ASC`, waitlistColumns)
	var entries []models.WaitlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, tenantID, classID); err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return entries, nil
}
