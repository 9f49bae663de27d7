package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/pawhaven/petclass-api/internal/models"
	appErrors "github.com/pawhaven/petclass-api/pkg/errors"
)

type waitlistRepository interface {
	Exists(ctx context.Context, tenantID, classID, petID string) (bool, error)
	Enqueue(ctx context.Context, exec sqlx.ExtContext, entry *models.WaitlistEntry) error
	FindByID(ctx context.Context, tenantID, id string) (*models.WaitlistEntry, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.WaitlistEntry, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error
	ShiftPositionsAfter(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string, removedPosition int) error
	PeekHead(ctx context.Context, tenantID, classID string) (*models.WaitlistEntry, error)
	MarkNotified(ctx context.Context, tenantID, id string, at time.Time) error
	ListByClass(ctx context.Context, tenantID, classID string) ([]models.WaitlistEntry, error)
}

type waitlistClassReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.TrainingClass, error)
	Lock(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string) error
}

// JoinWaitlistRequest describes the waitlist join payload.
type JoinWaitlistRequest struct {
	ClassID    string `json:"class_id" validate:"required"`
	PetID      string `json:"pet_id" validate:"required"`
	CustomerID string `json:"customer_id" validate:"required"`
}

// WaitlistService maintains per-class FIFO waitlists with gapless
// 1-based positions.
type WaitlistService struct {
	repo      waitlistRepository
	classes   waitlistClassReader
	tx        txProvider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWaitlistService constructs WaitlistService.
func NewWaitlistService(repo waitlistRepository, classes waitlistClassReader, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *WaitlistService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{repo: repo, classes: classes, tx: tx, metrics: metrics, validator: validate, logger: logger}
}

// Join appends a pet to the tail of a class waitlist. The transaction
// takes the class row lock before computing the tail position, so
// concurrent joins and removals for the same class run one at a time
// and no two entries can receive the same position.
func (s *WaitlistService) Join(ctx context.Context, tenantID string, req JoinWaitlistRequest) (*models.WaitlistEntry, error) {
	if tenantID == "" {
		return nil, appErrors.ErrTenantRequired
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waitlist payload")
	}
	if _, err := s.classes.FindByID(ctx, tenantID, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	exists, err := s.repo.Exists(ctx, tenantID, req.ClassID, req.PetID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check waitlist")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "pet is already on the waitlist for this class")
	}

	entry := &models.WaitlistEntry{
		TenantID:   tenantID,
		ClassID:    req.ClassID,
		PetID:      req.PetID,
		CustomerID: req.CustomerID,
		Status:     models.WaitlistStatusWaiting,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.classes.Lock(ctx, tx, tenantID, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock class")
	}
	if err := s.repo.Enqueue(ctx, tx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join waitlist")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit waitlist join")
	}

	s.refreshDepth(ctx, tenantID, req.ClassID)
	return entry, nil
}

// Leave removes an entry and closes the position gap it leaves behind.
// Delete and compaction commit as one transaction under the class row
// lock: without the lock a concurrent join could snapshot the old tail
// and commit a position the shift never saw.
func (s *WaitlistService) Leave(ctx context.Context, tenantID, entryID string) error {
	if tenantID == "" {
		return appErrors.ErrTenantRequired
	}
	found, err := s.repo.FindByID(ctx, tenantID, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	// Class lock first, same order as every other waitlist mutation.
	if err := s.classes.Lock(ctx, tx, tenantID, found.ClassID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock class")
	}

	entry, err := s.repo.FindByIDForUpdate(ctx, tx, tenantID, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if err := s.repo.Delete(ctx, tx, tenantID, entryID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove waitlist entry")
	}
	if err := s.repo.ShiftPositionsAfter(ctx, tx, tenantID, entry.ClassID, entry.Position); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compact waitlist")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit waitlist removal")
	}

	s.refreshDepth(ctx, tenantID, entry.ClassID)
	return nil
}

// List returns a class waitlist ordered by position ascending.
func (s *WaitlistService) List(ctx context.Context, tenantID, classID string) ([]models.WaitlistEntry, error) {
	if tenantID == "" {
		return nil, appErrors.ErrTenantRequired
	}
	if _, err := s.classes.FindByID(ctx, tenantID, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	entries, err := s.repo.ListByClass(ctx, tenantID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	return entries, nil
}

func (s *WaitlistService) refreshDepth(ctx context.Context, tenantID, classID string) {
	entries, err := s.repo.ListByClass(ctx, tenantID, classID)
	if err != nil {
		return
	}
	s.metrics.SetWaitlistDepth(classID, len(entries))
}
