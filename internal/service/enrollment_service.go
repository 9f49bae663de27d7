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

type enrollmentRepository interface {
	List(ctx context.Context, tenantID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, exec sqlx.ExtContext, tenantID, classID, petID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	MarkDropped(ctx context.Context, exec sqlx.ExtContext, tenantID, id, reason string, droppedAt time.Time) (bool, error)
}

// seatRegistry is the class repository surface the admission controller
// needs: reads plus the two atomic seat operations.
type seatRegistry interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.TrainingClass, error)
	ReserveSeat(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string) (bool, error)
	ReleaseSeat(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string) error
}

// waitlistQueue is the waitlist repository surface used for the silent
// purge on admission and the head promotion on drop.
type waitlistQueue interface {
	FindByClassAndPetForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, classID, petID string) (*models.WaitlistEntry, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error
	ShiftPositionsAfter(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string, removedPosition int) error
	PeekHead(ctx context.Context, tenantID, classID string) (*models.WaitlistEntry, error)
	MarkNotified(ctx context.Context, tenantID, id string, at time.Time) error
}

type classCacheInvalidator interface {
	InvalidateCache(ctx context.Context, tenantID, classID string)
}

type notificationDispatcher interface {
	Dispatch(tenantID string, payload models.WaitlistNotification)
}

// EnrollRequest describes the admission payload.
type EnrollRequest struct {
	ClassID    string  `json:"class_id" validate:"required"`
	PetID      string  `json:"pet_id" validate:"required"`
	CustomerID string  `json:"customer_id" validate:"required"`
	AmountPaid float64 `json:"amount_paid" validate:"gte=0"`
}

// DropRequest carries the reason recorded on the enrollment notes.
type DropRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// EnrollmentService is the admission controller: it owns the capacity
// gate, payment derivation and the waitlist coordination around
// enrollment lifecycle changes.
type EnrollmentService struct {
	repo          enrollmentRepository
	classes       seatRegistry
	waitlist      waitlistQueue
	tx            txProvider
	cache         classCacheInvalidator
	notifications notificationDispatcher
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, classes seatRegistry, waitlist waitlistQueue, tx txProvider, cache classCacheInvalidator, notifications notificationDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:          repo,
		classes:       classes,
		waitlist:      waitlist,
		tx:            tx,
		cache:         cache,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// derivePaymentStatus applies the admission payment rule: the series is
// PAID when the amount covers the snapshot price, including overpayment
// and the zero-price edge case.
func derivePaymentStatus(amountPaid, price float64) models.PaymentStatus {
	if amountPaid >= price {
		return models.PaymentStatusPaid
	}
	return models.PaymentStatusPending
}

// Enroll admits a pet into a class. Seat reservation, enrollment insert
// and the silent waitlist purge commit as one transaction; rolling back
// releases the reserved seat, so no seat is ever held without an ACTIVE
// enrollment.
func (s *EnrollmentService) Enroll(ctx context.Context, tenantID string, req EnrollRequest) (*models.Enrollment, error) {
	if tenantID == "" {
		return nil, appErrors.ErrTenantRequired
	}
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordAdmissionRejection("invalid")
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	class, err := s.classes.FindByID(ctx, tenantID, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	granted, err := s.classes.ReserveSeat(ctx, tx, tenantID, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve seat")
	}
	if !granted {
		s.metrics.RecordAdmissionRejection("full")
		return nil, appErrors.Clone(appErrors.ErrConflict, "class is full")
	}

	// Checked after the reservation on purpose: the class row lock held
	// by the conditional update serializes concurrent enrolls, so a
	// pre-transaction probe could race but this one cannot. Rolling back
	// returns the reserved seat.
	exists, err := s.repo.ExistsActive(ctx, tx, tenantID, req.ClassID, req.PetID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		s.metrics.RecordAdmissionRejection("duplicate")
		return nil, appErrors.Clone(appErrors.ErrConflict, "pet is already enrolled in this class")
	}

	enrollment := &models.Enrollment{
		TenantID:      tenantID,
		ClassID:       req.ClassID,
		PetID:         req.PetID,
		CustomerID:    req.CustomerID,
		AmountPaid:    req.AmountPaid,
		AmountDue:     class.PricePerSeries,
		PaymentStatus: derivePaymentStatus(req.AmountPaid, class.PricePerSeries),
		Status:        models.EnrollmentStatusActive,
		TotalSessions: class.TotalSessions,
		EnrolledAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, tx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	// An admitted pet must not also hold a waitlist slot. The purge
	// compacts positions through the same shift as an explicit leave;
	// the seat reservation above already holds the class row lock, so
	// it cannot interleave with a concurrent join or leave.
	stale, err := s.waitlist.FindByClassAndPetForUpdate(ctx, tx, tenantID, req.ClassID, req.PetID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check waitlist")
	}
	if stale != nil {
		if err := s.waitlist.Delete(ctx, tx, tenantID, stale.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge waitlist entry")
		}
		if err := s.waitlist.ShiftPositionsAfter(ctx, tx, tenantID, req.ClassID, stale.Position); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compact waitlist")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit enrollment")
	}

	s.metrics.RecordSeatReserved()
	s.cache.InvalidateCache(ctx, tenantID, req.ClassID)
	s.logger.Info("pet enrolled",
		zap.String("tenant_id", tenantID),
		zap.String("class_id", req.ClassID),
		zap.String("pet_id", req.PetID),
		zap.String("payment_status", string(enrollment.PaymentStatus)),
	)
	return enrollment, nil
}

// Drop marks an ACTIVE enrollment DROPPED, returns the seat and promotes
// the waitlist head. Promotion is notify-only: the freed seat stays open
// until someone claims it through a regular enroll.
func (s *EnrollmentService) Drop(ctx context.Context, tenantID, enrollmentID string, req DropRequest) (*models.Enrollment, error) {
	if tenantID == "" {
		return nil, appErrors.ErrTenantRequired
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drop payload")
	}

	enrollment, err := s.repo.FindByID(ctx, tenantID, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment is not active")
	}

	droppedAt := time.Now().UTC()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	dropped, err := s.repo.MarkDropped(ctx, tx, tenantID, enrollmentID, req.Reason, droppedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}
	if !dropped {
		// Lost a race with another drop of the same enrollment.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment is not active")
	}
	if err := s.classes.ReleaseSeat(ctx, tx, tenantID, enrollment.ClassID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seat")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit drop")
	}

	s.metrics.RecordSeatReleased()
	s.cache.InvalidateCache(ctx, tenantID, enrollment.ClassID)

	s.promoteHead(ctx, tenantID, enrollment.ClassID)

	enrollment.Status = models.EnrollmentStatusDropped
	enrollment.DroppedAt = &droppedAt
	return enrollment, nil
}

// promoteHead notifies the head of the class waitlist that a seat has
// freed up. Failures are logged only; the drop already succeeded.
func (s *EnrollmentService) promoteHead(ctx context.Context, tenantID, classID string) {
	head, err := s.waitlist.PeekHead(ctx, tenantID, classID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to peek waitlist head", zap.String("class_id", classID), zap.Error(err))
		}
		return
	}

	now := time.Now().UTC()
	if err := s.waitlist.MarkNotified(ctx, tenantID, head.ID, now); err != nil {
		s.logger.Warn("failed to mark waitlist entry notified", zap.String("entry_id", head.ID), zap.Error(err))
		return
	}

	className := ""
	if class, err := s.classes.FindByID(ctx, tenantID, classID); err == nil {
		className = class.Name
	}

	s.notifications.Dispatch(tenantID, models.WaitlistNotification{
		EntryID:    head.ID,
		CustomerID: head.CustomerID,
		PetID:      head.PetID,
		ClassID:    classID,
		ClassName:  className,
		Position:   head.Position,
	})
	s.logger.Info("waitlist head notified",
		zap.String("tenant_id", tenantID),
		zap.String("class_id", classID),
		zap.String("entry_id", head.ID),
		zap.Int("position", head.Position),
	)
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, tenantID string, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	if tenantID == "" {
		return nil, nil, appErrors.ErrTenantRequired
	}
	enrollments, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
