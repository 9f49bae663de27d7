package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/pawhaven/petclass-api/internal/models"
	appErrors "github.com/pawhaven/petclass-api/pkg/errors"
	"github.com/pawhaven/petclass-api/pkg/export"
)

type classRepository interface {
	List(ctx context.Context, tenantID string, filter models.ClassFilter) ([]models.TrainingClass, int, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.TrainingClass, error)
	Create(ctx context.Context, exec sqlx.ExtContext, class *models.TrainingClass) error
	Delete(ctx context.Context, tenantID, id string) error
	CountEnrollments(ctx context.Context, tenantID, classID string) (int, error)
	InsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.ClassSession) error
	DeleteSessionsByClass(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string) error
	ListSessions(ctx context.Context, tenantID, classID string) ([]models.ClassSession, error)
}

type rosterReader interface {
	ListActiveByClass(ctx context.Context, tenantID, classID string) ([]models.Enrollment, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// CreateClassRequest describes the class creation payload. The session
// schedule is generated from the recurrence fields.
type CreateClassRequest struct {
	Name            string  `json:"name" validate:"required"`
	Description     string  `json:"description"`
	MaxCapacity     int     `json:"max_capacity" validate:"required,gt=0"`
	PricePerSeries  float64 `json:"price_per_series" validate:"gte=0"`
	StartDate       string  `json:"start_date" validate:"required"`
	TotalWeeks      int     `json:"total_weeks" validate:"required,gt=0"`
	DaysOfWeek      []int   `json:"days_of_week" validate:"required,min=1"`
	StartTime       string  `json:"start_time" validate:"required"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,gt=0"`
}

// ClassService owns the training class aggregate and its sessions.
type ClassService struct {
	repo      classRepository
	roster    rosterReader
	tx        txProvider
	cache     *CacheService
	cacheTTL  time.Duration
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, roster rosterReader, tx txProvider, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ClassService{
		repo:      repo,
		roster:    roster,
		tx:        tx,
		cache:     cache,
		cacheTTL:  cacheTTL,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

func classCacheKey(tenantID, classID string) string {
	return fmt.Sprintf("classes:%s:%s", tenantID, classID)
}

// Create persists a new class together with its generated session
// schedule in a single transaction.
func (s *ClassService) Create(ctx context.Context, tenantID string, req CreateClassRequest) (*models.TrainingClass, error) {
	if tenantID == "" {
		return nil, appErrors.ErrTenantRequired
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}

	class := &models.TrainingClass{
		TenantID:        tenantID,
		Name:            req.Name,
		Description:     req.Description,
		MaxCapacity:     req.MaxCapacity,
		CurrentEnrolled: 0,
		PricePerSeries:  req.PricePerSeries,
		StartDate:       startDate,
		TotalWeeks:      req.TotalWeeks,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	}
	for _, day := range req.DaysOfWeek {
		class.DaysOfWeek = append(class.DaysOfWeek, int64(day))
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.repo.Create(ctx, tx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	sessions, err := GenerateSessions(tenantID, class.ID, ScheduleSpec{
		StartDate:       startDate,
		TotalWeeks:      req.TotalWeeks,
		DaysOfWeek:      req.DaysOfWeek,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return nil, err
	}
	// Delete-then-insert keeps regeneration idempotent: numbers stay 1..N.
	if err := s.repo.DeleteSessionsByClass(ctx, tx, tenantID, class.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset sessions")
	}
	if err := s.repo.InsertSessions(ctx, tx, sessions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist sessions")
	}
	class.TotalSessions = len(sessions)
	if _, err := tx.ExecContext(ctx, `UPDATE training_classes SET total_sessions = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, class.ID, class.TotalSessions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record session count")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit class")
	}
	return class, nil
}

// Get returns a class by ID, serving from cache when possible.
func (s *ClassService) Get(ctx context.Context, tenantID, id string) (*models.TrainingClass, error) {
	if tenantID == "" {
		return nil, appErrors.ErrTenantRequired
	}
	key := classCacheKey(tenantID, id)
	var cached models.TrainingClass
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	class, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	_ = s.cache.Set(ctx, key, class, s.cacheTTL)
	return class, nil
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, tenantID string, filter models.ClassFilter) ([]models.TrainingClass, *models.Pagination, error) {
	if tenantID == "" {
		return nil, nil, appErrors.ErrTenantRequired
	}
	classes, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListSessions returns the ordered schedule of a class.
func (s *ClassService) ListSessions(ctx context.Context, tenantID, classID string) ([]models.ClassSession, error) {
	if tenantID == "" {
		return nil, appErrors.ErrTenantRequired
	}
	if _, err := s.Get(ctx, tenantID, classID); err != nil {
		return nil, err
	}
	sessions, err := s.repo.ListSessions(ctx, tenantID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Delete removes a class. Classes with any enrollment history are kept;
// deletion is rejected rather than cascaded.
func (s *ClassService) Delete(ctx context.Context, tenantID, id string) error {
	if tenantID == "" {
		return appErrors.ErrTenantRequired
	}
	count, err := s.repo.CountEnrollments(ctx, tenantID, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "class has enrollments and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	_ = s.cache.Invalidate(ctx, classCacheKey(tenantID, id))
	return nil
}

// InvalidateCache drops the cached class detail after seat mutations.
func (s *ClassService) InvalidateCache(ctx context.Context, tenantID, classID string) {
	_ = s.cache.Invalidate(ctx, classCacheKey(tenantID, classID))
}

// ExportRoster renders the active roster of a class as CSV or PDF.
func (s *ClassService) ExportRoster(ctx context.Context, tenantID, classID, format string) ([]byte, string, error) {
	if tenantID == "" {
		return nil, "", appErrors.ErrTenantRequired
	}
	class, err := s.Get(ctx, tenantID, classID)
	if err != nil {
		return nil, "", err
	}
	enrollments, err := s.roster.ListActiveByClass(ctx, tenantID, classID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{
		Headers: []string{"Pet ID", "Customer ID", "Payment Status", "Amount Paid", "Amount Due", "Enrolled At"},
	}
	for _, e := range enrollments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Pet ID":         e.PetID,
			"Customer ID":    e.CustomerID,
			"Payment Status": string(e.PaymentStatus),
			"Amount Paid":    fmt.Sprintf("%.2f", e.AmountPaid),
			"Amount Due":     fmt.Sprintf("%.2f", e.AmountDue),
			"Enrolled At":    e.EnrolledAt.Format(time.RFC3339),
		})
	}

	switch format {
	case "pdf":
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Roster - %s", class.Name))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
