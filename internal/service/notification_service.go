package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pawhaven/petclass-api/internal/models"
	"github.com/pawhaven/petclass-api/pkg/jobs"
)

// Notifier delivers waitlist notifications to customers. Delivery is an
// external concern; only the payload contract lives here.
type Notifier interface {
	Notify(ctx context.Context, tenantID string, payload models.WaitlistNotification) error
}

// LogNotifier records notifications to the application log. Stands in for
// the real delivery channel in deployments without one configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the payload.
func (n *LogNotifier) Notify(ctx context.Context, tenantID string, payload models.WaitlistNotification) error {
	n.logger.Info("waitlist notification",
		zap.String("tenant_id", tenantID),
		zap.String("entry_id", payload.EntryID),
		zap.String("customer_id", payload.CustomerID),
		zap.String("class_id", payload.ClassID),
		zap.String("class_name", payload.ClassName),
		zap.Int("position", payload.Position),
	)
	return nil
}

type notificationJob struct {
	TenantID string
	Payload  models.WaitlistNotification
}

// NotificationService dispatches waitlist notifications asynchronously.
// Dispatch never fails the calling operation: a seat drop must succeed
// even when delivery is down.
type NotificationService struct {
	notifier Notifier
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
	enabled  bool
}

// NewNotificationService wires the notifier behind an in-memory job queue.
func NewNotificationService(notifier Notifier, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig, enabled bool) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{notifier: notifier, metrics: metrics, logger: logger, enabled: enabled}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("waitlist-notifications", s.handle, cfg)
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Stop()
}

// Dispatch enqueues a notification. Errors are logged, never propagated.
func (s *NotificationService) Dispatch(tenantID string, payload models.WaitlistNotification) {
	if s == nil || !s.enabled {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "waitlist_notification",
		Payload: notificationJob{TenantID: tenantID, Payload: payload},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue waitlist notification",
			zap.String("entry_id", payload.EntryID), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok {
		s.logger.Error("unexpected notification payload type", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.notifier.Notify(ctx, payload.TenantID, payload.Payload); err != nil {
		return err
	}
	s.metrics.RecordWaitlistPromotion()
	return nil
}
