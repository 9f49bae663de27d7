package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pawhaven/petclass-api/internal/models"
	appErrors "github.com/pawhaven/petclass-api/pkg/errors"
)

type mockClassRepo struct {
	class           *models.TrainingClass
	created         *models.TrainingClass
	enrollmentCount int
	deleted         bool
	sessions        []models.ClassSession
	sessionsCleared bool
}

func (m *mockClassRepo) List(ctx context.Context, tenantID string, filter models.ClassFilter) ([]models.TrainingClass, int, error) {
	if m.class == nil {
		return nil, 0, nil
	}
	return []models.TrainingClass{*m.class}, 1, nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, tenantID, id string) (*models.TrainingClass, error) {
	if m.class == nil {
		return nil, sql.ErrNoRows
	}
	return m.class, nil
}

func (m *mockClassRepo) Create(ctx context.Context, exec sqlx.ExtContext, class *models.TrainingClass) error {
	class.ID = "class-1"
	m.created = class
	return nil
}

func (m *mockClassRepo) Delete(ctx context.Context, tenantID, id string) error {
	if m.class == nil {
		return sql.ErrNoRows
	}
	m.deleted = true
	return nil
}

func (m *mockClassRepo) CountEnrollments(ctx context.Context, tenantID, classID string) (int, error) {
	return m.enrollmentCount, nil
}

func (m *mockClassRepo) InsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.ClassSession) error {
	m.sessions = sessions
	return nil
}

func (m *mockClassRepo) DeleteSessionsByClass(ctx context.Context, exec sqlx.ExtContext, tenantID, classID string) error {
	m.sessionsCleared = true
	return nil
}

func (m *mockClassRepo) ListSessions(ctx context.Context, tenantID, classID string) ([]models.ClassSession, error) {
	return m.sessions, nil
}

type mockRosterReader struct {
	roster []models.Enrollment
}

func (m *mockRosterReader) ListActiveByClass(ctx context.Context, tenantID, classID string) ([]models.Enrollment, error) {
	return m.roster, nil
}

func newClassServiceFixture(t *testing.T) (*ClassService, *mockClassRepo, *mockRosterReader, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, cleanup := newTxMock(t)
	t.Cleanup(cleanup)
	repo := &mockClassRepo{}
	roster := &mockRosterReader{}
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	svc := NewClassService(repo, roster, db, cache, 0, validator.New(), zap.NewNop())
	return svc, repo, roster, mock
}

func TestClassServiceCreateGeneratesSessions(t *testing.T) {
	svc, repo, _, mock := newClassServiceFixture(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE training_classes SET total_sessions").
		WithArgs("tenant-1", "class-1", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	class, err := svc.Create(context.Background(), "tenant-1", CreateClassRequest{
		Name:            "Puppy Basics",
		MaxCapacity:     8,
		PricePerSeries:  180,
		StartDate:       "2026-03-02",
		TotalWeeks:      2,
		DaysOfWeek:      []int{1, 3},
		StartTime:       "10:00",
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, "class-1", class.ID)
	assert.Equal(t, 4, class.TotalSessions)
	assert.Equal(t, 0, class.CurrentEnrolled)
	assert.True(t, repo.sessionsCleared)
	require.Len(t, repo.sessions, 4)
	assert.Equal(t, 1, repo.sessions[0].SessionNumber)
	assert.Equal(t, 4, repo.sessions[3].SessionNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassServiceCreateRejectsBadStartDate(t *testing.T) {
	svc, _, _, _ := newClassServiceFixture(t)

	_, err := svc.Create(context.Background(), "tenant-1", CreateClassRequest{
		Name:            "Puppy Basics",
		MaxCapacity:     8,
		StartDate:       "03/02/2026",
		TotalWeeks:      2,
		DaysOfWeek:      []int{1},
		StartTime:       "10:00",
		DurationMinutes: 60,
	})
	requireAppError(t, err, appErrors.ErrValidation.Code, "start_date must be YYYY-MM-DD")
}

func TestClassServiceDeleteGuardedByEnrollments(t *testing.T) {
	svc, repo, _, _ := newClassServiceFixture(t)
	repo.class = &models.TrainingClass{ID: "class-1"}
	repo.enrollmentCount = 3

	err := svc.Delete(context.Background(), "tenant-1", "class-1")
	requireAppError(t, err, appErrors.ErrConflict.Code, "class has enrollments and cannot be deleted")
	assert.False(t, repo.deleted)
}

func TestClassServiceDeleteWithoutEnrollments(t *testing.T) {
	svc, repo, _, _ := newClassServiceFixture(t)
	repo.class = &models.TrainingClass{ID: "class-1"}

	require.NoError(t, svc.Delete(context.Background(), "tenant-1", "class-1"))
	assert.True(t, repo.deleted)
}

func TestClassServiceGetNotFound(t *testing.T) {
	svc, _, _, _ := newClassServiceFixture(t)

	_, err := svc.Get(context.Background(), "tenant-1", "missing")
	requireAppError(t, err, appErrors.ErrNotFound.Code, "class not found")
}

func TestClassServiceExportRosterCSV(t *testing.T) {
	svc, repo, roster, _ := newClassServiceFixture(t)
	repo.class = &models.TrainingClass{ID: "class-1", Name: "Agility"}
	roster.roster = []models.Enrollment{
		{PetID: "pet-1", CustomerID: "cust-1", PaymentStatus: models.PaymentStatusPaid, AmountPaid: 100, AmountDue: 100},
	}

	payload, contentType, err := svc.ExportRoster(context.Background(), "tenant-1", "class-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.True(t, strings.Contains(string(payload), "pet-1"))
	assert.True(t, strings.Contains(string(payload), "PAID"))
}

func TestClassServiceExportRosterUnknownFormat(t *testing.T) {
	svc, repo, _, _ := newClassServiceFixture(t)
	repo.class = &models.TrainingClass{ID: "class-1", Name: "Agility"}

	_, _, err := svc.ExportRoster(context.Background(), "tenant-1", "class-1", "xlsx")
	requireAppError(t, err, appErrors.ErrValidation.Code, "format must be csv or pdf")
}
