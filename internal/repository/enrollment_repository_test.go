package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhaven/petclass-api/internal/models"
)

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`SELECT 1 FROM class_enrollments WHERE tenant_id = \$1 AND class_id = \$2 AND pet_id = \$3 AND status = \$4`).
		WithArgs("tenant-1", "class-1", "pet-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), db, "tenant-1", "class-1", "pet-1")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActiveNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`SELECT 1 FROM class_enrollments WHERE tenant_id = \$1 AND class_id = \$2 AND pet_id = \$3 AND status = \$4`).
		WithArgs("tenant-1", "class-1", "pet-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsActive(context.Background(), db, "tenant-1", "class-1", "pet-1")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMarkDropped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	droppedAt := time.Now().UTC()
	mock.ExpectExec(`UPDATE class_enrollments`).
		WithArgs("tenant-1", "enr-1", models.EnrollmentStatusActive, models.EnrollmentStatusDropped, droppedAt, "Dropped: moved away").
		WillReturnResult(sqlmock.NewResult(0, 1))

	dropped, err := repo.MarkDropped(context.Background(), db, "tenant-1", "enr-1", "moved away", droppedAt)
	require.NoError(t, err)
	assert.True(t, dropped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMarkDroppedAlreadyTerminal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	droppedAt := time.Now().UTC()
	mock.ExpectExec(`UPDATE class_enrollments`).
		WithArgs("tenant-1", "enr-1", models.EnrollmentStatusActive, models.EnrollmentStatusDropped, droppedAt, "Dropped: twice").
		WillReturnResult(sqlmock.NewResult(0, 0))

	dropped, err := repo.MarkDropped(context.Background(), db, "tenant-1", "enr-1", "twice", droppedAt)
	require.NoError(t, err)
	assert.False(t, dropped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListActiveByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "class_id", "pet_id", "customer_id", "amount_paid",
		"amount_due", "payment_status", "status", "total_sessions", "notes", "enrolled_at", "dropped_at"}).
		AddRow("enr-1", "tenant-1", "class-1", "pet-1", "cust-1", 100.0, 100.0,
			models.PaymentStatusPaid, models.EnrollmentStatusActive, 8, "", time.Now(), nil)
	mock.ExpectQuery(`FROM class_enrollments WHERE tenant_id = \$1 AND class_id = \$2 AND status = \$3 ORDER BY enrolled_at ASC`).
		WithArgs("tenant-1", "class-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollments, err := repo.ListActiveByClass(context.Background(), "tenant-1", "class-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, models.PaymentStatusPaid, enrollments[0].PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}
