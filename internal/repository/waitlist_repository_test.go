package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhaven/petclass-api/internal/models"
)

func TestWaitlistRepositoryEnqueueAssignsTailPosition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	entry := &models.WaitlistEntry{TenantID: "tenant-1", ClassID: "class-1", PetID: "pet-1", CustomerID: "cust-1"}
	mock.ExpectQuery(`INSERT INTO class_waitlist`).
		WithArgs(sqlmock.AnyArg(), "tenant-1", "class-1", "pet-1", "cust-1", models.WaitlistStatusWaiting, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(3))

	require.NoError(t, repo.Enqueue(context.Background(), db, entry))
	assert.Equal(t, 3, entry.Position)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, models.WaitlistStatusWaiting, entry.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryShiftPositionsAfter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectExec(`UPDATE class_waitlist SET position = position - 1`).
		WithArgs("tenant-1", "class-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.ShiftPositionsAfter(context.Background(), db, "tenant-1", "class-1", 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryPeekHead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "class_id", "pet_id", "customer_id", "position",
		"status", "notified", "notified_at", "created_at"}).
		AddRow("wl-1", "tenant-1", "class-1", "pet-1", "cust-1", 1, models.WaitlistStatusWaiting, false, nil, time.Now())
	mock.ExpectQuery(`FROM class_waitlist WHERE tenant_id = \$1 AND class_id = \$2 AND status = \$3`).
		WithArgs("tenant-1", "class-1", models.WaitlistStatusWaiting).
		WillReturnRows(rows)

	head, err := repo.PeekHead(context.Background(), "tenant-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, "wl-1", head.ID)
	assert.Equal(t, 1, head.Position)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryPeekHeadEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectQuery(`FROM class_waitlist WHERE tenant_id = \$1 AND class_id = \$2 AND status = \$3`).
		WithArgs("tenant-1", "class-1", models.WaitlistStatusWaiting).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.PeekHead(context.Background(), "tenant-1", "class-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectExec(`DELETE FROM class_waitlist WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs("tenant-1", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), db, "tenant-1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryMarkNotified(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE class_waitlist SET notified = TRUE, notified_at = \$3`).
		WithArgs("tenant-1", "wl-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkNotified(context.Background(), "tenant-1", "wl-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}
