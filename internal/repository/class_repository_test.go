package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestClassRepositoryReserveSeatGranted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(`UPDATE training_classes SET current_enrolled = current_enrolled \+ 1`).
		WithArgs("tenant-1", "class-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	granted, err := repo.ReserveSeat(context.Background(), db, "tenant-1", "class-1")
	require.NoError(t, err)
	assert.True(t, granted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryReserveSeatFull(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	// The capacity guard matched no rows: the class is at max_capacity.
	mock.ExpectExec(`UPDATE training_classes SET current_enrolled = current_enrolled \+ 1`).
		WithArgs("tenant-1", "class-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	granted, err := repo.ReserveSeat(context.Background(), db, "tenant-1", "class-1")
	require.NoError(t, err)
	assert.False(t, granted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryReleaseSeat(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(`UPDATE training_classes SET current_enrolled = current_enrolled - 1`).
		WithArgs("tenant-1", "class-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReleaseSeat(context.Background(), db, "tenant-1", "class-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryReleaseSeatNothingToRelease(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(`UPDATE training_classes SET current_enrolled = current_enrolled - 1`).
		WithArgs("tenant-1", "class-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ReleaseSeat(context.Background(), db, "tenant-1", "class-1")
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryLock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(`SELECT id FROM training_classes WHERE tenant_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("tenant-1", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("class-1"))

	require.NoError(t, repo.Lock(context.Background(), db, "tenant-1", "class-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryLockMissingClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(`SELECT id FROM training_classes WHERE tenant_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("tenant-1", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.Lock(context.Background(), db, "tenant-1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "description", "max_capacity", "current_enrolled",
		"price_per_series", "total_sessions", "start_date", "total_weeks", "days_of_week", "start_time",
		"duration_minutes", "created_at", "updated_at"}).
		AddRow("class-1", "tenant-1", "Puppy Basics", "", 8, 3, 180.0, 4, time.Now(), 2, "{1,3}", "10:00", 60, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT id, tenant_id, name, description, max_capacity, current_enrolled, price_per_series`).
		WithArgs("tenant-1", "class-1").
		WillReturnRows(rows)

	class, err := repo.FindByID(context.Background(), "tenant-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, "Puppy Basics", class.Name)
	assert.Equal(t, 5, class.SeatsAvailable())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(`DELETE FROM training_classes WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs("tenant-1", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "tenant-1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCountEnrollments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM class_enrollments WHERE tenant_id = \$1 AND class_id = \$2`).
		WithArgs("tenant-1", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := repo.CountEnrollments(context.Background(), "tenant-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
