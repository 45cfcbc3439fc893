package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/audit"
)

// A helper function to create a mock postgres connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestMockHandoffStore_GetNotFound(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewHandoffStore(gormDB, audit.NewGormLedger(gormDB), testLimits)

	mock.ExpectQuery(`SELECT \* FROM "handoffs" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Get(context.Background(), "h-404")
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockHandoffStore_GetQueryError(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewHandoffStore(gormDB, audit.NewGormLedger(gormDB), testLimits)

	mock.ExpectQuery(`SELECT \* FROM "handoffs"`).WillReturnError(errors.New("connection reset"))

	_, err := s.Get(context.Background(), "h-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrNotFound))
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockHandoffStore_ExpireNothingPending(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewHandoffStore(gormDB, audit.NewGormLedger(gormDB), testLimits)

	mock.ExpectQuery(`SELECT "id" FROM "handoffs" WHERE status = \$1 AND submitted_at < \$2`).
		WithArgs(Any{}, Any{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	batchID, n, err := s.Expire(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, batchID)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockSubscriptionStore_MarkPushed(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewSubscriptionStore(gormDB, audit.NewGormLedger(gormDB))

	// Nothing to mark, nothing issued.
	require.NoError(t, s.MarkPushed(context.Background(), nil, time.Now()))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "push_subscriptions" SET "last_push_at"=\$1 WHERE id IN \(\$2,\$3\)`).
		WithArgs(Any{}, "s-1", "s-2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, s.MarkPushed(context.Background(), []string{"s-1", "s-2"}, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockSubscriptionStore_ForUserError(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewSubscriptionStore(gormDB, audit.NewGormLedger(gormDB))

	mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
		WithArgs("sup-a").
		WillReturnError(errors.New("timeout"))

	_, err := s.ForUser(context.Background(), "sup-a")
	assert.ErrorContains(t, err, "timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
