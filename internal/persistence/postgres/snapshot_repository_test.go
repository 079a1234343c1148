package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-signals/signals_service/internal/infrastructure/store"
	"go.uber.org/zap/zaptest"
)

func newMockRepo(t *testing.T) (*SnapshotRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSnapshotRepository(sqlx.NewDb(db, "postgres"), zaptest.NewLogger(t)), mock
}

func TestSnapshotRepository_Read(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM snapshots WHERE name = $1`)).
		WithArgs("portfolios").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"1":{}}`)))

	data, err := repo.Read(context.Background(), "portfolios")
	require.NoError(t, err)
	assert.Equal(t, `{"1":{}}`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_ReadMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM snapshots WHERE name = $1`)).
		WithArgs("subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	_, err := repo.Read(context.Background(), "subscriptions")
	assert.ErrorIs(t, err, store.ErrNotExist)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_Write(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO snapshots`)).
		WithArgs("portfolios", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Write(context.Background(), "portfolios", []byte(`{}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_WriteFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO snapshots`)).
		WithArgs("portfolios", []byte(`{}`)).
		WillReturnError(errors.New("connection reset"))

	err := repo.Write(context.Background(), "portfolios", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
