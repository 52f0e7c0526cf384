package repository

import (
	"context"
	"errors"
	"testing"

	"mockmaster/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Storage I/O failures cannot be provoked through a healthy sqlite file, so
// these paths run against sqlmock.
func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Store{
		db:       sqlx.NewDb(db, "sqlmock"),
		logger:   zap.NewNop(),
		notifier: newNotifier(),
	}, mock
}

func TestUpdateSurfacesStorageError(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec("UPDATE questions SET").
		WillReturnError(errors.New("disk I/O error"))

	question := "q"
	err := store.Update(context.Background(), 1, domain.QuestionUpdate{Question: &question})
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSurfacesStorageError(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM questions").
		WillReturnError(errors.New("database is locked"))

	_, err := store.List(context.Background(), false)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}
