package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newSessionRepo(t *testing.T) (*sessionRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewSessionRepository(mock, zaptest.NewLogger(t)).(*sessionRepository), mock
}

func TestSessionRepository_GetOrCreateReturnsExistingToken(t *testing.T) {
	repo, mock := newSessionRepo(t)
	userID := uuid.New()
	sessionID := uuid.New()
	token := uuid.New()
	createdAt := time.Now().UTC()

	mock.ExpectQuery(`(?s)INSERT INTO sessions .* ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), userID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token", "created_at"}).
			AddRow(sessionID, userID, token, createdAt))

	session, err := repo.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, session.ID)
	assert.Equal(t, token, session.Token)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_FindByTokenMissing(t *testing.T) {
	repo, mock := newSessionRepo(t)
	token := uuid.New()

	mock.ExpectQuery(`FROM sessions\s+WHERE token = \$1`).
		WithArgs(token).
		WillReturnError(pgx.ErrNoRows)

	session, err := repo.FindByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, session)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeleteByUser(t *testing.T) {
	repo, mock := newSessionRepo(t)
	userID := uuid.New()

	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	deleted, err := repo.DeleteByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, mock.ExpectationsWereMet())
}
