package repository

import (
	"context"
	"testing"
	"time"

	"account-service/internal/data/entity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newUserRepo(t *testing.T) (*userRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo := NewUserRepository(mock, zaptest.NewLogger(t)).(*userRepository)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	return repo, mock
}

func TestUserRepository_FindByPhone(t *testing.T) {
	repo, mock := newUserRepo(t)
	id := uuid.New()
	phone := "+8801700000000"
	createdAt := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, phone, email, .* FROM users WHERE phone = \$1 ORDER BY created_at LIMIT 1`).
		WithArgs(phone).
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(
			id, &phone, nil, "Rahim", "Uddin", "!unusable",
			true, false, false, entity.StatusUnverified,
			nil, nil, createdAt, createdAt,
		))

	user, err := repo.FindByPhone(context.Background(), phone)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, phone, user.PhoneNumber())
	assert.Empty(t, user.EmailAddress())
	assert.False(t, user.HasUsablePassword())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmailNotFound(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	user, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicatePhone(t *testing.T) {
	repo, mock := newUserRepo(t)
	phone := "+8801700000000"
	user := &entity.User{
		BaseNoDelete:       entity.BaseNoDelete{ID: uuid.New(), CreatedAt: repo.now(), UpdatedAt: repo.now()},
		Phone:              &phone,
		PasswordHash:       "!unusable",
		IsActive:           true,
		VerificationStatus: entity.StatusUnverified,
	}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(user.ID, user.Phone, user.Email, "", "", "!unusable",
			true, false, false, entity.StatusUnverified, repo.now(), repo.now()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_phone_key"})

	err := repo.Create(context.Background(), user)
	require.ErrorIs(t, err, ErrDuplicatePhone)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateVerificationStatusComparesCurrent(t *testing.T) {
	repo, mock := newUserRepo(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE users\s+SET verification_status = \$3`).
		WithArgs(id, entity.StatusPending, entity.StatusVerified, repo.now()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users\s+SET verification_status = \$3`).
		WithArgs(id, entity.StatusPending, entity.StatusNotVerified, repo.now()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.UpdateVerificationStatus(context.Background(), id, entity.StatusPending, entity.StatusVerified)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateVerificationStatus(context.Background(), id, entity.StatusPending, entity.StatusNotVerified)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SetIdentityDocument(t *testing.T) {
	repo, mock := newUserRepo(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE users\s+SET nid_number = \$2`).
		WithArgs(id, "1990123456789", "identity-documents/key.png", entity.StatusPending, repo.now(), entity.StatusUnverified).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.SetIdentityDocument(context.Background(), id, "1990123456789", "identity-documents/key.png", entity.StatusUnverified)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListByVerificationStatus(t *testing.T) {
	repo, mock := newUserRepo(t)
	first, second := uuid.New(), uuid.New()
	phone := "+8801700000000"
	at := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(`SELECT id, phone, .* FROM users WHERE .* ORDER BY updated_at, id LIMIT 2 OFFSET 10`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(first, &phone, nil, "", "", "!x", true, false, false, entity.StatusPending, nil, nil, at, at).
			AddRow(second, nil, nil, "", "", "!y", true, false, false, entity.StatusPending, nil, nil, at, at))

	users, total, err := repo.ListByVerificationStatus(context.Background(), entity.StatusPending, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, users, 2)
	assert.Equal(t, first, users[0].ID)
	assert.Equal(t, second, users[1].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}
