package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account-service/internal/data/entity"
	"account-service/pkg/database"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ErrDuplicatePhone is returned by Create when the phone number already belongs to a user.
var ErrDuplicatePhone = errors.New("phone number already registered")

const uniqueViolation = "23505"

var userColumns = []string{
	"id", "phone", "email", "first_name", "last_name", "password",
	"is_active", "is_staff", "is_email_verified", "verification_status",
	"nid_number", "nid_document_key", "created_at", "updated_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByPhone(ctx context.Context, phone string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	// UpdateVerificationStatus moves the user from one status to another and
	// reports false when the current status is no longer from.
	UpdateVerificationStatus(ctx context.Context, id uuid.UUID, from, to entity.VerificationStatus) (bool, error)
	// SetIdentityDocument records a submitted document and moves the user to
	// PENDING VERIFICATION if the status is still from.
	SetIdentityDocument(ctx context.Context, id uuid.UUID, nidNumber, documentKey string, from entity.VerificationStatus) (bool, error)
	// ListByVerificationStatus pages through active users in a status, oldest first.
	ListByVerificationStatus(ctx context.Context, status entity.VerificationStatus, limit, offset int) ([]entity.User, int64, error)
}

type userRepository struct {
	db  database.PgxIface
	log *zap.Logger
	now func() time.Time
}

func NewUserRepository(db database.PgxIface, log *zap.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log.With(zap.String("repository", "user")),
		now: time.Now,
	}
}

// Create inserts a new user record into the database
func (ur *userRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, phone, email, first_name, last_name, password,
		                   is_active, is_staff, is_email_verified, verification_status,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := ur.db.Exec(ctx, query,
		user.ID,
		user.Phone,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsActive,
		user.IsStaff,
		user.IsEmailVerified,
		user.VerificationStatus,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicatePhone
		}
		ur.log.Error("Failed to create user",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
		)
		return fmt.Errorf("create user %s: %w", user.ID.String(), err)
	}

	return nil
}

func (ur *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return ur.findOne(ctx, sq.Eq{"id": id}, "id", id.String())
}

func (ur *userRepository) FindByPhone(ctx context.Context, phone string) (*entity.User, error) {
	return ur.findOne(ctx, sq.Eq{"phone": phone}, "phone", phone)
}

// FindByEmail returns the oldest account carrying the address. Emails are not
// unique, only phone numbers are.
func (ur *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return ur.findOne(ctx, sq.Eq{"email": email}, "email", email)
}

func (ur *userRepository) findOne(ctx context.Context, where sq.Eq, field, value string) (*entity.User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where(where).
		OrderBy("created_at").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user query by %s: %w", field, err)
	}

	user, err := scanUser(ur.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		ur.log.Error("Failed to find user",
			zap.Error(err),
			zap.String("by", field),
			zap.String("value", value),
		)
		return nil, fmt.Errorf("find user by %s: %w", field, err)
	}

	return user, nil
}

func (ur *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password = $2, updated_at = $3 WHERE id = $1`

	result, err := ur.db.Exec(ctx, query, id, passwordHash, ur.now())
	if err != nil {
		ur.log.Error("Failed to update password", zap.Error(err), zap.String("user_id", id.String()))
		return fmt.Errorf("update password for user %s: %w", id.String(), err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id.String())
	}

	return nil
}

func (ur *userRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET is_email_verified = true, updated_at = $2 WHERE id = $1`

	result, err := ur.db.Exec(ctx, query, id, ur.now())
	if err != nil {
		ur.log.Error("Failed to mark email verified", zap.Error(err), zap.String("user_id", id.String()))
		return fmt.Errorf("mark email verified for user %s: %w", id.String(), err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id.String())
	}

	return nil
}

func (ur *userRepository) UpdateVerificationStatus(ctx context.Context, id uuid.UUID, from, to entity.VerificationStatus) (bool, error) {
	query := `
		UPDATE users
		SET verification_status = $3, updated_at = $4
		WHERE id = $1 AND verification_status = $2
	`

	result, err := ur.db.Exec(ctx, query, id, from, to, ur.now())
	if err != nil {
		ur.log.Error("Failed to update verification status",
			zap.Error(err),
			zap.String("user_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("update verification status for user %s: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (ur *userRepository) SetIdentityDocument(ctx context.Context, id uuid.UUID, nidNumber, documentKey string, from entity.VerificationStatus) (bool, error) {
	query := `
		UPDATE users
		SET nid_number = $2, nid_document_key = $3, verification_status = $4, updated_at = $5
		WHERE id = $1 AND verification_status = $6
	`

	result, err := ur.db.Exec(ctx, query, id, nidNumber, documentKey, entity.StatusPending, ur.now(), from)
	if err != nil {
		ur.log.Error("Failed to store identity document",
			zap.Error(err),
			zap.String("user_id", id.String()),
		)
		return false, fmt.Errorf("set identity document for user %s: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (ur *userRepository) ListByVerificationStatus(ctx context.Context, status entity.VerificationStatus, limit, offset int) ([]entity.User, int64, error) {
	where := sq.Eq{"verification_status": status, "is_active": true}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("users").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build user count query: %w", err)
	}

	var total int64
	if err := ur.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		ur.log.Error("Failed to count users", zap.Error(err), zap.String("status", string(status)))
		return nil, 0, fmt.Errorf("count users in %s: %w", status, err)
	}

	query, args, err := psql.Select(userColumns...).
		From("users").
		Where(where).
		OrderBy("updated_at", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build user list query: %w", err)
	}

	rows, err := ur.db.Query(ctx, query, args...)
	if err != nil {
		ur.log.Error("Failed to list users", zap.Error(err), zap.String("status", string(status)))
		return nil, 0, fmt.Errorf("list users in %s: %w", status, err)
	}
	defer rows.Close()

	var users []entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var user entity.User
	err := row.Scan(
		&user.ID,
		&user.Phone,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsStaff,
		&user.IsEmailVerified,
		&user.VerificationStatus,
		&user.NIDNumber,
		&user.NIDDocumentKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
