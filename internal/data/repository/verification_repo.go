package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account-service/internal/data/entity"
	"account-service/pkg/database"
	"account-service/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var (
	// ErrCodeSpaceExhausted means every generated candidate collided with a
	// pending code. The code length is too short for the traffic.
	ErrCodeSpaceExhausted = errors.New("verification code space exhausted")
	ErrUserNotFound       = errors.New("user not found")
)

const verificationColumns = `id, code, user_id, channel, is_valid, is_used, created_at`

type VerificationRepository interface {
	// CreatePending returns the user's usable verification for the channel,
	// creating one when none exists. created reports which happened.
	CreatePending(ctx context.Context, userID uuid.UUID, channel entity.Channel) (v *entity.Verification, created bool, err error)
	// Create always issues a fresh verification.
	Create(ctx context.Context, userID uuid.UUID, channel entity.Channel) (*entity.Verification, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Verification, error)
	// FindUsable looks up a pending code for the user. A nil channel matches any.
	FindUsable(ctx context.Context, code string, userID uuid.UUID, channel *entity.Channel) (*entity.Verification, error)
	FindUsableByID(ctx context.Context, id uuid.UUID, channel entity.Channel) (*entity.Verification, error)
	// Consume flips a pending verification to consumed. False means another
	// caller got there first or it already expired.
	Consume(ctx context.Context, id uuid.UUID) (bool, error)
	// Invalidate expires a pending verification and leaves any other state alone.
	Invalidate(ctx context.Context, id uuid.UUID) (bool, error)
}

// queryRower is satisfied by both the pool and a transaction.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type verificationRepository struct {
	db          database.PgxIface
	log         *zap.Logger
	codeLength  int
	maxAttempts int
	generate    func(length int) (string, error)
	now         func() time.Time
}

func NewVerificationRepository(db database.PgxIface, log *zap.Logger, otp utils.OTPConfig) VerificationRepository {
	return &verificationRepository{
		db:          db,
		log:         log.With(zap.String("repository", "verification")),
		codeLength:  otp.Length,
		maxAttempts: otp.MaxAttempts,
		generate: func(length int) (string, error) {
			return utils.GenerateCode(utils.CodeDigits, length)
		},
		now: time.Now,
	}
}

func (r *verificationRepository) CreatePending(ctx context.Context, userID uuid.UUID, channel entity.Channel) (v *entity.Verification, created bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// serialises concurrent requests for the same user
	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		r.log.Error("Failed to lock user", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, false, fmt.Errorf("lock user %s: %w", userID.String(), err)
	}

	query := `
		SELECT ` + verificationColumns + `
		FROM verifications
		WHERE user_id = $1
		  AND channel = $2
		  AND is_valid = true
		  AND is_used = false
		ORDER BY created_at DESC
		LIMIT 1
	`
	v, err = scanVerification(tx.QueryRow(ctx, query, userID, channel))
	switch {
	case err == nil:
		if err = tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit: %w", err)
		}
		return v, false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		r.log.Error("Failed to find pending verification",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("channel", string(channel)),
		)
		return nil, false, fmt.Errorf("find pending verification for user %s: %w", userID.String(), err)
	}

	v, err = r.insert(ctx, tx, userID, channel)
	if err != nil {
		return nil, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	return v, true, nil
}

func (r *verificationRepository) Create(ctx context.Context, userID uuid.UUID, channel entity.Channel) (*entity.Verification, error) {
	return r.insert(ctx, r.db, userID, channel)
}

// insert draws codes until one does not collide with a pending verification.
func (r *verificationRepository) insert(ctx context.Context, q queryRower, userID uuid.UUID, channel entity.Channel) (*entity.Verification, error) {
	query := `
		INSERT INTO verifications (id, code, user_id, channel, is_valid, is_used, created_at)
		VALUES ($1, $2, $3, $4, true, false, $5)
		ON CONFLICT (code) WHERE is_valid AND NOT is_used DO NOTHING
		RETURNING ` + verificationColumns

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		code, err := r.generate(r.codeLength)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		v, err := scanVerification(q.QueryRow(ctx, query, utils.GenerateUUID(), code, userID, channel, r.now()))
		if errors.Is(err, pgx.ErrNoRows) {
			r.log.Debug("Verification code collided, retrying",
				zap.Int("attempt", attempt),
				zap.String("channel", string(channel)),
			)
			continue
		}
		if err != nil {
			r.log.Error("Failed to create verification",
				zap.Error(err),
				zap.String("user_id", userID.String()),
				zap.String("channel", string(channel)),
			)
			return nil, fmt.Errorf("create verification for user %s: %w", userID.String(), err)
		}

		return v, nil
	}

	r.log.Error("Verification code space exhausted",
		zap.Int("code_length", r.codeLength),
		zap.Int("attempts", r.maxAttempts),
	)
	return nil, ErrCodeSpaceExhausted
}

func (r *verificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE id = $1`

	v, err := scanVerification(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find verification", zap.Error(err), zap.String("verification_id", id.String()))
		return nil, fmt.Errorf("find verification %s: %w", id.String(), err)
	}

	return v, nil
}

func (r *verificationRepository) FindUsable(ctx context.Context, code string, userID uuid.UUID, channel *entity.Channel) (*entity.Verification, error) {
	query := `
		SELECT ` + verificationColumns + `
		FROM verifications
		WHERE code = $1
		  AND user_id = $2
		  AND ($3::text IS NULL OR channel = $3)
		  AND is_valid = true
		  AND is_used = false
		LIMIT 1
	`

	var channelArg *string
	if channel != nil {
		c := string(*channel)
		channelArg = &c
	}

	v, err := scanVerification(r.db.QueryRow(ctx, query, code, userID, channelArg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find usable verification",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("find usable verification for user %s: %w", userID.String(), err)
	}

	return v, nil
}

func (r *verificationRepository) FindUsableByID(ctx context.Context, id uuid.UUID, channel entity.Channel) (*entity.Verification, error) {
	query := `
		SELECT ` + verificationColumns + `
		FROM verifications
		WHERE id = $1
		  AND channel = $2
		  AND is_valid = true
		  AND is_used = false
	`

	v, err := scanVerification(r.db.QueryRow(ctx, query, id, channel))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find usable verification",
			zap.Error(err),
			zap.String("verification_id", id.String()),
		)
		return nil, fmt.Errorf("find usable verification %s: %w", id.String(), err)
	}

	return v, nil
}

func (r *verificationRepository) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE verifications
		SET is_used = true, is_valid = false
		WHERE id = $1 AND is_valid = true AND is_used = false
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to consume verification",
			zap.Error(err),
			zap.String("verification_id", id.String()),
		)
		return false, fmt.Errorf("consume verification %s: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *verificationRepository) Invalidate(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE verifications
		SET is_valid = false
		WHERE id = $1 AND is_valid = true
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to invalidate verification",
			zap.Error(err),
			zap.String("verification_id", id.String()),
		)
		return false, fmt.Errorf("invalidate verification %s: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func scanVerification(row pgx.Row) (*entity.Verification, error) {
	var v entity.Verification
	err := row.Scan(
		&v.ID,
		&v.Code,
		&v.UserID,
		&v.Channel,
		&v.IsValid,
		&v.IsUsed,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
