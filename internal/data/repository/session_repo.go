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

type SessionRepository interface {
	// GetOrCreate returns the user's live session, issuing one if absent.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*entity.Session, error)
	FindByToken(ctx context.Context, token uuid.UUID) (*entity.Session, error)
	// DeleteByUser removes the user's session and reports whether one existed.
	DeleteByUser(ctx context.Context, userID uuid.UUID) (bool, error)
}

type sessionRepository struct {
	db  database.PgxIface
	log *zap.Logger
	now func() time.Time
}

func NewSessionRepository(db database.PgxIface, log *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:  db,
		log: log.With(zap.String("repository", "session")),
		now: time.Now,
	}
}

func (r *sessionRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*entity.Session, error) {
	// the no-op update makes RETURNING yield the existing row on conflict
	query := `
		INSERT INTO sessions (id, user_id, token, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, token, created_at
	`

	var session entity.Session
	err := r.db.QueryRow(ctx, query,
		utils.GenerateUUID(),
		userID,
		utils.GenerateSessionToken(),
		r.now(),
	).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to get or create session",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("get or create session for user %s: %w", userID.String(), err)
	}

	return &session, nil
}

func (r *sessionRepository) FindByToken(ctx context.Context, token uuid.UUID) (*entity.Session, error) {
	query := `
		SELECT id, user_id, token, created_at
		FROM sessions
		WHERE token = $1
	`

	var session entity.Session
	err := r.db.QueryRow(ctx, query, token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find session", zap.Error(err))
		return nil, fmt.Errorf("find session: %w", err)
	}

	return &session, nil
}

func (r *sessionRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM sessions WHERE user_id = $1`

	result, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to delete session",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return false, fmt.Errorf("delete session for user %s: %w", userID.String(), err)
	}

	return result.RowsAffected() > 0, nil
}
