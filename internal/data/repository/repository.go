package repository

import (
	"account-service/pkg/database"
	"account-service/pkg/utils"

	"go.uber.org/zap"
)

type Repository struct {
	User         UserRepository
	Verification VerificationRepository
	Session      SessionRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger, otp utils.OTPConfig) *Repository {
	return &Repository{
		User:         NewUserRepository(db, log),
		Verification: NewVerificationRepository(db, log, otp),
		Session:      NewSessionRepository(db, log),
	}
}
