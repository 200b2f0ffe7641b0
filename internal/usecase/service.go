package usecase

import (
	"context"
	"time"

	"account-service/internal/data/repository"
	"account-service/internal/notification"
	"account-service/internal/storage"
	"account-service/pkg/metrics"
	"account-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExpiryScheduler invalidates a verification once delay has passed.
type ExpiryScheduler interface {
	ScheduleExpiration(ctx context.Context, verificationID uuid.UUID, delay time.Duration) error
}

// Dependencies are the collaborators outside the database.
type Dependencies struct {
	Notifier  notification.Dispatcher
	Expiry    ExpiryScheduler
	Documents storage.DocumentStore
	Metrics   *metrics.Verification
	Policy    *utils.PasswordPolicy
}

type Service struct {
	Auth         AuthService
	Verification VerificationService
	User         UserService
}

func NewService(repo *repository.Repository, deps Dependencies, config *utils.Config, log *zap.Logger) *Service {
	if deps.Policy == nil {
		deps.Policy = utils.DefaultPasswordPolicy()
	}
	return &Service{
		Auth:         NewAuthService(repo, deps, config, log),
		Verification: NewVerificationService(repo, deps, config, log),
		User:         NewUserService(repo.User, log),
	}
}
