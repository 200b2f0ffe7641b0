package wire

import (
	"account-service/internal/adaptor"
	"account-service/internal/data/repository"
	"account-service/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireUser(
	r chi.Router,
	userHandler *adaptor.UserHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	r.With(middleware.AuthSession(repo.Session, log)).Get("/api/user/profile", userHandler.GetProfile)
}
