package wire

import (
	"account-service/internal/adaptor"
	"account-service/internal/data/repository"
	"account-service/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAuth(
	r chi.Router,
	authHandler *adaptor.AuthHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	r.Route("/api/auth", func(r chi.Router) {
		// ==================== PUBLIC ROUTES ====================
		r.Post("/register", authHandler.Register)
		r.Post("/request-verification-code", authHandler.RequestCode)
		r.Post("/verify-authentication", authHandler.VerifyAuthentication)
		r.Post("/verify-change-password", authHandler.VerifyChangePassword)
		r.Post("/generate-magic-link", authHandler.GenerateMagicLink)
		r.Get("/login-with-magic-link", authHandler.ConsumeMagicLink)

		// ==================== PROTECTED ROUTES ====================
		r.With(middleware.AuthSession(repo.Session, log)).Post("/logout", authHandler.Logout)
	})
}
