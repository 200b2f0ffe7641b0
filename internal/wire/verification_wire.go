package wire

import (
	"account-service/internal/adaptor"
	"account-service/internal/data/repository"
	"account-service/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireVerification configures email and identity-document verification routes
func wireVerification(
	r chi.Router,
	verificationHandler *adaptor.VerificationHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	r.Route("/api/verifications", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))

		r.Post("/request-email-verification", verificationHandler.RequestEmailVerification)
		r.Post("/verify-email", verificationHandler.VerifyEmail)
		r.Post("/upload-verification-documents", verificationHandler.UploadDocuments)

		// ==================== STAFF ROUTES ====================
		r.Group(func(r chi.Router) {
			r.Use(middleware.Staff(repo.User, log))
			r.Post("/verify-account", verificationHandler.VerifyAccount)
			r.Get("/pending", verificationHandler.PendingReviews)
		})
	})
}
