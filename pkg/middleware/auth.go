package middleware

import (
	"net/http"
	"strings"

	"account-service/internal/data/repository"
	"account-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthSession resolves the session token in the Authorization header and puts
// its user into the request context.
func AuthSession(sessionRepo repository.SessionRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			raw, ok := bearerToken(authHeader)
			if !ok {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			token, err := uuid.Parse(raw)
			if err != nil {
				utils.ResponseUnauthorized(w, "Invalid or expired session")
				return
			}

			session, err := sessionRepo.FindByToken(r.Context(), token)
			if err != nil {
				logger.Error("Failed to validate session", zap.Error(err))
				utils.ResponseInternalError(w, "Internal server error")
				return
			}

			if session == nil {
				logger.Warn("Invalid or expired session", zap.String("path", r.URL.Path))
				utils.ResponseUnauthorized(w, "Invalid or expired session")
				return
			}

			ctx := utils.SetSessionContext(r.Context(), session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Staff rejects authenticated users who are not active staff members.
// It must run after AuthSession.
func Staff(userRepo repository.UserRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Who is asking
			userID, ok := utils.GetUserIDFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			// 2. Load the account
			user, err := userRepo.FindByID(r.Context(), userID)
			if err != nil {
				logger.Error("Staff check: failed to get user",
					zap.Error(err), zap.String("user_id", userID.String()))
				utils.ResponseInternalError(w, "Internal server error")
				return
			}

			// 3. Staff only
			if user == nil || !user.IsActive || !user.IsStaff {
				logger.Warn("Staff check: non-staff access attempt",
					zap.String("user_id", userID.String()),
					zap.String("path", r.URL.Path))
				utils.ResponseForbidden(w, "You don't have permissions to perform this operation")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken accepts "Bearer <token>" and "Token <token>".
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", false
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
