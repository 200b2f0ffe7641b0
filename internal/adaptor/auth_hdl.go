package adaptor

import (
	"encoding/json"
	"net/http"

	"account-service/internal/dto/request"
	"account-service/internal/usecase"
	"account-service/pkg/utils"

	"go.uber.org/zap"
)

type AuthHandler struct {
	service usecase.AuthService
	log     *zap.Logger
}

func NewAuthHandler(service usecase.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		log:     log,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	user, err := h.service.Register(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "register")
		return
	}

	utils.ResponseCreated(w, "Registration successful", user)
}

// RequestCode handles POST /api/auth/request-verification-code
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req request.RequestCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.RequestCode(r.Context(), req.Username); err != nil {
		handleServiceError(w, h.log, err, "request verification code")
		return
	}

	utils.ResponseSuccess(w, "Verification code sent", nil)
}

// VerifyAuthentication handles POST /api/auth/verify-authentication
func (h *AuthHandler) VerifyAuthentication(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyAuthenticationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	auth, err := h.service.VerifyAuthentication(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "verify authentication")
		return
	}

	utils.ResponseSuccess(w, "Login successful", auth)
}

// VerifyChangePassword handles POST /api/auth/verify-change-password
func (h *AuthHandler) VerifyChangePassword(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyChangePasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	user, err := h.service.VerifyChangePassword(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "change password")
		return
	}

	utils.ResponseSuccess(w, "Password changed successfully", user)
}

// GenerateMagicLink handles POST /api/auth/generate-magic-link
func (h *AuthHandler) GenerateMagicLink(w http.ResponseWriter, r *http.Request) {
	var req request.MagicLinkRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.GenerateMagicLink(r.Context(), req.Email); err != nil {
		handleServiceError(w, h.log, err, "generate magic link")
		return
	}

	utils.ResponseSuccess(w, "Login link sent", nil)
}

// ConsumeMagicLink handles GET /api/auth/login-with-magic-link?login_id=
func (h *AuthHandler) ConsumeMagicLink(w http.ResponseWriter, r *http.Request) {
	loginID := r.URL.Query().Get("login_id")

	auth, err := h.service.ConsumeMagicLink(r.Context(), loginID)
	if err != nil {
		handleServiceError(w, h.log, err, "login with magic link")
		return
	}

	utils.ResponseSuccess(w, "Login successful", auth)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		handleServiceError(w, h.log, err, "logout")
		return
	}

	utils.ResponseSuccess(w, "Logout successful", nil)
}
