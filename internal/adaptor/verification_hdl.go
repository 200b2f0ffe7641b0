package adaptor

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"account-service/internal/dto/request"
	"account-service/internal/usecase"
	"account-service/pkg/utils"

	"go.uber.org/zap"
)

const defaultMaxUploadMB = 10

type VerificationHandler struct {
	service        usecase.VerificationService
	maxUploadBytes int64
	log            *zap.Logger
}

func NewVerificationHandler(service usecase.VerificationService, maxUploadMB int, log *zap.Logger) *VerificationHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	return &VerificationHandler{
		service:        service,
		maxUploadBytes: int64(maxUploadMB) << 20,
		log:            log,
	}
}

// RequestEmailVerification handles POST /api/verifications/request-email-verification
func (h *VerificationHandler) RequestEmailVerification(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.RequestEmailVerification(r.Context(), userID); err != nil {
		handleServiceError(w, h.log, err, "request email verification")
		return
	}

	utils.ResponseSuccess(w, "Verification code sent to your email", nil)
}

// VerifyEmail handles POST /api/verifications/verify-email
func (h *VerificationHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	user, err := h.service.VerifyEmail(r.Context(), userID, req.Code)
	if err != nil {
		handleServiceError(w, h.log, err, "verify email")
		return
	}

	utils.ResponseSuccess(w, "Email verified successfully", user)
}

// UploadDocuments handles POST /api/verifications/upload-verification-documents
// as multipart/form-data with nid_number and a document file.
func (h *VerificationHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ResponseTooLarge(w, "Document exceeds the upload limit")
			return
		}
		utils.ResponseBadRequest(w, "Invalid multipart form", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := &request.SubmitDocumentRequest{
		NIDNumber: r.FormValue("nid_number"),
	}

	file, header, err := r.FormFile("document")
	switch {
	case err == nil:
		defer file.Close()
		req.Filename = header.Filename
		req.Size = header.Size
		req.ContentType = contentType(header)
		req.Body = file
	case !errors.Is(err, http.ErrMissingFile):
		utils.ResponseBadRequest(w, "Invalid document upload", nil)
		return
	}

	user, err := h.service.SubmitIdentityDocument(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, h.log, err, "upload verification documents")
		return
	}

	utils.ResponseSuccess(w, "Documents submitted for review", user)
}

// VerifyAccount handles POST /api/verifications/verify-account (staff only)
func (h *VerificationHandler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	actorID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.VerifyAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	user, err := h.service.VerifyIdentityDocument(r.Context(), actorID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "verify account")
		return
	}

	utils.ResponseSuccess(w, "Account verification status updated", user)
}

// PendingReviews handles GET /api/verifications/pending (staff only)
func (h *VerificationHandler) PendingReviews(w http.ResponseWriter, r *http.Request) {
	actorID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	query := r.URL.Query()
	page := request.PageRequest{
		Page:    parseInt(query.Get("page"), 1),
		PerPage: parseInt(query.Get("per_page"), 20),
	}

	result, err := h.service.ListPendingReviews(r.Context(), actorID, page)
	if err != nil {
		handleServiceError(w, h.log, err, "list pending reviews")
		return
	}

	utils.ResponseSuccess(w, "Pending reviews retrieved successfully", result)
}

// ==================== HELPER METHODS ====================

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func contentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
	}
	mediaType, _, _ := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(header.Filename)))
	return mediaType
}
