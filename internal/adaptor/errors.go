package adaptor

import (
	"errors"
	"net/http"

	"account-service/internal/usecase"
	"account-service/pkg/utils"

	"go.uber.org/zap"
)

// badRequestErrors are domain outcomes the caller can act on.
var badRequestErrors = []error{
	usecase.ErrInvalidIdentifier,
	usecase.ErrAccountInactive,
	usecase.ErrNoAccount,
	usecase.ErrInvalidCode,
	usecase.ErrInvalidCredentials,
	usecase.ErrPasswordMissing,
	usecase.ErrInvalidEmail,
	usecase.ErrEmailNotVerified,
	usecase.ErrAlreadyVerified,
	usecase.ErrInvalidLink,
	usecase.ErrInvalidStatus,
	usecase.ErrEmailMissing,
	usecase.ErrDocumentMissing,
	usecase.ErrPhoneTaken,
}

// handleServiceError maps service errors onto HTTP responses. Anything not
// recognised is logged and hidden behind a 500.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var (
		validationErr *usecase.ValidationError
		policyErr     *usecase.PasswordPolicyError
		transitionErr *usecase.StateTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		log.Warn(operation+" validation failed", zap.Any("errors", validationErr.Fields))
		utils.ResponseBadRequest(w, "Validation failed", validationErr.Fields)

	case errors.As(err, &policyErr):
		log.Warn(operation+" failed - password policy", zap.String("reason", policyErr.Detail))
		utils.ResponseBadRequest(w, policyErr.Detail, map[string]string{"password": policyErr.Detail})

	case errors.As(err, &transitionErr):
		log.Warn(operation+" failed - state transition", zap.String("current", string(transitionErr.Current)))
		utils.ResponseBadRequest(w, transitionErr.Error(), nil)

	case errors.Is(err, usecase.ErrForbidden):
		log.Warn(operation+" failed - forbidden", zap.Error(err))
		utils.ResponseForbidden(w, err.Error())

	case errors.Is(err, usecase.ErrUnauthenticated):
		log.Warn(operation+" failed - unauthenticated", zap.Error(err))
		utils.ResponseUnauthorized(w, err.Error())

	case isBadRequest(err):
		log.Warn(operation+" failed", zap.Error(err))
		utils.ResponseBadRequest(w, err.Error(), nil)

	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func isBadRequest(err error) bool {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
