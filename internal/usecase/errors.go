package usecase

import (
	"errors"
	"fmt"

	"account-service/internal/data/entity"
)

var (
	ErrInvalidIdentifier  = errors.New("valid email or phone number is not supplied")
	ErrAccountInactive    = errors.New("the account is not active")
	ErrNoAccount          = errors.New("no account found")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordMissing    = errors.New("password not provided")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmailNotVerified   = errors.New("the email address is not verified, use other login methods and verify your account first")
	ErrAlreadyVerified    = errors.New("email is already verified")
	ErrInvalidLink        = errors.New("the login link is invalid")
	ErrForbidden          = errors.New("you don't have permissions to perform this operation")
	ErrInvalidStatus      = errors.New("invalid status is provided")
	ErrUnauthenticated    = errors.New("you are not allowed to perform this operation")

	ErrEmailMissing    = errors.New("the account has no email address")
	ErrDocumentMissing = errors.New("national id number and document are required")
	ErrPhoneTaken      = errors.New("phone number is already registered")
)

// PasswordPolicyError carries the policy's message for the rejected password.
type PasswordPolicyError struct {
	Detail string
}

func (e *PasswordPolicyError) Error() string {
	return e.Detail
}

// StateTransitionError reports a verification status change that is not
// allowed from the user's current status.
type StateTransitionError struct {
	Current entity.VerificationStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("account verification status is %s", e.Current)
}

// ValidationError holds per-field request validation failures.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
