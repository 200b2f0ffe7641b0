package entity

import "account-service/pkg/utils"

// VerificationStatus tracks identity-document review, separate from email
// confirmation.
type VerificationStatus string

const (
	StatusUnverified  VerificationStatus = "UNVERIFIED"
	StatusPending     VerificationStatus = "PENDING VERIFICATION"
	StatusVerified    VerificationStatus = "VERIFIED"
	StatusNotVerified VerificationStatus = "NOT VERIFIED"
)

// IsReviewOutcome reports whether s is a status a reviewer may assign.
func (s VerificationStatus) IsReviewOutcome() bool {
	return s == StatusVerified || s == StatusNotVerified
}

type User struct {
	BaseNoDelete
	Phone              *string            `db:"phone"`
	Email              *string            `db:"email"`
	FirstName          string             `db:"first_name"`
	LastName           string             `db:"last_name"`
	PasswordHash       string             `db:"password"`
	IsActive           bool               `db:"is_active"`
	IsStaff            bool               `db:"is_staff"`
	IsEmailVerified    bool               `db:"is_email_verified"`
	VerificationStatus VerificationStatus `db:"verification_status"`
	NIDNumber          *string            `db:"nid_number"`
	NIDDocumentKey     *string            `db:"nid_document_key"`
}

func (u *User) HasUsablePassword() bool {
	return utils.HasUsablePassword(u.PasswordHash)
}

func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

func (u *User) PhoneNumber() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

func (u *User) PasswordContext() utils.PasswordContext {
	return utils.PasswordContext{
		Phone:     u.PhoneNumber(),
		Email:     u.EmailAddress(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
