package response

import (
	"time"

	"account-service/internal/data/entity"
)

type UserResponse struct {
	ID                 string                    `json:"id"`
	PhoneNumber        *string                   `json:"phone_number"`
	Email              *string                   `json:"email"`
	FirstName          string                    `json:"first_name"`
	LastName           string                    `json:"last_name"`
	IsActive           bool                      `json:"is_active"`
	IsStaff            bool                      `json:"is_staff"`
	IsEmailVerified    bool                      `json:"is_email_verified"`
	VerificationStatus entity.VerificationStatus `json:"verification_status"`
	HasPassword        bool                      `json:"has_password"`
	CreatedAt          time.Time                 `json:"created_at"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func UserToResponse(user *entity.User) UserResponse {
	return UserResponse{
		ID:                 user.ID.String(),
		PhoneNumber:        user.Phone,
		Email:              user.Email,
		FirstName:          user.FirstName,
		LastName:           user.LastName,
		IsActive:           user.IsActive,
		IsStaff:            user.IsStaff,
		IsEmailVerified:    user.IsEmailVerified,
		VerificationStatus: user.VerificationStatus,
		HasPassword:        user.HasUsablePassword(),
		CreatedAt:          user.CreatedAt,
	}
}

func AuthToResponse(user *entity.User, session *entity.Session) AuthResponse {
	resp := AuthResponse{User: UserToResponse(user)}
	if session != nil {
		resp.Token = session.Token.String()
	}
	return resp
}
