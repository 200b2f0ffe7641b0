package request

// RegisterRequest creates an account with a password up front.
type RegisterRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,max=32"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	FirstName   string `json:"first_name" validate:"max=150"`
	LastName    string `json:"last_name" validate:"max=150"`
	Password    string `json:"password" validate:"required,max=72"`
}

// Username is a phone number or an email address throughout.
type RequestCodeRequest struct {
	Username string `json:"username"`
}

type VerifyAuthenticationRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type VerifyChangePasswordRequest struct {
	Username    string `json:"username"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type MagicLinkRequest struct {
	Email string `json:"email"`
}
