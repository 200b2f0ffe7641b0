package request

import "io"

type VerifyEmailRequest struct {
	Code string `json:"code"`
}

// SubmitDocumentRequest is built from a multipart upload.
type SubmitDocumentRequest struct {
	NIDNumber   string    `form:"nid_number" validate:"required,numeric,min=10,max=17"`
	Filename    string    `form:"document" validate:"required"`
	ContentType string    `validate:"required,oneof=image/jpeg image/png application/pdf"`
	Size        int64     `validate:"gt=0"`
	Body        io.Reader `validate:"-"`
}

type VerifyAccountRequest struct {
	UserID             string `json:"user" validate:"required,uuid"`
	VerificationStatus string `json:"verification_status"`
}
