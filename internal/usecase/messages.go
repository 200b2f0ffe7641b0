package usecase

import (
	"fmt"
	"html"
	"net/url"
)

const (
	subjectAuthentication     = "Account Authentication"
	subjectEmailVerification  = "Email verification"
	subjectVerificationStatus = "Account verification status"
)

func smsCodeMessage(code string, minutes int) string {
	return fmt.Sprintf("%s is your verification code. It expires in %d minutes.", code, minutes)
}

func emailCodeMessage(code string, minutes int) string {
	return fmt.Sprintf("<p><b>%s</b> is your verification code. It expires in %d minutes.</p>", html.EscapeString(code), minutes)
}

func magicLinkMessage(link string) string {
	escaped := html.EscapeString(link)
	return fmt.Sprintf("<p>Please click this link to login: <a href=\"%s\">%s</a></p>", escaped, escaped)
}

func verificationStatusMessage(status string) string {
	return fmt.Sprintf("<p>Your account verification status has been changed to %s</p>", html.EscapeString(status))
}

// magicLink appends login_id to base, keeping any query base already has.
func magicLink(base, loginID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse magic link base url: %w", err)
	}
	q := u.Query()
	q.Set("login_id", loginID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
