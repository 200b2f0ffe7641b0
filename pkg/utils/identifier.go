package utils

import (
	"strings"
)

type IdentifierKind int

const (
	IdentifierUnknown IdentifierKind = iota
	IdentifierPhone
	IdentifierEmail
)

var phoneSeparators = strings.NewReplacer(" ", "", "(", "", ")", "", "-", "")

// NormalizePhone strips separators and returns "+<digits>". ok is false when
// the value does not start with "+" or has anything but digits after it.
func NormalizePhone(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "+") {
		return "", false
	}

	digits := phoneSeparators.Replace(value[1:])
	if digits == "" {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}

	return "+" + digits, true
}

// IsEmail requires a syntactically valid address whose domain carries a dot
// with something on both sides of it.
func IsEmail(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if err := validate.Var(value, "required,email"); err != nil {
		return false
	}

	at := strings.LastIndex(value, "@")
	if at <= 0 {
		return false
	}
	domain := value[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// ClassifyIdentifier decides whether a login identifier is a phone number or
// an email and returns its normalized form.
func ClassifyIdentifier(value string) (IdentifierKind, string) {
	if phone, ok := NormalizePhone(value); ok {
		return IdentifierPhone, phone
	}
	if IsEmail(value) {
		return IdentifierEmail, strings.TrimSpace(value)
	}
	return IdentifierUnknown, ""
}
