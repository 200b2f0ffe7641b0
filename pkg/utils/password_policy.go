package utils

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	defaultMinPasswordLength   = 8
	defaultMinCharacterClasses = 3
	defaultMinZxcvbnScore      = 2
)

// PasswordViolation is a single password policy failure. Message is safe to
// show to the caller.
type PasswordViolation struct {
	Code    string
	Message string
}

func (e *PasswordViolation) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordContext carries the account attributes a password must not resemble.
type PasswordContext struct {
	Phone     string
	Email     string
	FirstName string
	LastName  string
}

func (c PasswordContext) inputs() []string {
	inputs := make([]string, 0, 4)
	for _, v := range []string{c.Phone, c.Email, c.FirstName, c.LastName} {
		if v != "" {
			inputs = append(inputs, v)
		}
	}
	return inputs
}

type PasswordRule func(password string, ctx PasswordContext) error

// PasswordPolicy applies rules in order and reports the first violation.
type PasswordPolicy struct {
	rules []PasswordRule
}

func NewPasswordPolicy(rules ...PasswordRule) *PasswordPolicy {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordPolicy{rules: copied}
}

// DefaultPasswordPolicy enforces length, character classes and zxcvbn strength
// measured against the account's own attributes.
func DefaultPasswordPolicy() *PasswordPolicy {
	return NewPasswordPolicy(
		MinLengthRule(defaultMinPasswordLength),
		MaxBytesRule(MaxPasswordBytes),
		CharacterClassesRule(defaultMinCharacterClasses),
		StrengthRule(defaultMinZxcvbnScore),
	)
}

func (p *PasswordPolicy) Validate(password string, ctx PasswordContext) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}
	for _, rule := range p.rules {
		if err := rule(password, ctx); err != nil {
			return err
		}
	}
	return nil
}

func MinLengthRule(min int) PasswordRule {
	return func(password string, _ PasswordContext) error {
		if len([]rune(password)) < min {
			return &PasswordViolation{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	}
}

// MaxBytesRule bounds the encoded length, which is what bcrypt limits.
func MaxBytesRule(max int) PasswordRule {
	return func(password string, _ PasswordContext) error {
		if len(password) > max {
			return maxBytesViolation(max)
		}
		return nil
	}
}

func maxBytesViolation(max int) *PasswordViolation {
	return &PasswordViolation{
		Code:    "max_length",
		Message: fmt.Sprintf("password must be at most %d bytes long", max),
	}
}

func CharacterClassesRule(min int) PasswordRule {
	return func(password string, _ PasswordContext) error {
		var upper, lower, digit, symbol bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r):
				digit = true
			case unicode.IsSymbol(r) || unicode.IsPunct(r):
				symbol = true
			}
		}

		classes := 0
		for _, present := range []bool{upper, lower, digit, symbol} {
			if present {
				classes++
			}
		}
		if classes >= min {
			return nil
		}

		return &PasswordViolation{
			Code:    "character_classes",
			Message: fmt.Sprintf("password must include at least %d character types", min),
		}
	}
}

func StrengthRule(minScore int) PasswordRule {
	if minScore > 4 {
		minScore = 4
	}
	return func(password string, ctx PasswordContext) error {
		if minScore <= 0 {
			return nil
		}
		result := zxcvbn.PasswordStrength(password, ctx.inputs())
		if result.Score >= minScore {
			return nil
		}
		return &PasswordViolation{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	}
}
