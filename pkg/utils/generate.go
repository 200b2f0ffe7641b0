package utils

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ==================== UUID & TOKEN ====================

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

func ParseUUID(uuidStr string) (uuid.UUID, error) {
	return uuid.Parse(uuidStr)
}

func GenerateSessionToken() uuid.UUID {
	return uuid.New()
}

// ==================== ONE-TIME CODES ====================

type CodeKind int

const (
	// CodeAlphanumeric draws from A-Z and 0-9.
	CodeAlphanumeric CodeKind = iota
	// CodeDigits draws from 0-9 only.
	CodeDigits
)

const (
	DefaultCodeLength = 6

	alphanumericAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digitsAlphabet       = "0123456789"
)

var ErrInvalidCodeLength = errors.New("invalid code length")

// GenerateCode returns a one-time code of the given kind. Every character is
// drawn independently from crypto/rand, so outputs share no sequence state.
// Uniqueness is the caller's job.
func GenerateCode(kind CodeKind, length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	if length > 32 {
		return "", ErrInvalidCodeLength
	}

	alphabet := alphanumericAlphabet
	if kind == CodeDigits {
		alphabet = digitsAlphabet
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}

	return b.String(), nil
}
