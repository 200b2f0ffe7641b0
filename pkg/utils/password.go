package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// unusablePrefix marks a stored credential that no password can match.
// bcrypt hashes always start with "$", so the two never collide.
const unusablePrefix = "!"

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// HashPassword returns a *PasswordViolation for input bcrypt cannot hash.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", maxBytesViolation(MaxPasswordBytes)
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func CheckPasswordHash(password, hash string) bool {
	if !HasUsablePassword(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UnusablePassword returns a credential for accounts that exist only to
// receive one-time codes.
func UnusablePassword() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return unusablePrefix
	}
	return unusablePrefix + hex.EncodeToString(buf)
}

func HasUsablePassword(hash string) bool {
	return hash != "" && !strings.HasPrefix(hash, unusablePrefix)
}
