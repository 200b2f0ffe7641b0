package utils

import (
	"context"

	"github.com/google/uuid"
)

type userIDKey struct{}

// SetSessionContext stores the user an AuthSession token resolved to.
func SetSessionContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserIDFromContext reports false for anonymous requests.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}
