package entity

import (
	"github.com/google/uuid"
)

// Session is the single live token of a user. Logout deletes it.
type Session struct {
	BaseSimple
	UserID uuid.UUID `db:"user_id"`
	Token  uuid.UUID `db:"token"`
}
