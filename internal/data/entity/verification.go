package entity

import (
	"github.com/google/uuid"
)

// Channel tags what a verification was issued for.
type Channel string

const (
	ChannelCode  Channel = "CODE"
	ChannelEmail Channel = "EMAIL"
	ChannelLink  Channel = "LINK"
)

// Verification is a one-time code. It starts PENDING (valid, unused) and ends
// either CONSUMED (invalid, used) or EXPIRED (invalid, unused).
type Verification struct {
	BaseSimple
	Code    string    `db:"code"`
	UserID  uuid.UUID `db:"user_id"`
	Channel Channel   `db:"channel"`
	IsValid bool      `db:"is_valid"`
	IsUsed  bool      `db:"is_used"`
}

func (v Verification) Usable() bool {
	return v.IsValid && !v.IsUsed
}

type VerificationState string

const (
	StatePending  VerificationState = "PENDING"
	StateConsumed VerificationState = "CONSUMED"
	StateExpired  VerificationState = "EXPIRED"
)

func (v Verification) State() VerificationState {
	switch {
	case v.IsUsed:
		return StateConsumed
	case !v.IsValid:
		return StateExpired
	default:
		return StatePending
	}
}
