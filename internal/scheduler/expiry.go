package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"account-service/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TaskExpireVerification = "verification.expire"

type expirePayload struct {
	VerificationID uuid.UUID `json:"verification_id"`
}

// Invalidator expires a pending verification and ignores any other state.
type Invalidator interface {
	Invalidate(ctx context.Context, id uuid.UUID) (bool, error)
}

// ExpiryScheduler defers verification invalidation onto the task queue.
type ExpiryScheduler struct {
	queue Enqueuer
	delay time.Duration
}

func NewExpiryScheduler(queue Enqueuer, delay time.Duration) *ExpiryScheduler {
	return &ExpiryScheduler{queue: queue, delay: delay}
}

// Delay is the default time-to-live of a verification.
func (s *ExpiryScheduler) Delay() time.Duration {
	return s.delay
}

// ScheduleExpiration invalidates the verification after delay. A zero delay
// uses the configured default.
func (s *ExpiryScheduler) ScheduleExpiration(ctx context.Context, verificationID uuid.UUID, delay time.Duration) error {
	if delay <= 0 {
		delay = s.delay
	}
	if err := s.queue.Enqueue(ctx, TaskExpireVerification, expirePayload{VerificationID: verificationID}, delay); err != nil {
		return fmt.Errorf("schedule expiration of %s: %w", verificationID.String(), err)
	}
	return nil
}

// ExpireVerification is the handler for TaskExpireVerification. Consumed,
// already expired and deleted verifications are left as they are.
func ExpireVerification(store Invalidator, m *metrics.Verification, log *zap.Logger) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p expirePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode expire payload: %w", err)
		}

		expired, err := store.Invalidate(ctx, p.VerificationID)
		if err != nil {
			return err
		}

		if expired {
			m.ExpiredInc()
			log.Debug("Verification expired", zap.String("verification_id", p.VerificationID.String()))
		}
		return nil
	}
}
