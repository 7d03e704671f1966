package labels

import (
	"context"
	"errors"
	"time"

	"pretgo/internal/worker"

	"github.com/rs/zerolog"
)

// RetrySender retries a batch while the printer is unreachable. A batch that
// reached the printer is never resent.
type RetrySender struct {
	next   Sender
	policy worker.RetryPolicy
	logger *zerolog.Logger
}

func WithRetry(next Sender, policy worker.RetryPolicy, logger *zerolog.Logger) *RetrySender {
	return &RetrySender{next: next, policy: policy, logger: logger}
}

func (r *RetrySender) Send(ctx context.Context, labels []string) error {
	unreachable := func(err error) bool { return errors.Is(err, ErrUnreachable) }
	logRetry := func(attempt int, delay time.Duration, err error) {
		r.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Printer unreachable, retrying")
	}
	return r.policy.Do(ctx, unreachable, logRetry, func(ctx context.Context) error {
		return r.next.Send(ctx, labels)
	})
}
