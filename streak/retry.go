package streak

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/cppla/podstreak/metrics"
)

// Retrier re-runs a storage call on transient connectivity errors following a fixed schedule.
// Logical errors pass straight through on the first attempt.
type Retrier struct {
	schedule []time.Duration
	log      *zap.Logger
}

// NewRetrier builds a Retrier. An empty schedule disables retries.
func NewRetrier(schedule []time.Duration, log *zap.Logger) *Retrier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retrier{schedule: schedule, log: log}
}

// Do runs fn, retrying it while it fails with a transient error and the schedule has steps left.
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && !IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(&scheduleBackOff{schedule: r.schedule}),
		backoff.WithMaxTries(uint(len(r.schedule)+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RecordRetry(op)
			r.log.Warn("transient storage error, retrying",
				zap.String("op", op), zap.Duration("backoff", next), zap.Error(err))
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

// scheduleBackOff walks a fixed list of delays and then stops.
type scheduleBackOff struct {
	schedule []time.Duration
	next     int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	if b.next >= len(b.schedule) {
		return backoff.Stop
	}
	d := b.schedule[b.next]
	b.next++
	return d
}

func (b *scheduleBackOff) Reset() {
	b.next = 0
}
