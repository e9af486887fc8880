package streak

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/podstreak/calendar"
	"github.com/cppla/podstreak/metrics"
	"github.com/cppla/podstreak/models"
)

// SweepSummary reports the users whose streaks the sweep zeroed.
type SweepSummary struct {
	BrokenStreaks int    `json:"broken_streaks"`
	UsersAffected []uint `json:"users_affected"`
	Failed        int    `json:"failed"`
}

// CheckAndBreakExpiredStreaks zeroes the streak of every user whose last successful day is more
// than one local day behind. One user's failure is logged and skipped; the pass continues.
func (e *Engine) CheckAndBreakExpiredStreaks(ctx context.Context) (*SweepSummary, error) {
	now := e.now()
	summary := &SweepSummary{UsersAffected: []uint{}}

	var lastID uint
	for {
		var batch []models.User
		err := e.retry.Do(ctx, "sweep_scan", func() error {
			batch = batch[:0]
			return e.db.WithContext(ctx).
				Where("current_streak > ? AND id > ?", 0, lastID).
				Order("id").
				Limit(e.batchSize).
				Find(&batch).Error
		})
		if err != nil {
			return nil, fmt.Errorf("scan active streaks after id %d: %w", lastID, err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			user := &batch[i]
			lastID = user.ID
			if !expired(user, now) {
				continue
			}

			var affected int64
			err := e.retry.Do(ctx, "sweep_update", func() error {
				n, err := e.breakStreak(ctx, user)
				affected = n
				return err
			})
			if err != nil {
				summary.Failed++
				e.log.Error("failed to break expired streak", zap.Uint("user_id", user.ID), zap.Error(err))
				continue
			}
			if affected == 0 {
				// The row moved on since it was read, most likely a fresh check-in.
				continue
			}
			summary.BrokenStreaks++
			summary.UsersAffected = append(summary.UsersAffected, user.ID)
			e.log.Info("streak expired",
				zap.Uint("user_id", user.ID),
				zap.Int("streak", user.CurrentStreak),
				zap.Stringer("last_successful_day", user.LastSuccessfulDay),
			)
		}

		if len(batch) < e.batchSize {
			break
		}
	}

	metrics.RecordSweep(summary.BrokenStreaks, summary.Failed)
	e.log.Info("expiry sweep finished",
		zap.Int("broken_streaks", summary.BrokenStreaks),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// expired reports whether user's streak must be zeroed at now.
func expired(user *models.User, now time.Time) bool {
	if user.LastSuccessfulDay.IsZero() {
		return true
	}
	today := calendar.LocalDate(now, user.Timezone)
	return calendar.DayDistance(user.LastSuccessfulDay, today) > 1
}

// breakStreak zeroes the streak only if the row still holds the last successful day that was read.
func (e *Engine) breakStreak(ctx context.Context, user *models.User) (int64, error) {
	q := e.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND current_streak > ?", user.ID, 0)
	if user.LastSuccessfulDay.IsZero() {
		q = q.Where("last_successful_day IS NULL")
	} else {
		q = q.Where("last_successful_day = ?", user.LastSuccessfulDay)
	}
	res := q.Update("current_streak", 0)
	return res.RowsAffected, res.Error
}
