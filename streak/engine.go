// Package streak implements the streak and restore engine: daily check-ins, quota-limited
// restores of missed days, the expiry sweep and the read-only status projection.
package streak

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/podstreak/calendar"
	"github.com/cppla/podstreak/models"
)

// MaxRestoresPerMonth is the monthly restore quota per user.
const MaxRestoresPerMonth = 3

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	Backoff        []time.Duration
	SweepBatchSize int
	HistoryLimit   int
	Logger         *zap.Logger
	Now            func() time.Time
}

// Engine applies streak operations against a gorm store.
type Engine struct {
	db           *gorm.DB
	log          *zap.Logger
	retry        *Retrier
	now          func() time.Time
	batchSize    int
	historyLimit int
}

// NewEngine creates an Engine over db.
func NewEngine(db *gorm.DB, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SweepBatchSize <= 0 {
		opts.SweepBatchSize = 500
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	return &Engine{
		db:           db,
		log:          opts.Logger,
		retry:        NewRetrier(opts.Backoff, opts.Logger),
		now:          opts.Now,
		batchSize:    opts.SweepBatchSize,
		historyLimit: opts.HistoryLimit,
	}
}

// loadUser reads the user row, locking it for the rest of tx when lock is set.
func loadUser(tx *gorm.DB, userID uint, lock bool) (*models.User, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var user models.User
	if err := q.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// quotaStale reports whether the restore counter was last reset in a month before now.
func quotaStale(user *models.User, now time.Time) bool {
	return user.RestoresResetAt == nil || !calendar.SameMonth(*user.RestoresResetAt, now, user.Timezone)
}

// resetQuotaIfStale zeroes the monthly restore counter on the first call of a new month.
func resetQuotaIfStale(tx *gorm.DB, user *models.User, now time.Time) error {
	if !quotaStale(user, now) {
		return nil
	}
	resetAt := now.UTC()
	err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"restores_used_this_month": 0,
		"restores_reset_at":        resetAt,
	}).Error
	if err != nil {
		return fmt.Errorf("reset restore quota: %w", err)
	}
	user.RestoresUsedThisMonth = 0
	user.RestoresResetAt = &resetAt
	return nil
}

func restoresRemaining(user *models.User) int {
	remaining := MaxRestoresPerMonth - user.RestoresUsedThisMonth
	if remaining < 0 {
		return 0
	}
	return remaining
}
