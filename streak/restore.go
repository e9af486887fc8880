package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/podstreak/calendar"
	"github.com/cppla/podstreak/metrics"
	"github.com/cppla/podstreak/models"
)

// RestoreResult is the outcome of a successful restore.
type RestoreResult struct {
	Success           bool          `json:"success"`
	Message           string        `json:"message"`
	NewStreak         int           `json:"new_streak"`
	RestoresRemaining int           `json:"restores_remaining"`
	RestoredDate      calendar.Date `json:"restored_date"`
}

// RestoreHistory lists the most recent restores with the current quota.
type RestoreHistory struct {
	Restores              []models.StreakRestore `json:"restores"`
	RestoresUsedThisMonth int                    `json:"restores_used_this_month"`
	RestoresRemaining     int                    `json:"restores_remaining"`
}

// UseStreakRestore marks a missed day as successful and consumes one monthly restore.
// A nil restoreDate targets yesterday in the user's timezone.
func (e *Engine) UseStreakRestore(ctx context.Context, userID uint, restoreDate *calendar.Date) (*RestoreResult, error) {
	now := e.now()

	var result *RestoreResult
	err := e.retry.Do(ctx, "restore", func() error {
		r, err := e.useStreakRestore(ctx, userID, restoreDate, now)
		result = r
		return err
	})
	metrics.RecordRestore(restoreOutcome(err))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) useStreakRestore(ctx context.Context, userID uint, restoreDate *calendar.Date, now time.Time) (*RestoreResult, error) {
	var result *RestoreResult

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID, true)
		if err != nil {
			return err
		}
		if err := resetQuotaIfStale(tx, user, now); err != nil {
			return err
		}

		remaining := restoresRemaining(user)
		if remaining <= 0 {
			return ErrNoRestoresRemaining
		}

		today := calendar.LocalDate(now, user.Timezone)
		target := today.AddDays(-1)
		if restoreDate != nil && !restoreDate.IsZero() {
			target = *restoreDate
		}
		if target.After(today) {
			return fmt.Errorf("%s is after %s: %w", target, today, ErrInvalidDate)
		}

		var successful int64
		if err := tx.Model(&models.CheckIn{}).
			Where("user_id = ? AND date = ? AND stayed_on_track = ?", user.ID, target, true).
			Count(&successful).Error; err != nil {
			return fmt.Errorf("look up check-in: %w", err)
		}
		if successful > 0 {
			return ErrAlreadySuccessful
		}

		newStreak := restoredStreak(user, target)

		// Restoring an older day never moves the last successful day backwards.
		lastSuccessful := target
		if user.LastSuccessfulDay.After(target) {
			lastSuccessful = user.LastSuccessfulDay
		}

		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"current_streak":           newStreak,
			"last_successful_day":      lastSuccessful,
			"restores_used_this_month": gorm.Expr("restores_used_this_month + ?", 1),
		}).Error; err != nil {
			return fmt.Errorf("update streak: %w", err)
		}

		restore := models.StreakRestore{
			UserID:          user.ID,
			RestoredDate:    target,
			StreakAtRestore: newStreak,
			Month:           int(today.Month),
			Year:            today.Year,
		}
		if err := tx.Create(&restore).Error; err != nil {
			return fmt.Errorf("insert restore: %w", err)
		}

		// A failed check-in may already exist for the target day.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"stayed_on_track": true, "updated_at": now.UTC()}),
		}).Create(&models.CheckIn{UserID: user.ID, Date: target, StayedOnTrack: true}).Error; err != nil {
			return fmt.Errorf("upsert check-in: %w", err)
		}

		result = &RestoreResult{
			Success:           true,
			Message:           fmt.Sprintf("Streak restored for %s. Current streak: %d days", target, newStreak),
			NewStreak:         newStreak,
			RestoresRemaining: remaining - 1,
			RestoredDate:      target,
		}

		e.log.Info("streak restored",
			zap.Uint("user_id", user.ID),
			zap.Stringer("restored_date", target),
			zap.Int("streak", newStreak),
			zap.Int("restores_remaining", result.RestoresRemaining),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// restoredStreak computes the streak after restoring target. A restore may bridge a gap of any length.
func restoredStreak(user *models.User, target calendar.Date) int {
	if user.LastSuccessfulDay.IsZero() {
		return 1
	}
	if calendar.DayDistance(user.LastSuccessfulDay, target) <= 1 {
		return user.CurrentStreak + 1
	}
	if user.CurrentStreak > 0 {
		return user.CurrentStreak + 1
	}
	return 1
}

// GetRestoreHistory returns the latest restores, newest first, with the current monthly quota.
func (e *Engine) GetRestoreHistory(ctx context.Context, userID uint) (*RestoreHistory, error) {
	now := e.now()
	history := &RestoreHistory{Restores: []models.StreakRestore{}}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID, false)
		if err != nil {
			return err
		}
		if err := resetQuotaIfStale(tx, user, now); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).
			Order("created_at DESC").Order("id DESC").
			Limit(e.historyLimit).
			Find(&history.Restores).Error; err != nil {
			return fmt.Errorf("list restores: %w", err)
		}
		history.RestoresUsedThisMonth = user.RestoresUsedThisMonth
		history.RestoresRemaining = restoresRemaining(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

func restoreOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoRestoresRemaining):
		return "no_restores_remaining"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, ErrAlreadySuccessful):
		return "already_successful"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
