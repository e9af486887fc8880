package streak

import (
	"context"

	"gorm.io/gorm"

	"github.com/cppla/podstreak/calendar"
)

// Status is the read-only view of a user's streak health.
type Status struct {
	CurrentStreak        int           `json:"current_streak"`
	IsStreakBroken       bool          `json:"is_streak_broken"`
	CanUseRestore        bool          `json:"can_use_restore"`
	RestoresRemaining    int           `json:"restores_remaining"`
	DaysSinceLastSuccess int           `json:"days_since_last_success"`
	LastSuccessfulDay    calendar.Date `json:"last_successful_day"`
}

// GetStreakStatus projects the user's streak for display. The only write it may perform is the
// monthly restore quota reset.
func (e *Engine) GetStreakStatus(ctx context.Context, userID uint) (*Status, error) {
	now := e.now()
	var status *Status

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID, false)
		if err != nil {
			return err
		}
		if err := resetQuotaIfStale(tx, user, now); err != nil {
			return err
		}

		days := 0
		if !user.LastSuccessfulDay.IsZero() {
			days = calendar.DayDistance(user.LastSuccessfulDay, calendar.LocalDate(now, user.Timezone))
		}
		remaining := restoresRemaining(user)
		status = &Status{
			CurrentStreak:        user.CurrentStreak,
			IsStreakBroken:       days > 1,
			CanUseRestore:        remaining > 0 && days > 0,
			RestoresRemaining:    remaining,
			DaysSinceLastSuccess: days,
			LastSuccessfulDay:    user.LastSuccessfulDay,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}
