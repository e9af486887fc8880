package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/podstreak/calendar"
	"github.com/cppla/podstreak/metrics"
	"github.com/cppla/podstreak/models"
)

// AlreadyCheckedInMessage is returned when the user's local day already has a check-in.
const AlreadyCheckedInMessage = "Already checked in today"

// CheckInResult is the outcome of one daily check-in.
type CheckInResult struct {
	Success      bool   `json:"success"`
	NewStreak    int    `json:"new_streak"`
	StreakBroken bool   `json:"streak_broken"`
	Message      string `json:"message"`
}

// ProcessCheckIn applies one day's outcome to the user's streak. A second call on the same local
// day returns Success=false and changes nothing. A zero at means now.
func (e *Engine) ProcessCheckIn(ctx context.Context, userID uint, stayedOnTrack bool, at time.Time) (*CheckInResult, error) {
	if at.IsZero() {
		at = e.now()
	}

	var result *CheckInResult
	err := e.retry.Do(ctx, "check_in", func() error {
		r, err := e.processCheckIn(ctx, userID, stayedOnTrack, at)
		result = r
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.RecordCheckIn("error")
		}
		return nil, err
	}
	return result, nil
}

func (e *Engine) processCheckIn(ctx context.Context, userID uint, stayedOnTrack bool, at time.Time) (*CheckInResult, error) {
	var (
		result   *CheckInResult
		previous int
		outcome  string
	)

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID, true)
		if err != nil {
			return err
		}
		if err := resetQuotaIfStale(tx, user, at); err != nil {
			return err
		}
		previous = user.CurrentStreak

		today := calendar.LocalDate(at, user.Timezone)
		if user.LastCheckIn != nil && calendar.IsSameDay(calendar.LocalDate(*user.LastCheckIn, user.Timezone), today) {
			result = alreadyCheckedIn(user.CurrentStreak)
			outcome = "duplicate"
			return nil
		}

		result = &CheckInResult{Success: true}
		updates := map[string]interface{}{"last_check_in": at.UTC()}

		if stayedOnTrack {
			result.NewStreak, result.StreakBroken, outcome = nextStreak(user, today)
			updates["last_successful_day"] = today
		} else {
			result.StreakBroken = user.CurrentStreak > 0
			result.NewStreak = 0
			outcome = "lost"
			if !result.StreakBroken {
				outcome = "failed"
			}
		}
		updates["current_streak"] = result.NewStreak
		result.Message = checkInMessage(outcome, result.NewStreak)

		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update streak: %w", err)
		}

		record := models.CheckIn{
			UserID:        user.ID,
			Date:          today,
			StayedOnTrack: stayedOnTrack,
		}
		if err := tx.Create(&record).Error; err != nil {
			if isDuplicateKey(err) {
				return errDuplicateCheckIn
			}
			return fmt.Errorf("insert check-in: %w", err)
		}

		e.log.Info("check-in recorded",
			zap.Uint("user_id", user.ID),
			zap.String("timezone", user.Timezone),
			zap.Stringer("date", today),
			zap.Bool("stayed_on_track", stayedOnTrack),
			zap.Int("streak", result.NewStreak),
			zap.Bool("streak_broken", result.StreakBroken),
		)
		return nil
	})

	// A concurrent check-in for the same day won the unique index.
	if errors.Is(err, errDuplicateCheckIn) {
		metrics.RecordCheckIn("duplicate")
		return alreadyCheckedIn(previous), nil
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordCheckIn(outcome)
	return result, nil
}

// nextStreak computes the streak after a successful day.
func nextStreak(user *models.User, today calendar.Date) (streak int, broken bool, outcome string) {
	if user.LastSuccessfulDay.IsZero() {
		return 1, false, "started"
	}
	switch gap := calendar.DayDistance(user.LastSuccessfulDay, today); {
	case gap == 1:
		return user.CurrentStreak + 1, false, "incremented"
	case gap > 1:
		return 1, true, "restarted"
	default:
		// Today was already made successful by a restore.
		if user.CurrentStreak < 1 {
			return 1, false, "started"
		}
		return user.CurrentStreak, false, "incremented"
	}
}

func alreadyCheckedIn(streak int) *CheckInResult {
	return &CheckInResult{
		Success:   false,
		NewStreak: streak,
		Message:   AlreadyCheckedInMessage,
	}
}

func checkInMessage(outcome string, streak int) string {
	switch outcome {
	case "started":
		return "Streak started! Day 1"
	case "restarted":
		return "Streak restarted! Day 1"
	case "incremented":
		return fmt.Sprintf("Streak incremented to %d days", streak)
	case "lost":
		return "Streak lost. Tomorrow is a fresh start"
	default:
		return "Check-in recorded"
	}
}
