package streak

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/podstreak/models"
)

func TestRestoreDefaultsToYesterday(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := createUser(t, db, models.User{
		Timezone:          "UTC",
		CurrentStreak:     4,
		LastSuccessfulDay: date(t, "2026-03-13"),
	})

	res, err := engine.UseStreakRestore(context.Background(), user.ID, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "2026-03-14", res.RestoredDate.String())
	assert.Equal(t, 5, res.NewStreak)
	assert.Equal(t, 2, res.RestoresRemaining)
	assert.Equal(t, "Streak restored for 2026-03-14. Current streak: 5 days", res.Message)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 5, got.CurrentStreak)
	assert.Equal(t, "2026-03-14", got.LastSuccessfulDay.String())
	assert.Equal(t, 1, got.RestoresUsedThisMonth)

	var audit models.StreakRestore
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&audit).Error)
	assert.Equal(t, "2026-03-14", audit.RestoredDate.String())
	assert.Equal(t, 5, audit.StreakAtRestore)
	assert.Equal(t, 3, audit.Month)
	assert.Equal(t, 2026, audit.Year)

	var row models.CheckIn
	require.NoError(t, db.Where("user_id = ? AND date = ?", user.ID, date(t, "2026-03-14")).First(&row).Error)
	assert.True(t, row.StayedOnTrack)

	// The restored day keeps the streak alive for today's check-in.
	next, err := engine.ProcessCheckIn(context.Background(), user.ID, true, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 6, next.NewStreak)
	assert.False(t, next.StreakBroken)
}

func TestRestoreQuotaIsThreePerMonth(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := createUser(t, db, models.User{Timezone: "UTC"})
	ctx := context.Background()

	for i, day := range []string{"2026-03-14", "2026-03-13", "2026-03-12"} {
		target := date(t, day)
		res, err := engine.UseStreakRestore(ctx, user.ID, &target)
		require.NoError(t, err, day)
		assert.Equal(t, MaxRestoresPerMonth-i-1, res.RestoresRemaining)
	}

	target := date(t, "2026-03-11")
	_, err := engine.UseStreakRestore(ctx, user.ID, &target)
	assert.ErrorIs(t, err, ErrNoRestoresRemaining)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 3, got.RestoresUsedThisMonth)
	assert.Equal(t, 3, got.CurrentStreak)
	assert.Equal(t, "2026-03-14", got.LastSuccessfulDay.String())
}

func TestRestoreScenarioQuotaExhausted(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := createUser(t, db, models.User{
		Timezone:              "UTC",
		CurrentStreak:         6,
		LastSuccessfulDay:     date(t, "2026-03-13"),
		RestoresUsedThisMonth: 3,
	})

	_, err := engine.UseStreakRestore(context.Background(), user.ID, nil)
	assert.ErrorIs(t, err, ErrNoRestoresRemaining)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 6, got.CurrentStreak)
	assert.Equal(t, "2026-03-13", got.LastSuccessfulDay.String())
	assert.Equal(t, int64(0), countCheckIns(t, db, user.ID))
}

func TestRestoreRejectsFutureDate(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := createUser(t, db, models.User{Timezone: "UTC"})

	target := date(t, "2026-03-16")
	_, err := engine.UseStreakRestore(context.Background(), user.ID, &target)
	assert.ErrorIs(t, err, ErrInvalidDate)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 0, got.RestoresUsedThisMonth)
	assert.Equal(t, int64(0), countCheckIns(t, db, user.ID))
}

func TestRestoreTodayIsAllowed(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := createUser(t, db, models.User{Timezone: "UTC"})

	target := date(t, "2026-03-15")
	res, err := engine.UseStreakRestore(context.Background(), user.ID, &target)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewStreak)
}

func TestRestoreRejectsSuccessfulDay(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := createUser(t, db, models.User{
		Timezone:          "UTC",
		CurrentStreak:     1,
		LastSuccessfulDay: date(t, "2026-03-14"),
	})
	require.NoError(t, db.Create(&models.CheckIn{UserID: user.ID, Date: date(t, "2026-03-14"), StayedOnTrack: true}).Error)

	_, err := engine.UseStreakRestore(context.Background(), user.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadySuccessful)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 0, got.RestoresUsedThisMonth)
	assert.Equal(t, 1, got.CurrentStreak)
}

func TestRestoreOverwritesFailedCheckIn(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := createUser(t, db, models.User{
		Timezone:          "UTC",
		LastSuccessfulDay: date(t, "2026-03-13"),
	})
	require.NoError(t, db.Create(&models.CheckIn{UserID: user.ID, Date: date(t, "2026-03-14"), StayedOnTrack: false}).Error)

	res, err := engine.UseStreakRestore(context.Background(), user.ID, nil)
	require.NoError(t, err)
	// Distance from the last successful day is one, so the zeroed streak resumes at one.
	assert.Equal(t, 1, res.NewStreak)

	assert.Equal(t, int64(1), countCheckIns(t, db, user.ID))
	var row models.CheckIn
	require.NoError(t, db.Where("user_id = ? AND date = ?", user.ID, date(t, "2026-03-14")).First(&row).Error)
	assert.True(t, row.StayedOnTrack)
}

func TestRestoreOlderDayKeepsLastSuccessfulDay(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := createUser(t, db, models.User{
		Timezone:          "UTC",
		CurrentStreak:     2,
		LastSuccessfulDay: date(t, "2026-03-15"),
	})

	target := date(t, "2026-03-10")
	res, err := engine.UseStreakRestore(context.Background(), user.ID, &target)
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewStreak)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, "2026-03-15", got.LastSuccessfulDay.String())
}

func TestRestoreResetsQuotaInNewMonth(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	february := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)
	user := createUser(t, db, models.User{
		Timezone:              "UTC",
		RestoresUsedThisMonth: 3,
		RestoresResetAt:       &february,
	})

	res, err := engine.UseStreakRestore(context.Background(), user.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RestoresRemaining)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 1, got.RestoresUsedThisMonth)
	require.NotNil(t, got.RestoresResetAt)
	assert.True(t, got.RestoresResetAt.Equal(baseNow))
}

func TestRestoreValidationFailureLeavesStaleQuotaUntouched(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	february := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)
	user := createUser(t, db, models.User{
		Timezone:              "UTC",
		RestoresUsedThisMonth: 3,
		RestoresResetAt:       &february,
	})

	target := date(t, "2026-04-01")
	_, err := engine.UseStreakRestore(context.Background(), user.ID, &target)
	require.ErrorIs(t, err, ErrInvalidDate)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 3, got.RestoresUsedThisMonth)
	require.NotNil(t, got.RestoresResetAt)
	assert.True(t, got.RestoresResetAt.Equal(february))
}

func TestRestoreUnknownUser(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.UseStreakRestore(context.Background(), 77, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreHistoryNewestFirstAndLimited(t *testing.T) {
	_, db, clk := newTestEngine(t)
	engine := NewEngine(db, Options{HistoryLimit: 2, Now: clk.Now})
	user := createUser(t, db, models.User{Timezone: "UTC", RestoresUsedThisMonth: 2})
	other := createUser(t, db, models.User{Timezone: "UTC"})

	for i, day := range []string{"2026-03-01", "2026-03-05", "2026-03-09"} {
		require.NoError(t, db.Create(&models.StreakRestore{
			UserID:          user.ID,
			RestoredDate:    date(t, day),
			StreakAtRestore: i + 1,
			Month:           3,
			Year:            2026,
			CreatedAt:       baseNow.Add(time.Duration(i-3) * 24 * time.Hour),
		}).Error)
	}
	require.NoError(t, db.Create(&models.StreakRestore{
		UserID: other.ID, RestoredDate: date(t, "2026-03-10"), Month: 3, Year: 2026, CreatedAt: baseNow,
	}).Error)

	history, err := engine.GetRestoreHistory(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, history.Restores, 2)
	assert.Equal(t, "2026-03-09", history.Restores[0].RestoredDate.String())
	assert.Equal(t, "2026-03-05", history.Restores[1].RestoredDate.String())
	assert.Equal(t, 2, history.RestoresUsedThisMonth)
	assert.Equal(t, 1, history.RestoresRemaining)
}

func TestRestoreHistoryEmpty(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := createUser(t, db, models.User{Timezone: "UTC"})

	history, err := engine.GetRestoreHistory(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, history.Restores)
	assert.Empty(t, history.Restores)
	assert.Equal(t, MaxRestoresPerMonth, history.RestoresRemaining)
}

func TestRestoredStreak(t *testing.T) {
	cases := []struct {
		name   string
		user   models.User
		target string
		want   int
	}{
		{"no history", models.User{}, "2026-03-14", 1},
		{"adjacent day", models.User{CurrentStreak: 4, LastSuccessfulDay: date(t, "2026-03-13")}, "2026-03-14", 5},
		{"bridges a longer gap", models.User{CurrentStreak: 4, LastSuccessfulDay: date(t, "2026-03-10")}, "2026-03-14", 5},
		{"long gap without streak", models.User{LastSuccessfulDay: date(t, "2026-03-10")}, "2026-03-14", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, restoredStreak(&tc.user, date(t, tc.target)))
		})
	}
}

func TestRestoreOutcomeLabels(t *testing.T) {
	assert.Equal(t, "success", restoreOutcome(nil))
	assert.Equal(t, "invalid_date", restoreOutcome(ErrInvalidDate))
	assert.Equal(t, "no_restores_remaining", restoreOutcome(ErrNoRestoresRemaining))
	assert.Equal(t, "error", restoreOutcome(assert.AnError))
}
