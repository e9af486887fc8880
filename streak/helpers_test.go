package streak

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/podstreak/calendar"
	"github.com/cppla/podstreak/config"
	"github.com/cppla/podstreak/models"
)

// clock is a settable time source for the engine under test.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// baseNow is 12:00 UTC on Sunday 2026-03-15.
var baseNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000",
		LogLevel:    "silent",
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, &models.User{}, &models.CheckIn{}, &models.StreakRestore{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *clock) {
	t.Helper()
	db := newTestDB(t)
	clk := &clock{t: baseNow}
	engine := NewEngine(db, Options{
		Backoff: []time.Duration{time.Millisecond},
		Now:     clk.Now,
	})
	return engine, db, clk
}

func date(t *testing.T, s string) calendar.Date {
	t.Helper()
	d, err := calendar.ParseDate(s)
	require.NoError(t, err)
	return d
}

func createUser(t *testing.T, db *gorm.DB, u models.User) *models.User {
	t.Helper()
	if u.RestoresResetAt == nil {
		resetAt := baseNow
		u.RestoresResetAt = &resetAt
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u
}

func countCheckIns(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.CheckIn{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}
