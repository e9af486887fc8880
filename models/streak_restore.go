package models

import (
	"time"

	"github.com/cppla/podstreak/calendar"
)

// StreakRestore is the audit row written for every consumed restore.
type StreakRestore struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	UserID          uint          `gorm:"not null;index:idx_restore_user_created,priority:1" json:"user_id"`
	RestoredDate    calendar.Date `gorm:"type:varchar(10);not null" json:"restored_date"`
	StreakAtRestore int           `gorm:"not null" json:"streak_at_restore"`
	Month           int           `gorm:"not null" json:"month"`
	Year            int           `gorm:"not null" json:"year"`
	CreatedAt       time.Time     `gorm:"index:idx_restore_user_created,priority:2" json:"created_at"`
}
