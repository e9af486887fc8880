package models

import (
	"time"

	"github.com/cppla/podstreak/calendar"
)

// CheckIn stores one daily outcome per user and calendar date.
type CheckIn struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	UserID        uint          `gorm:"not null;uniqueIndex:idx_check_in_user_date,priority:1" json:"user_id"`
	Date          calendar.Date `gorm:"type:varchar(10);not null;uniqueIndex:idx_check_in_user_date,priority:2" json:"date"`
	StayedOnTrack bool          `gorm:"not null" json:"stayed_on_track"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
