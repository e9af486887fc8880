package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/cppla/podstreak/calendar"
)

// User is the subset of the account record the streak engine reads and writes. Profile fields are
// owned by the account service and are not mapped here.
type User struct {
	ID                    uint          `gorm:"primaryKey" json:"id"`
	Timezone              string        `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	CurrentStreak         int           `gorm:"not null;default:0;index" json:"current_streak"`
	LastSuccessfulDay     calendar.Date `gorm:"type:varchar(10)" json:"last_successful_day"`
	LastCheckIn           *time.Time    `json:"last_check_in"`
	RestoresUsedThisMonth int           `gorm:"not null;default:0" json:"restores_used_this_month"`
	RestoresResetAt       *time.Time    `json:"restores_reset_at"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	return nil
}
