package models

import (
	"time"
)

type Certificate struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"issued_at"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_user_event_certificate"`
	User      User      `json:"user"`
	EventID   uint      `json:"event_id" gorm:"uniqueIndex:idx_user_event_certificate"`
	Event     Event     `json:"event"`
	Code      string    `gorm:"uniqueIndex" json:"code"`
}
