package models

import (
	"gorm.io/gorm"
)

type RegistrationAction string

const (
	ActionRegistered   RegistrationAction = "registered"
	ActionUnregistered RegistrationAction = "unregistered"
)

type RegistrationLog struct {
	gorm.Model
	UserID     uint               `json:"user_id" gorm:"index"`
	ActivityID uint               `json:"activity_id"`
	EventID    uint               `json:"event_id"`
	Action     RegistrationAction `json:"action"`
}
