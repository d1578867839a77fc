package models

import (
	"time"
)

// ActivityRegistration rows are hard-deleted on unregistration so the
// (user, activity) unique index can be reused.
type ActivityRegistration struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UserID     uint       `json:"user_id" gorm:"uniqueIndex:idx_user_activity"`
	ActivityID uint       `json:"activity_id" gorm:"uniqueIndex:idx_user_activity"`
	User       User       `gorm:"foreignKey:UserID" json:"-"`
	Activity   Activity   `gorm:"foreignKey:ActivityID" json:"-"`
	Presences  []Presence `gorm:"foreignKey:RegistrationID" json:"presences,omitempty"`
}

type Presence struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	UpdatedAt      time.Time `json:"updated_at"`
	RegistrationID uint      `json:"registration_id" gorm:"uniqueIndex:idx_registration_schedule"`
	ScheduleID     uint      `json:"schedule_id" gorm:"uniqueIndex:idx_registration_schedule"`
	Present        bool      `json:"present" gorm:"not null"`
}
