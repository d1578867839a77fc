package models

import (
	"time"

	"gorm.io/gorm"
)

type Activity struct {
	gorm.Model
	EventID          uint       `json:"event_id"`
	Event            Event      `json:"-"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Vacancies        int        `json:"vacancies"` // 0 means unlimited
	WorkloadMinutes  int        `json:"workload_minutes"`
	ResponsibleUsers []User     `gorm:"many2many:activity_responsibles;" json:"responsible_users,omitempty"`
	TeachingUsers    []User     `gorm:"many2many:activity_teachers;" json:"teaching_users,omitempty"`
	Schedules        []Schedule `json:"schedules,omitempty"`
}

type Schedule struct {
	gorm.Model
	ActivityID      uint      `json:"activity_id"`
	StartDate       time.Time `json:"start_date"`
	DurationMinutes int       `json:"duration_minutes"`
	RoomID          *uint     `json:"room_id,omitempty"`
	Room            *Room     `json:"room,omitempty"`
	URL             string    `json:"url,omitempty"`
}

func (s Schedule) EndDate() time.Time {
	return s.StartDate.Add(time.Duration(s.DurationMinutes) * time.Minute)
}
