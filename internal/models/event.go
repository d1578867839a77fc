package models

import (
	"time"

	"gorm.io/gorm"
)

// Event is a conference or expo. Invisible events are hidden from
// attendees entirely, not just closed for registration.
type Event struct {
	gorm.Model
	Name                     string     `json:"name"`
	Description              string     `json:"description"`
	Visible                  bool       `json:"visible"`
	Active                   bool       `json:"active"`
	StartDate                time.Time  `json:"start_date"`
	EndDate                  time.Time  `json:"end_date"`
	RegistryStartDate        time.Time  `json:"registry_start_date"`
	RegistryEndDate          time.Time  `json:"registry_end_date"`
	CertificateMinAttendance float64    `json:"certificate_min_attendance"`
	Organizers               []User     `gorm:"many2many:event_organizers;" json:"organizers,omitempty"`
	Activities               []Activity `json:"activities,omitempty"`
}

// Archived reports whether the event is over at the given instant.
func (e Event) Archived(now time.Time) bool {
	return !now.Before(e.EndDate)
}
