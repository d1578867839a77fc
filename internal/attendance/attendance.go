// Package attendance records presences and derives certificate eligibility
// from them.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdg-garage/event-platform-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrScheduleNotStarted = errors.New("schedule has not started yet")
	ErrNotRegistered      = errors.New("user is not registered for this activity")
	ErrNotEligible        = errors.New("user is not eligible for a certificate")
)

type Service struct {
	db *gorm.DB
	// minAttendance applies to events without their own threshold.
	minAttendance float64
	now           func() time.Time
}

func NewService(db *gorm.DB, minAttendance float64) *Service {
	return &Service{db: db, minAttendance: minAttendance, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// MarkPresence sets a registered user's attendance for one schedule. It is
// only allowed once the schedule has started.
func (s *Service) MarkPresence(ctx context.Context, scheduleID, userID uint, present bool) (*models.Presence, error) {
	var presence models.Presence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var schedule models.Schedule
		if err := tx.First(&schedule, scheduleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load schedule: %w", err)
		}
		if s.now().Before(schedule.StartDate) {
			return ErrScheduleNotStarted
		}

		var registration models.ActivityRegistration
		err := tx.Where("user_id = ? AND activity_id = ?", userID, schedule.ActivityID).First(&registration).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotRegistered
			}
			return fmt.Errorf("load registration: %w", err)
		}

		// Schedules added after registration have no presence row yet.
		err = tx.Where(models.Presence{RegistrationID: registration.ID, ScheduleID: schedule.ID}).
			FirstOrInit(&presence).Error
		if err != nil {
			return fmt.Errorf("load presence: %w", err)
		}
		presence.Present = present
		if err := tx.Save(&presence).Error; err != nil {
			return fmt.Errorf("save presence: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &presence, nil
}

// Eligibility summarises a user's attendance over an event.
type Eligibility struct {
	EventID  uint    `json:"event_id"`
	UserID   uint    `json:"user_id"`
	Attended int64   `json:"attended"`
	Total    int64   `json:"total"`
	Ratio    float64 `json:"ratio"`
	Required float64 `json:"required"`
	Finished bool    `json:"event_finished"`
	Eligible bool    `json:"eligible"`
}

// Eligibility counts the user's presences over every schedule of every
// activity they are registered for in the event. A certificate requires the
// event to be over and the attended ratio to reach the threshold.
func (s *Service) Eligibility(ctx context.Context, userID, eventID uint) (*Eligibility, error) {
	return s.eligibility(s.db.WithContext(ctx), userID, eventID)
}

func (s *Service) eligibility(tx *gorm.DB, userID, eventID uint) (*Eligibility, error) {
	var event models.Event
	if err := tx.First(&event, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	if !event.Visible {
		return nil, ErrNotFound
	}

	var counts struct {
		Total    int64
		Attended int64
	}
	err := tx.Model(&models.Presence{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN presences.present THEN 1 ELSE 0 END), 0) AS attended").
		Joins("JOIN activity_registrations ON activity_registrations.id = presences.registration_id").
		Joins("JOIN activities ON activities.id = activity_registrations.activity_id AND activities.deleted_at IS NULL").
		Joins("JOIN schedules ON schedules.id = presences.schedule_id AND schedules.deleted_at IS NULL").
		Where("activity_registrations.user_id = ? AND activities.event_id = ?", userID, eventID).
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count presences: %w", err)
	}

	required := event.CertificateMinAttendance
	if required <= 0 {
		required = s.minAttendance
	}

	e := &Eligibility{
		EventID:  eventID,
		UserID:   userID,
		Attended: counts.Attended,
		Total:    counts.Total,
		Required: required,
		Finished: event.Archived(s.now()),
	}
	if counts.Total > 0 {
		e.Ratio = float64(counts.Attended) / float64(counts.Total)
	}
	e.Eligible = e.Finished && e.Total > 0 && e.Ratio >= required
	return e, nil
}

// IssueCertificate returns the user's certificate for the event, creating it
// when the user is eligible. Issuing twice returns the same certificate.
func (s *Service) IssueCertificate(ctx context.Context, userID, eventID uint) (*models.Certificate, error) {
	var certificate models.Certificate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND event_id = ?", userID, eventID).First(&certificate).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load certificate: %w", err)
		}

		e, err := s.eligibility(tx, userID, eventID)
		if err != nil {
			return err
		}
		if !e.Eligible {
			return ErrNotEligible
		}

		certificate = models.Certificate{UserID: userID, EventID: eventID, Code: uuid.NewString()}
		if err := tx.Create(&certificate).Error; err != nil {
			return fmt.Errorf("create certificate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &certificate, nil
}

// CertificateByCode looks up a certificate for public validation.
func (s *Service) CertificateByCode(ctx context.Context, code string) (*models.Certificate, error) {
	if _, err := uuid.Parse(code); err != nil {
		return nil, ErrNotFound
	}

	var certificate models.Certificate
	err := s.db.WithContext(ctx).Preload("User").Preload("Event").Where("code = ?", code).First(&certificate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	return &certificate, nil
}
