// Package registration persists activity registrations once the
// eligibility rules approve them.
package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdg-garage/event-platform-api/internal/eligibility"
	"github.com/gdg-garage/event-platform-api/internal/logger"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"github.com/gdg-garage/event-platform-api/internal/notifier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	notifier notifier.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates a registration service. The notifier may be nil.
func NewService(db *gorm.DB, n notifier.Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, notifier: n, log: log, now: time.Now}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Register enrolls the user in the activity and creates one presence per
// schedule, defaulted to present. Rejections are returned as
// *eligibility.Rejection.
func (s *Service) Register(ctx context.Context, userID, activityID uint) (*models.ActivityRegistration, error) {
	var (
		registration models.ActivityRegistration
		activity     *models.Activity
	)
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		activity, err = loadActivity(tx, activityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return eligibility.NotFound.Err()
			}
			return fmt.Errorf("load activity: %w", err)
		}

		var registered int64
		if err := tx.Model(&models.ActivityRegistration{}).Where("activity_id = ?", activityID).Count(&registered).Error; err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}

		existing, err := userRegistrations(tx, userID)
		if err != nil {
			return fmt.Errorf("load user registrations: %w", err)
		}

		reason := eligibility.CanRegister(now, eventSnapshot(activity.Event), activitySnapshot(*activity, registered), userID, existing)
		if reason != eligibility.OK {
			return reason.Err()
		}

		registration = models.ActivityRegistration{UserID: userID, ActivityID: activityID}
		if err := tx.Create(&registration).Error; err != nil {
			// The unique index is authoritative when a concurrent request won.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return eligibility.AlreadyRegistered.Err()
			}
			return fmt.Errorf("create registration: %w", err)
		}

		if len(activity.Schedules) > 0 {
			presences := make([]models.Presence, 0, len(activity.Schedules))
			for _, schedule := range activity.Schedules {
				presences = append(presences, models.Presence{
					RegistrationID: registration.ID,
					ScheduleID:     schedule.ID,
					Present:        true,
				})
			}
			if err := tx.Create(&presences).Error; err != nil {
				return fmt.Errorf("create presences: %w", err)
			}
			registration.Presences = presences
		}

		return tx.Create(&models.RegistrationLog{
			UserID:     userID,
			ActivityID: activityID,
			EventID:    activity.EventID,
			Action:     models.ActionRegistered,
		}).Error
	})
	if err != nil {
		s.logRejection(err, userID, activityID, "register")
		return nil, err
	}

	s.notify(ctx, userID, *activity, models.ActionRegistered)
	return &registration, nil
}

// Unregister removes the user's registration and its presences. It returns
// the number of registrations removed; zero means there was nothing to
// remove, which is not an error.
func (s *Service) Unregister(ctx context.Context, userID, activityID uint) (int64, error) {
	var (
		removed  int64
		activity models.Activity
	)
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Event").First(&activity, activityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return eligibility.NotFound.Err()
			}
			return fmt.Errorf("load activity: %w", err)
		}

		var current *eligibility.Registration
		var registration models.ActivityRegistration
		err := tx.Where("user_id = ? AND activity_id = ?", userID, activityID).First(&registration).Error
		switch {
		case err == nil:
			current = &eligibility.Registration{ActivityID: activityID}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("load registration: %w", err)
		}

		verdict := eligibility.CanUnregister(now, eventSnapshot(activity.Event), current)
		if verdict.Reason != eligibility.OK {
			return verdict.Reason.Err()
		}
		if verdict.Noop {
			return nil
		}

		if err := tx.Where("registration_id = ?", registration.ID).Delete(&models.Presence{}).Error; err != nil {
			return fmt.Errorf("delete presences: %w", err)
		}
		result := tx.Delete(&registration)
		if result.Error != nil {
			return fmt.Errorf("delete registration: %w", result.Error)
		}
		removed = result.RowsAffected

		return tx.Create(&models.RegistrationLog{
			UserID:     userID,
			ActivityID: activityID,
			EventID:    activity.EventID,
			Action:     models.ActionUnregistered,
		}).Error
	})
	if err != nil {
		s.logRejection(err, userID, activityID, "unregister")
		return 0, err
	}

	if removed > 0 {
		s.notify(ctx, userID, activity, models.ActionUnregistered)
	}
	return removed, nil
}

// ForUser lists the user's registrations with their activities and presences.
func (s *Service) ForUser(ctx context.Context, userID uint) ([]models.ActivityRegistration, error) {
	var regs []models.ActivityRegistration
	err := s.db.WithContext(ctx).
		Preload("Activity.Schedules").
		Preload("Presences").
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&regs).Error
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// ForActivity lists the registrations of an activity with their users.
func (s *Service) ForActivity(ctx context.Context, activityID uint) ([]models.ActivityRegistration, error) {
	var regs []models.ActivityRegistration
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Presences").
		Where("activity_id = ?", activityID).
		Order("created_at").
		Find(&regs).Error
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// History returns the user's registration log, newest first.
func (s *Service) History(ctx context.Context, userID uint) ([]models.RegistrationLog, error) {
	var logs []models.RegistrationLog
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc, id desc").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list registration log: %w", err)
	}
	return logs, nil
}

func (s *Service) logRejection(err error, userID, activityID uint, op string) {
	fields := []zap.Field{
		zap.String(logger.FieldOperation, op),
		zap.Uint(logger.FieldUserID, userID),
		zap.Uint(logger.FieldActivityID, activityID),
	}
	if reason, ok := eligibility.ReasonOf(err); ok {
		s.log.Info("registration rejected", append(fields, zap.String(logger.FieldReason, string(reason)))...)
		return
	}
	s.log.Error("registration failed", append(fields, zap.Error(err))...)
}

func (s *Service) notify(ctx context.Context, userID uint, activity models.Activity, action models.RegistrationAction) {
	if s.notifier == nil {
		return
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		s.log.Warn("notification skipped", zap.Uint(logger.FieldUserID, userID), zap.Error(err))
		return
	}
	if err := s.notifier.NotifyRegistration(user, activity, action); err != nil {
		// Don't fail the request here as the registration is committed
		s.log.Warn("failed to send notification", zap.Error(err))
	}
}
