package registration

import (
	"time"

	"github.com/gdg-garage/event-platform-api/internal/eligibility"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"gorm.io/gorm"
)

func eventSnapshot(e models.Event) eligibility.Event {
	return eligibility.Event{
		Visible:           e.Visible,
		StartDate:         e.StartDate,
		EndDate:           e.EndDate,
		RegistryStartDate: e.RegistryStartDate,
		RegistryEndDate:   e.RegistryEndDate,
	}
}

func activitySnapshot(a models.Activity, registered int64) eligibility.Activity {
	return eligibility.Activity{
		ID:                 a.ID,
		ResponsibleUserIDs: userSet(a.ResponsibleUsers),
		TeachingUserIDs:    userSet(a.TeachingUsers),
		Vacancies:          a.Vacancies,
		Registered:         int(registered),
		Schedules:          slots(a.Schedules),
	}
}

func userSet(users []models.User) eligibility.UserSet {
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return eligibility.NewUserSet(ids...)
}

func slots(schedules []models.Schedule) []eligibility.Slot {
	out := make([]eligibility.Slot, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, eligibility.Slot{
			Start:    s.StartDate,
			Duration: time.Duration(s.DurationMinutes) * time.Minute,
		})
	}
	return out
}

// loadActivity fetches an activity with everything the rules need.
func loadActivity(tx *gorm.DB, activityID uint) (*models.Activity, error) {
	var activity models.Activity
	err := tx.
		Preload("Event").
		Preload("ResponsibleUsers").
		Preload("TeachingUsers").
		Preload("Schedules", func(db *gorm.DB) *gorm.DB { return db.Order("start_date") }).
		First(&activity, activityID).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// userRegistrations resolves every registration of the user to the
// schedules of its activity. Registrations whose activity or event was
// deleted no longer block anything.
func userRegistrations(tx *gorm.DB, userID uint) ([]eligibility.Registration, error) {
	var regs []models.ActivityRegistration
	err := tx.Preload("Activity.Schedules").
		Joins("JOIN activities ON activities.id = activity_registrations.activity_id AND activities.deleted_at IS NULL").
		Joins("JOIN events ON events.id = activities.event_id AND events.deleted_at IS NULL").
		Where("activity_registrations.user_id = ?", userID).
		Find(&regs).Error
	if err != nil {
		return nil, err
	}

	out := make([]eligibility.Registration, 0, len(regs))
	for _, r := range regs {
		out = append(out, eligibility.Registration{
			ActivityID: r.ActivityID,
			Schedules:  slots(r.Activity.Schedules),
		})
	}
	return out, nil
}
