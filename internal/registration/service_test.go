package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gdg-garage/event-platform-api/internal/database"
	"github.com/gdg-garage/event-platform-api/internal/eligibility"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"gorm.io/gorm"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu      sync.Mutex
	actions []models.RegistrationAction
}

func (n *recordingNotifier) NotifyRegistration(user models.User, activity models.Activity, action models.RegistrationAction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, action)
	return nil
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	notifier *recordingNotifier
	event    models.Event
	user     models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	event := models.Event{
		Name:              "Tech Week",
		Visible:           true,
		Active:            true,
		StartDate:         now.Add(10 * 24 * time.Hour),
		EndDate:           now.Add(12 * 24 * time.Hour),
		RegistryStartDate: now.Add(-5 * 24 * time.Hour),
		RegistryEndDate:   now.Add(7 * 24 * time.Hour),
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	user := models.User{Name: "Attendee", Email: "attendee@example.com"}
	db.Create(&user)

	n := &recordingNotifier{}
	svc := NewService(db, n, nil)
	svc.SetClock(func() time.Time { return now })

	return &fixture{db: db, svc: svc, notifier: n, event: event, user: user}
}

// activity creates an activity in the fixture event with one schedule per start.
func (f *fixture) activity(t *testing.T, title string, minutes int, starts ...time.Time) models.Activity {
	t.Helper()
	activity := models.Activity{EventID: f.event.ID, Title: title}
	for _, start := range starts {
		activity.Schedules = append(activity.Schedules, models.Schedule{StartDate: start, DurationMinutes: minutes})
	}
	if err := f.db.Create(&activity).Error; err != nil {
		t.Fatalf("failed to create activity: %v", err)
	}
	return activity
}

func assertReason(t *testing.T, err error, want eligibility.Reason) {
	t.Helper()
	got, ok := eligibility.ReasonOf(err)
	if !ok {
		t.Fatalf("expected rejection %q, got %v", want, err)
	}
	if got != want {
		t.Fatalf("expected rejection %q, got %q", want, got)
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := f.event.StartDate
	x := f.activity(t, "X", 60, t0, t0.Add(24*time.Hour))

	reg, err := f.svc.Register(ctx, f.user.ID, x.ID)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if len(reg.Presences) != 2 {
		t.Fatalf("expected 2 presences, got %d", len(reg.Presences))
	}

	var presences []models.Presence
	f.db.Where("registration_id = ?", reg.ID).Find(&presences)
	if len(presences) != 2 {
		t.Fatalf("expected 2 stored presences, got %d", len(presences))
	}
	for _, p := range presences {
		if !p.Present {
			t.Errorf("expected presence %d to default to present", p.ID)
		}
	}

	t.Run("AlreadyRegistered", func(t *testing.T) {
		_, err := f.svc.Register(ctx, f.user.ID, x.ID)
		assertReason(t, err, eligibility.AlreadyRegistered)
	})

	t.Run("ScheduleConflict", func(t *testing.T) {
		y := f.activity(t, "Y", 60, t0.Add(30*time.Minute))
		_, err := f.svc.Register(ctx, f.user.ID, y.ID)
		assertReason(t, err, eligibility.ScheduleConflict)
	})

	t.Run("UnknownActivity", func(t *testing.T) {
		_, err := f.svc.Register(ctx, f.user.ID, 9999)
		assertReason(t, err, eligibility.NotFound)
	})

	t.Run("Logged", func(t *testing.T) {
		logs, err := f.svc.History(ctx, f.user.ID)
		if err != nil {
			t.Fatalf("History returned error: %v", err)
		}
		if len(logs) != 1 || logs[0].Action != models.ActionRegistered {
			t.Errorf("expected one registered log entry, got %+v", logs)
		}
	})

	if len(f.notifier.actions) != 1 {
		t.Errorf("expected 1 notification, got %d", len(f.notifier.actions))
	}
}

func TestRegister_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("InvisibleEvent", func(t *testing.T) {
		f := newFixture(t)
		a := f.activity(t, "A", 60, f.event.StartDate)
		f.db.Model(&f.event).Update("visible", false)
		_, err := f.svc.Register(ctx, f.user.ID, a.ID)
		assertReason(t, err, eligibility.NotFound)
	})

	t.Run("RegistrationClosed", func(t *testing.T) {
		f := newFixture(t)
		a := f.activity(t, "A", 60, f.event.StartDate)
		f.svc.SetClock(func() time.Time { return now.Add(8 * 24 * time.Hour) })
		_, err := f.svc.Register(ctx, f.user.ID, a.ID)
		assertReason(t, err, eligibility.OutsideRegistrationWindow)
	})

	t.Run("ResponsibleUser", func(t *testing.T) {
		f := newFixture(t)
		a := models.Activity{EventID: f.event.ID, Title: "A", ResponsibleUsers: []models.User{f.user}}
		f.db.Create(&a)
		_, err := f.svc.Register(ctx, f.user.ID, a.ID)
		assertReason(t, err, eligibility.RoleConflict)
	})

	t.Run("TeachingUser", func(t *testing.T) {
		f := newFixture(t)
		a := models.Activity{EventID: f.event.ID, Title: "A", TeachingUsers: []models.User{f.user}}
		f.db.Create(&a)
		_, err := f.svc.Register(ctx, f.user.ID, a.ID)
		assertReason(t, err, eligibility.RoleConflict)
	})

	t.Run("VacancyFull", func(t *testing.T) {
		f := newFixture(t)
		a := models.Activity{EventID: f.event.ID, Title: "A", Vacancies: 1}
		f.db.Create(&a)
		other := models.User{Name: "Other", Email: "other@example.com"}
		f.db.Create(&other)
		if _, err := f.svc.Register(ctx, other.ID, a.ID); err != nil {
			t.Fatalf("first registration failed: %v", err)
		}
		_, err := f.svc.Register(ctx, f.user.ID, a.ID)
		assertReason(t, err, eligibility.VacancyFull)
	})
}

func TestUnregister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.activity(t, "A", 60, f.event.StartDate)

	reg, err := f.svc.Register(ctx, f.user.ID, a.ID)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	removed, err := f.svc.Unregister(ctx, f.user.ID, a.ID)
	if err != nil {
		t.Fatalf("first Unregister returned error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	var presences int64
	f.db.Model(&models.Presence{}).Where("registration_id = ?", reg.ID).Count(&presences)
	if presences != 0 {
		t.Errorf("expected presences to be removed, got %d", presences)
	}

	removed, err = f.svc.Unregister(ctx, f.user.ID, a.ID)
	if err != nil {
		t.Fatalf("second Unregister returned error: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected benign zero removal, got %d", removed)
	}

	t.Run("RegisterAgain", func(t *testing.T) {
		if _, err := f.svc.Register(ctx, f.user.ID, a.ID); err != nil {
			t.Fatalf("re-registration failed: %v", err)
		}
	})

	t.Run("ArchivedEvent", func(t *testing.T) {
		f.svc.SetClock(func() time.Time { return f.event.EndDate })
		defer f.svc.SetClock(func() time.Time { return now })
		_, err := f.svc.Unregister(ctx, f.user.ID, a.ID)
		assertReason(t, err, eligibility.ArchivedEvent)
	})

	t.Run("ArchivedEventWithoutRegistration", func(t *testing.T) {
		stranger := models.User{Name: "Stranger", Email: "stranger@example.com"}
		f.db.Create(&stranger)
		f.svc.SetClock(func() time.Time { return f.event.EndDate.Add(time.Hour) })
		defer f.svc.SetClock(func() time.Time { return now })
		_, err := f.svc.Unregister(ctx, stranger.ID, a.ID)
		assertReason(t, err, eligibility.ArchivedEvent)
	})

	t.Run("InvisibleEvent", func(t *testing.T) {
		f.db.Model(&f.event).Update("visible", false)
		defer f.db.Model(&f.event).Update("visible", true)
		_, err := f.svc.Unregister(ctx, f.user.ID, a.ID)
		assertReason(t, err, eligibility.NotFound)
	})

	logs, _ := f.svc.History(ctx, f.user.ID)
	if len(logs) != 3 {
		t.Errorf("expected 3 log entries, got %d", len(logs))
	}
}

func TestRegister_Concurrent(t *testing.T) {
	ctx := context.Background()

	t.Run("SameUser", func(t *testing.T) {
		f := newFixture(t)
		a := f.activity(t, "A", 60, f.event.StartDate)

		var success, duplicate, other int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Register(ctx, f.user.ID, a.ID)
				switch {
				case err == nil:
					atomic.AddInt32(&success, 1)
				case errors.Is(err, eligibility.AlreadyRegistered.Err()):
					atomic.AddInt32(&duplicate, 1)
				default:
					atomic.AddInt32(&other, 1)
				}
			}()
		}
		wg.Wait()

		if success != 1 || duplicate != 19 || other != 0 {
			t.Errorf("expected 1 success and 19 duplicates, got %d/%d/%d", success, duplicate, other)
		}
	})

	t.Run("Vacancies", func(t *testing.T) {
		f := newFixture(t)
		a := models.Activity{EventID: f.event.ID, Title: "Small room", Vacancies: 5}
		f.db.Create(&a)

		users := make([]models.User, 30)
		for i := range users {
			users[i] = models.User{Name: fmt.Sprintf("gopher%d", i), Email: fmt.Sprintf("gopher%d@example.com", i)}
		}
		f.db.Create(&users)

		var success, full int32
		var wg sync.WaitGroup
		for _, u := range users {
			wg.Add(1)
			go func(userID uint) {
				defer wg.Done()
				_, err := f.svc.Register(ctx, userID, a.ID)
				if err == nil {
					atomic.AddInt32(&success, 1)
				} else if errors.Is(err, eligibility.VacancyFull.Err()) {
					atomic.AddInt32(&full, 1)
				}
			}(u.ID)
		}
		wg.Wait()

		if success != 5 || full != 25 {
			t.Errorf("expected 5 registrations and 25 rejections, got %d/%d", success, full)
		}
	})
}

func TestRegister_DeletedEventDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := f.event.StartDate
	a := f.activity(t, "A", 60, t0)

	if _, err := f.svc.Register(ctx, f.user.ID, a.ID); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	// Soft-delete the event, leaving its registration row behind.
	if err := f.db.Delete(&f.event).Error; err != nil {
		t.Fatalf("failed to delete event: %v", err)
	}

	other := models.Event{
		Name:              "Spring Expo",
		Visible:           true,
		Active:            true,
		StartDate:         f.event.StartDate,
		EndDate:           f.event.EndDate,
		RegistryStartDate: f.event.RegistryStartDate,
		RegistryEndDate:   f.event.RegistryEndDate,
	}
	f.db.Create(&other)
	b := models.Activity{
		EventID:   other.ID,
		Title:     "B",
		Schedules: []models.Schedule{{StartDate: t0.Add(30 * time.Minute), DurationMinutes: 60}},
	}
	f.db.Create(&b)

	if _, err := f.svc.Register(ctx, f.user.ID, b.ID); err != nil {
		t.Fatalf("expected registration in a live event to succeed, got %v", err)
	}
}

func TestRegister_DeletedActivityDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := f.event.StartDate
	a := f.activity(t, "A", 60, t0)
	b := f.activity(t, "B", 60, t0.Add(30*time.Minute))

	if _, err := f.svc.Register(ctx, f.user.ID, a.ID); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	_, err := f.svc.Register(ctx, f.user.ID, b.ID)
	assertReason(t, err, eligibility.ScheduleConflict)

	f.db.Delete(&a)
	if _, err := f.svc.Register(ctx, f.user.ID, b.ID); err != nil {
		t.Fatalf("expected deleted activity to be ignored, got %v", err)
	}
}
