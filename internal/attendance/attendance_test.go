package attendance

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gdg-garage/event-platform-api/internal/database"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var eventStart = time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db        *gorm.DB
	svc       *Service
	event     models.Event
	activity  models.Activity
	user      models.User
	schedules []models.Schedule
}

// newFixture registers one user for an activity with four one-hour schedules.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	event := models.Event{
		Name:      "Science Fair",
		Visible:   true,
		StartDate: eventStart,
		EndDate:   eventStart.Add(48 * time.Hour),
	}
	db.Create(&event)

	activity := models.Activity{EventID: event.ID, Title: "Robotics"}
	for i := 0; i < 4; i++ {
		activity.Schedules = append(activity.Schedules, models.Schedule{
			StartDate:       eventStart.Add(time.Duration(i) * 3 * time.Hour),
			DurationMinutes: 60,
		})
	}
	db.Create(&activity)

	user := models.User{Name: "Grace", Email: "grace@example.com"}
	db.Create(&user)

	registration := models.ActivityRegistration{UserID: user.ID, ActivityID: activity.ID}
	db.Create(&registration)
	for _, s := range activity.Schedules {
		db.Create(&models.Presence{RegistrationID: registration.ID, ScheduleID: s.ID, Present: true})
	}

	svc := NewService(db, 0.75)
	svc.SetClock(func() time.Time { return event.EndDate.Add(time.Hour) })

	return &fixture{db: db, svc: svc, event: event, activity: activity, user: user, schedules: activity.Schedules}
}

func TestMarkPresence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.MarkPresence(ctx, f.schedules[0].ID, f.user.ID, false)
	if err != nil {
		t.Fatalf("MarkPresence returned error: %v", err)
	}
	if p.Present {
		t.Error("expected presence to be marked absent")
	}

	var stored models.Presence
	f.db.First(&stored, p.ID)
	if stored.Present {
		t.Error("expected stored presence to be absent")
	}

	t.Run("BeforeScheduleStarts", func(t *testing.T) {
		f.svc.SetClock(func() time.Time { return eventStart.Add(-time.Minute) })
		defer f.svc.SetClock(func() time.Time { return f.event.EndDate.Add(time.Hour) })
		_, err := f.svc.MarkPresence(ctx, f.schedules[0].ID, f.user.ID, true)
		if !errors.Is(err, ErrScheduleNotStarted) {
			t.Fatalf("expected ErrScheduleNotStarted, got %v", err)
		}
	})

	t.Run("NotRegistered", func(t *testing.T) {
		other := models.User{Name: "Other", Email: "other@example.com"}
		f.db.Create(&other)
		_, err := f.svc.MarkPresence(ctx, f.schedules[0].ID, other.ID, true)
		if !errors.Is(err, ErrNotRegistered) {
			t.Fatalf("expected ErrNotRegistered, got %v", err)
		}
	})

	t.Run("UnknownSchedule", func(t *testing.T) {
		_, err := f.svc.MarkPresence(ctx, 9999, f.user.ID, true)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ScheduleAddedAfterRegistration", func(t *testing.T) {
		late := models.Schedule{ActivityID: f.activity.ID, StartDate: eventStart.Add(20 * time.Hour), DurationMinutes: 30}
		f.db.Create(&late)
		p, err := f.svc.MarkPresence(ctx, late.ID, f.user.ID, true)
		if err != nil {
			t.Fatalf("MarkPresence returned error: %v", err)
		}
		if p.ID == 0 || !p.Present {
			t.Errorf("expected a new present row, got %+v", p)
		}
		f.db.Delete(&late)
	})
}

func TestEligibility(t *testing.T) {
	ctx := context.Background()

	t.Run("Eligible", func(t *testing.T) {
		f := newFixture(t)
		f.svc.MarkPresence(ctx, f.schedules[0].ID, f.user.ID, false)

		e, err := f.svc.Eligibility(ctx, f.user.ID, f.event.ID)
		if err != nil {
			t.Fatalf("Eligibility returned error: %v", err)
		}
		if e.Total != 4 || e.Attended != 3 {
			t.Errorf("expected 3/4 attended, got %d/%d", e.Attended, e.Total)
		}
		if !e.Eligible {
			t.Errorf("expected 0.75 ratio to be eligible, got %+v", e)
		}
	})

	t.Run("BelowThreshold", func(t *testing.T) {
		f := newFixture(t)
		f.svc.MarkPresence(ctx, f.schedules[0].ID, f.user.ID, false)
		f.svc.MarkPresence(ctx, f.schedules[1].ID, f.user.ID, false)

		e, _ := f.svc.Eligibility(ctx, f.user.ID, f.event.ID)
		if e.Eligible {
			t.Errorf("expected 0.5 ratio to be ineligible, got %+v", e)
		}
		if _, err := f.svc.IssueCertificate(ctx, f.user.ID, f.event.ID); !errors.Is(err, ErrNotEligible) {
			t.Fatalf("expected ErrNotEligible, got %v", err)
		}
	})

	t.Run("EventThresholdOverridesDefault", func(t *testing.T) {
		f := newFixture(t)
		f.db.Model(&f.event).Update("certificate_min_attendance", 1.0)
		f.svc.MarkPresence(ctx, f.schedules[0].ID, f.user.ID, false)

		e, _ := f.svc.Eligibility(ctx, f.user.ID, f.event.ID)
		if e.Required != 1.0 || e.Eligible {
			t.Errorf("expected event threshold 1.0 to reject, got %+v", e)
		}
	})

	t.Run("EventNotFinished", func(t *testing.T) {
		f := newFixture(t)
		f.svc.SetClock(func() time.Time { return eventStart.Add(time.Hour) })

		e, _ := f.svc.Eligibility(ctx, f.user.ID, f.event.ID)
		if e.Finished || e.Eligible {
			t.Errorf("expected running event to be ineligible, got %+v", e)
		}
	})

	t.Run("NotRegistered", func(t *testing.T) {
		f := newFixture(t)
		other := models.User{Name: "Other", Email: "other@example.com"}
		f.db.Create(&other)

		e, _ := f.svc.Eligibility(ctx, other.ID, f.event.ID)
		if e.Total != 0 || e.Eligible {
			t.Errorf("expected no attendance, got %+v", e)
		}
	})
}

func TestIssueCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.IssueCertificate(ctx, f.user.ID, f.event.ID)
	if err != nil {
		t.Fatalf("IssueCertificate returned error: %v", err)
	}
	if first.Code == "" {
		t.Fatal("expected a validation code")
	}

	second, err := f.svc.IssueCertificate(ctx, f.user.ID, f.event.ID)
	if err != nil {
		t.Fatalf("second IssueCertificate returned error: %v", err)
	}
	if second.ID != first.ID || second.Code != first.Code {
		t.Errorf("expected the same certificate, got %+v and %+v", first, second)
	}

	found, err := f.svc.CertificateByCode(ctx, first.Code)
	if err != nil {
		t.Fatalf("CertificateByCode returned error: %v", err)
	}
	if found.User.Email != f.user.Email || found.Event.Name != f.event.Name {
		t.Errorf("unexpected certificate %+v", found)
	}

	if _, err := f.svc.CertificateByCode(ctx, "not-a-code"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for malformed code, got %v", err)
	}
	if _, err := f.svc.CertificateByCode(ctx, "6f1c54a4-7a3e-4c55-9b3b-0a4f0d1b2c3d"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown code, got %v", err)
	}
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.MarkPresence(ctx, f.schedules[1].ID, f.user.ID, false)

	data, err := f.svc.ExportXLSX(ctx, f.event.ID)
	if err != nil {
		t.Fatalf("ExportXLSX returned error: %v", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("failed to read rows: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header and 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "Activity" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][3] != "Grace" || rows[1][5] != "yes" {
		t.Errorf("unexpected first row %v", rows[1])
	}
	if rows[2][5] != "no" {
		t.Errorf("expected second schedule absent, got %v", rows[2])
	}

	if _, err := f.svc.ExportXLSX(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
