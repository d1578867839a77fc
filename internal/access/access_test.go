package access

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/gdg-garage/event-platform-api/internal/auth"
	"github.com/gdg-garage/event-platform-api/internal/database"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"go.uber.org/zap"
)

func TestCan(t *testing.T) {
	admin := &Principal{UserID: 1, IsAdmin: true}
	organizer := &Principal{UserID: 2, OrganizerOf: IDSet{10: {}}}
	responsible := &Principal{UserID: 3, ResponsibleFor: IDSet{100: {}}}
	teacher := &Principal{UserID: 4, TeacherOf: IDSet{100: {}}}
	attendee := &Principal{UserID: 5}

	activityScope := Scope{EventID: 10, ActivityID: 100}
	otherActivity := Scope{EventID: 11, ActivityID: 101}

	tests := []struct {
		name   string
		p      *Principal
		action Action
		scope  Scope
		want   bool
	}{
		{"nil principal", nil, ActionManageEvent, activityScope, false},
		{"admin administers", admin, ActionAdminister, Scope{}, true},
		{"organizer cannot administer", organizer, ActionAdminister, Scope{}, false},
		{"organizer manages own event", organizer, ActionManageEvent, Scope{EventID: 10}, true},
		{"organizer cannot manage other event", organizer, ActionManageEvent, Scope{EventID: 11}, false},
		{"organizer sees own hidden event", organizer, ActionViewHiddenEvent, Scope{EventID: 10}, true},
		{"organizer manages activity of own event", organizer, ActionManageActivity, activityScope, true},
		{"responsible manages activity", responsible, ActionManageActivity, activityScope, true},
		{"responsible cannot manage other activity", responsible, ActionManageActivity, otherActivity, false},
		{"responsible cannot manage event", responsible, ActionManageEvent, activityScope, false},
		{"teacher cannot manage activity", teacher, ActionManageActivity, activityScope, false},
		{"teacher marks presence", teacher, ActionMarkPresence, activityScope, true},
		{"teacher views registrations", teacher, ActionViewRegistrations, activityScope, true},
		{"attendee cannot mark presence", attendee, ActionMarkPresence, activityScope, false},
		{"user views self", attendee, ActionViewUser, Scope{UserID: 5}, true},
		{"user cannot view other", attendee, ActionViewUser, Scope{UserID: 6}, false},
		{"admin views anyone", admin, ActionViewUser, Scope{UserID: 6}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Can(tt.p, tt.action, tt.scope); got != tt.want {
				t.Errorf("Can() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	user := models.User{Name: "org", Email: "org@example.com"}
	db.Create(&user)
	event := models.Event{Name: "Expo", Organizers: []models.User{user}}
	db.Create(&event)
	activity := models.Activity{EventID: event.ID, Title: "Talk", ResponsibleUsers: []models.User{user}}
	db.Create(&activity)
	taught := models.Activity{EventID: event.ID, Title: "Workshop", TeachingUsers: []models.User{user}}
	db.Create(&taught)

	p, err := Resolve(context.Background(), db, user.ID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if p.IsAdmin {
		t.Error("did not expect admin")
	}
	if !p.OrganizerOf.Has(event.ID) {
		t.Errorf("expected organizer of event %d", event.ID)
	}
	if !p.ResponsibleFor.Has(activity.ID) || p.ResponsibleFor.Has(taught.ID) {
		t.Errorf("unexpected responsible set %v", p.ResponsibleFor)
	}
	if !p.TeacherOf.Has(taught.ID) {
		t.Errorf("expected teacher of activity %d", taught.ID)
	}

	if _, err := Resolve(context.Background(), db, 9999); err != ErrUnknownUser {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	admin := models.User{Name: "admin", Email: "admin@example.com", IsAdmin: true}
	db.Create(&admin)

	_, api := humatest.New(t)
	withUser := func(userID uint) func(huma.Context, func(huma.Context)) {
		return func(ctx huma.Context, next func(huma.Context)) {
			next(huma.WithValue(ctx, auth.UserIDKey, userID))
		}
	}
	handler := func(ctx context.Context, input *struct{}) (*struct{}, error) {
		p, ok := FromContext(ctx)
		if !ok || !p.IsAdmin {
			return nil, huma.Error403Forbidden("not admin")
		}
		return nil, nil
	}
	huma.Register(api, huma.Operation{
		OperationID: "known",
		Method:      http.MethodGet,
		Path:        "/known",
		Middlewares: huma.Middlewares{withUser(admin.ID), Middleware(api, db, zap.NewNop())},
	}, handler)
	huma.Register(api, huma.Operation{
		OperationID: "unknown",
		Method:      http.MethodGet,
		Path:        "/unknown",
		Middlewares: huma.Middlewares{withUser(9999), Middleware(api, db, zap.NewNop())},
	}, handler)

	if resp := api.Get("/known"); resp.Code != http.StatusNoContent {
		t.Errorf("expected 204 for admin, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := api.Get("/unknown"); resp.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown user, got %d", resp.Code)
	}
}
