// Package access resolves what the caller may do. The caller's role set is
// loaded once per request into a Principal; authorization is then a set
// membership test via Can.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdg-garage/event-platform-api/internal/models"
	"gorm.io/gorm"
)

var ErrUnknownUser = errors.New("unknown user")

// IDSet is a set of record IDs.
type IDSet map[uint]struct{}

func (s IDSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}

func newIDSet(ids []uint) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Principal is the authenticated caller and the roles they hold.
type Principal struct {
	UserID  uint
	IsAdmin bool
	// OrganizerOf holds event IDs.
	OrganizerOf IDSet
	// ResponsibleFor and TeacherOf hold activity IDs.
	ResponsibleFor IDSet
	TeacherOf      IDSet
}

// Resolve loads the role set of a user.
func Resolve(ctx context.Context, db *gorm.DB, userID uint) (*Principal, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	var organizing, responsible, teaching []uint
	if err := db.WithContext(ctx).Table("event_organizers").Where("user_id = ?", userID).Pluck("event_id", &organizing).Error; err != nil {
		return nil, fmt.Errorf("load organized events: %w", err)
	}
	if err := db.WithContext(ctx).Table("activity_responsibles").Where("user_id = ?", userID).Pluck("activity_id", &responsible).Error; err != nil {
		return nil, fmt.Errorf("load responsible activities: %w", err)
	}
	if err := db.WithContext(ctx).Table("activity_teachers").Where("user_id = ?", userID).Pluck("activity_id", &teaching).Error; err != nil {
		return nil, fmt.Errorf("load taught activities: %w", err)
	}

	return &Principal{
		UserID:         user.ID,
		IsAdmin:        user.IsAdmin,
		OrganizerOf:    newIDSet(organizing),
		ResponsibleFor: newIDSet(responsible),
		TeacherOf:      newIDSet(teaching),
	}, nil
}

// Action is something a principal may be allowed to do.
type Action int

const (
	// ActionAdminister covers system-wide management: rooms, users, event
	// creation and deletion, organizer assignment.
	ActionAdminister Action = iota + 1
	// ActionManageEvent allows editing an event and its activities.
	ActionManageEvent
	// ActionViewHiddenEvent allows seeing an invisible event.
	ActionViewHiddenEvent
	// ActionManageActivity allows editing an activity and its schedules.
	ActionManageActivity
	// ActionViewRegistrations allows listing an activity's registrations.
	ActionViewRegistrations
	// ActionMarkPresence allows recording attendance.
	ActionMarkPresence
	// ActionViewUser allows reading another user's registrations.
	ActionViewUser
)

// Scope is the target of an action. Only the fields relevant to the action
// need to be set.
type Scope struct {
	EventID    uint
	ActivityID uint
	UserID     uint
}

// Can reports whether the principal may perform the action on the scope.
// Admins may do everything.
func Can(p *Principal, action Action, scope Scope) bool {
	if p == nil {
		return false
	}
	if p.IsAdmin {
		return true
	}

	organizer := scope.EventID != 0 && p.OrganizerOf.Has(scope.EventID)
	responsible := scope.ActivityID != 0 && p.ResponsibleFor.Has(scope.ActivityID)
	teacher := scope.ActivityID != 0 && p.TeacherOf.Has(scope.ActivityID)

	switch action {
	case ActionManageEvent, ActionViewHiddenEvent:
		return organizer
	case ActionManageActivity:
		return organizer || responsible
	case ActionViewRegistrations, ActionMarkPresence:
		return organizer || responsible || teacher
	case ActionViewUser:
		return scope.UserID != 0 && scope.UserID == p.UserID
	default:
		return false
	}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
