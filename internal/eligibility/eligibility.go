// Package eligibility decides whether a user may register for, or withdraw
// from, an activity. It works on snapshots already loaded by the caller and
// never touches storage; the current time is an explicit argument.
package eligibility

import (
	"time"
)

// Event is the part of an event the rules depend on.
type Event struct {
	Visible           bool
	StartDate         time.Time
	EndDate           time.Time
	RegistryStartDate time.Time
	RegistryEndDate   time.Time
}

// InRegistryWindow reports whether now lies in the inclusive registration window.
func (e Event) InRegistryWindow(now time.Time) bool {
	return !now.Before(e.RegistryStartDate) && !now.After(e.RegistryEndDate)
}

// Activity is the target of a registration.
type Activity struct {
	ID                 uint
	ResponsibleUserIDs UserSet
	TeachingUserIDs    UserSet
	// Vacancies caps registrations; zero or less means no limit.
	Vacancies int
	// Registered is the number of registrations already held.
	Registered int
	Schedules  []Slot
}

// Registration is one of the user's existing registrations, resolved to the
// schedules of its activity.
type Registration struct {
	ActivityID uint
	Schedules  []Slot
}

// CanRegister runs the registration checks in order and returns the first
// failing reason, or OK. Role exclusion is checked before the registration
// window so staff get RoleConflict whatever the date.
func CanRegister(now time.Time, event Event, activity Activity, userID uint, existing []Registration) Reason {
	if !event.Visible {
		return NotFound
	}
	if activity.ResponsibleUserIDs.Has(userID) || activity.TeachingUserIDs.Has(userID) {
		return RoleConflict
	}
	if !event.InRegistryWindow(now) {
		return OutsideRegistrationWindow
	}
	for _, r := range existing {
		if r.ActivityID == activity.ID {
			return AlreadyRegistered
		}
	}
	if _, ok := FindConflict(activity.Schedules, existing); ok {
		return ScheduleConflict
	}
	if activity.Vacancies > 0 && activity.Registered >= activity.Vacancies {
		return VacancyFull
	}
	return OK
}

// FindConflict returns the first registration with a slot overlapping any of
// the given slots. Every pair is compared since activities may span several
// schedules.
func FindConflict(slots []Slot, registrations []Registration) (Registration, bool) {
	for _, r := range registrations {
		for _, other := range r.Schedules {
			for _, s := range slots {
				if s.Overlaps(other) {
					return r, true
				}
			}
		}
	}
	return Registration{}, false
}

// Unregistration is the verdict on a withdrawal request.
type Unregistration struct {
	Reason Reason
	// Noop is set when withdrawal is allowed but there is no registration
	// to remove.
	Noop bool
}

// CanUnregister checks event state before registration existence, so a
// hidden or archived event rejects even users who never registered.
func CanUnregister(now time.Time, event Event, registration *Registration) Unregistration {
	if !event.Visible {
		return Unregistration{Reason: NotFound}
	}
	if !now.Before(event.EndDate) {
		return Unregistration{Reason: ArchivedEvent}
	}
	if registration == nil {
		return Unregistration{Reason: OK, Noop: true}
	}
	return Unregistration{Reason: OK}
}
