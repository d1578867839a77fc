package eligibility

import (
	"errors"
)

// Reason is the machine-readable outcome of an eligibility check. The zero
// value means the action is allowed.
type Reason string

const (
	OK                        Reason = ""
	NotFound                  Reason = "NOT_FOUND"
	OutsideRegistrationWindow Reason = "OUTSIDE_REGISTRATION_WINDOW"
	RoleConflict              Reason = "ROLE_CONFLICT"
	AlreadyRegistered         Reason = "ALREADY_REGISTERED"
	ScheduleConflict          Reason = "SCHEDULE_CONFLICT"
	VacancyFull               Reason = "VACANCY_FULL"
	ArchivedEvent             Reason = "ARCHIVED_EVENT"
)

var messages = map[Reason]string{
	NotFound:                  "activity not found",
	OutsideRegistrationWindow: "registration is closed for this event",
	RoleConflict:              "responsible and teaching users cannot register for their own activity",
	AlreadyRegistered:         "already registered for this activity",
	ScheduleConflict:          "activity overlaps another activity you are registered for",
	VacancyFull:               "activity has no vacancies left",
	ArchivedEvent:             "event is archived",
}

// Message returns the user-facing text for the reason.
func (r Reason) Message() string {
	if msg, ok := messages[r]; ok {
		return msg
	}
	return string(r)
}

// Err returns nil for OK and a *Rejection otherwise.
func (r Reason) Err() error {
	if r == OK {
		return nil
	}
	return &Rejection{Reason: r}
}

// Rejection is the error form of a failed eligibility check.
type Rejection struct {
	Reason Reason
}

func (e *Rejection) Error() string {
	return e.Reason.Message()
}

// Is matches rejections by reason.
func (e *Rejection) Is(target error) bool {
	if t, ok := target.(*Rejection); ok {
		return e.Reason == t.Reason
	}
	return false
}

// ReasonOf extracts the rejection reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection.Reason, true
	}
	return OK, false
}
