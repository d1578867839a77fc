package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/attendance"
	"github.com/gdg-garage/event-platform-api/internal/eligibility"
	"github.com/gdg-garage/event-platform-api/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var rejectionStatus = map[eligibility.Reason]int{
	eligibility.NotFound:                  http.StatusNotFound,
	eligibility.OutsideRegistrationWindow: http.StatusForbidden,
	eligibility.RoleConflict:              http.StatusForbidden,
	eligibility.AlreadyRegistered:         http.StatusConflict,
	eligibility.ScheduleConflict:          http.StatusConflict,
	eligibility.VacancyFull:               http.StatusConflict,
	eligibility.ArchivedEvent:             http.StatusForbidden,
}

// rejectionError renders an eligibility rejection. The reason code travels
// in the first error detail so clients can branch on it.
func rejectionError(reason eligibility.Reason) error {
	status, ok := rejectionStatus[reason]
	if !ok {
		status = http.StatusBadRequest
	}
	msg := reason.Message()
	if reason == eligibility.NotFound {
		msg = "Activity not found"
	}
	return huma.NewError(status, msg, &huma.ErrorDetail{
		Message:  string(reason),
		Location: "reason",
		Value:    string(reason),
	})
}

// serviceError maps errors returned by the domain services to HTTP errors.
// Anything unexpected is logged and hidden behind a 500.
func serviceError(log *zap.Logger, op string, err error) error {
	if reason, ok := eligibility.ReasonOf(err); ok {
		return rejectionError(reason)
	}

	switch {
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return huma.Error404NotFound("Not found")
	case errors.Is(err, attendance.ErrNotRegistered):
		return huma.Error404NotFound("User is not registered for this activity")
	case errors.Is(err, attendance.ErrScheduleNotStarted):
		return huma.Error409Conflict("Schedule has not started yet")
	case errors.Is(err, attendance.ErrNotEligible):
		return huma.Error403Forbidden("Not eligible for a certificate")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return huma.Error409Conflict("Already exists")
	}

	log.Error("request failed", zap.String(logger.FieldOperation, op), zap.Error(err))
	return huma.Error500InternalServerError("Internal server error")
}
