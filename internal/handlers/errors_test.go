package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gdg-garage/event-platform-api/internal/attendance"
	"github.com/gdg-garage/event-platform-api/internal/eligibility"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"NotFound", eligibility.NotFound.Err(), http.StatusNotFound},
		{"Window", eligibility.OutsideRegistrationWindow.Err(), http.StatusForbidden},
		{"RoleConflict", eligibility.RoleConflict.Err(), http.StatusForbidden},
		{"AlreadyRegistered", eligibility.AlreadyRegistered.Err(), http.StatusConflict},
		{"ScheduleConflict", eligibility.ScheduleConflict.Err(), http.StatusConflict},
		{"VacancyFull", eligibility.VacancyFull.Err(), http.StatusConflict},
		{"ArchivedEvent", eligibility.ArchivedEvent.Err(), http.StatusForbidden},
		{"WrappedRejection", fmt.Errorf("tx: %w", eligibility.AlreadyRegistered.Err()), http.StatusConflict},
		{"RecordNotFound", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"NotStarted", attendance.ErrScheduleNotStarted, http.StatusConflict},
		{"NotEligible", attendance.ErrNotEligible, http.StatusForbidden},
		{"Unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertHTTPStatus(t, serviceError(zap.NewNop(), "test", tt.err), tt.status)
		})
	}
}
