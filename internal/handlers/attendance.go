package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/access"
	"github.com/gdg-garage/event-platform-api/internal/attendance"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AttendanceHandler struct {
	db      *gorm.DB
	service *attendance.Service
	log     *zap.Logger
}

func NewAttendanceHandler(db *gorm.DB, service *attendance.Service, log *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{db: db, service: service, log: log}
}

type MarkPresenceInput struct {
	ID     uint `path:"id" doc:"Schedule ID"`
	UserID uint `path:"userId"`
	Body   struct {
		Present bool `json:"present"`
	}
}

type PresenceOutput struct {
	Body PresenceResponse
}

func (h *AttendanceHandler) HandleMarkPresence(ctx context.Context, input *MarkPresenceInput) (*PresenceOutput, error) {
	var schedule models.Schedule
	if err := h.db.WithContext(ctx).First(&schedule, input.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Schedule not found")
		}
		return nil, serviceError(h.log, "mark_presence", err)
	}

	var activity models.Activity
	if err := h.db.WithContext(ctx).First(&activity, schedule.ActivityID).Error; err != nil {
		return nil, activityLookupError(h.log, err)
	}
	if err := authorizeActivity(ctx, h.db, &activity, access.ActionMarkPresence); err != nil {
		return nil, err
	}

	presence, err := h.service.MarkPresence(ctx, schedule.ID, input.UserID, input.Body.Present)
	if err != nil {
		return nil, serviceError(h.log, "mark_presence", err)
	}
	return &PresenceOutput{Body: PresenceResponse{ScheduleID: presence.ScheduleID, Present: presence.Present}}, nil
}

type EligibilityOutput struct {
	Body attendance.Eligibility
}

func (h *AttendanceHandler) HandleEligibility(ctx context.Context, input *EventIDInput) (*EligibilityOutput, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	e, err := h.service.Eligibility(ctx, userID, input.ID)
	if err != nil {
		return nil, serviceError(h.log, "certificate_eligibility", err)
	}
	return &EligibilityOutput{Body: *e}, nil
}

type CertificateResponse struct {
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	UserID    uint      `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	EventID   uint      `json:"event_id"`
	EventName string    `json:"event_name,omitempty"`
}

type CertificateOutput struct {
	Body CertificateResponse
}

func (h *AttendanceHandler) HandleIssueCertificate(ctx context.Context, input *EventIDInput) (*CertificateOutput, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	c, err := h.service.IssueCertificate(ctx, userID, input.ID)
	if err != nil {
		return nil, serviceError(h.log, "issue_certificate", err)
	}
	return &CertificateOutput{Body: CertificateResponse{
		Code:     c.Code,
		IssuedAt: c.CreatedAt,
		UserID:   c.UserID,
		EventID:  c.EventID,
	}}, nil
}

type CertificateCodeInput struct {
	Code string `path:"code" doc:"Certificate validation code"`
}

// HandleValidateCertificate is public so third parties can verify a
// certificate by its code.
func (h *AttendanceHandler) HandleValidateCertificate(ctx context.Context, input *CertificateCodeInput) (*CertificateOutput, error) {
	c, err := h.service.CertificateByCode(ctx, input.Code)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			return nil, huma.Error404NotFound("Certificate not found")
		}
		return nil, serviceError(h.log, "validate_certificate", err)
	}
	return &CertificateOutput{Body: CertificateResponse{
		Code:      c.Code,
		IssuedAt:  c.CreatedAt,
		UserID:    c.UserID,
		UserName:  c.User.Name,
		EventID:   c.EventID,
		EventName: c.Event.Name,
	}}, nil
}

type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func (h *AttendanceHandler) HandleExport(ctx context.Context, input *EventIDInput) (*ExportOutput, error) {
	if _, err := authorize(ctx, access.ActionManageEvent, access.Scope{EventID: input.ID}); err != nil {
		return nil, err
	}

	data, err := h.service.ExportXLSX(ctx, input.ID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			return nil, huma.Error404NotFound("Event not found")
		}
		return nil, serviceError(h.log, "export_attendance", err)
	}
	return &ExportOutput{
		ContentType:        xlsxContentType,
		ContentDisposition: fmt.Sprintf(`attachment; filename="event-%d-attendance.xlsx"`, input.ID),
		Body:               data,
	}, nil
}
