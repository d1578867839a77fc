package handlers

import (
	"context"
	"time"

	"github.com/gdg-garage/event-platform-api/internal/access"
	"github.com/gdg-garage/event-platform-api/internal/auth"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"github.com/gdg-garage/event-platform-api/internal/registration"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RegistrationHandler struct {
	db      *gorm.DB
	service *registration.Service
	log     *zap.Logger
}

func NewRegistrationHandler(db *gorm.DB, service *registration.Service, log *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{db: db, service: service, log: log}
}

type PresenceResponse struct {
	ScheduleID uint `json:"schedule_id"`
	Present    bool `json:"present"`
}

type RegistrationResponse struct {
	ID         uint               `json:"id"`
	UserID     uint               `json:"user_id"`
	ActivityID uint               `json:"activity_id"`
	CreatedAt  time.Time          `json:"created_at"`
	User       *auth.UserResponse `json:"user,omitempty"`
	Activity   *ActivityResponse  `json:"activity,omitempty"`
	Presences  []PresenceResponse `json:"presences"`
}

func newRegistrationResponse(r models.ActivityRegistration) RegistrationResponse {
	res := RegistrationResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		ActivityID: r.ActivityID,
		CreatedAt:  r.CreatedAt,
		Presences:  make([]PresenceResponse, 0, len(r.Presences)),
	}
	for _, p := range r.Presences {
		res.Presences = append(res.Presences, PresenceResponse{ScheduleID: p.ScheduleID, Present: p.Present})
	}
	return res
}

type RegistrationOutput struct {
	Body RegistrationResponse
}

type RegistrationInput struct {
	ID uint `path:"id" doc:"Activity ID"`
}

func (h *RegistrationHandler) HandleRegister(ctx context.Context, input *RegistrationInput) (*RegistrationOutput, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := h.service.Register(ctx, userID, input.ID)
	if err != nil {
		return nil, serviceError(h.log, "register", err)
	}
	return &RegistrationOutput{Body: newRegistrationResponse(*reg)}, nil
}

type UnregistrationOutput struct {
	Body struct {
		Removed int64 `json:"removed" doc:"Number of registrations removed; 0 when there was none"`
	}
}

func (h *RegistrationHandler) HandleUnregister(ctx context.Context, input *RegistrationInput) (*UnregistrationOutput, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	removed, err := h.service.Unregister(ctx, userID, input.ID)
	if err != nil {
		return nil, serviceError(h.log, "unregister", err)
	}
	res := &UnregistrationOutput{}
	res.Body.Removed = removed
	return res, nil
}

type ListRegistrationsOutput struct {
	Body []RegistrationResponse
}

func (h *RegistrationHandler) HandleListForActivity(ctx context.Context, input *RegistrationInput) (*ListRegistrationsOutput, error) {
	var activity models.Activity
	if err := h.db.WithContext(ctx).First(&activity, input.ID).Error; err != nil {
		return nil, activityLookupError(h.log, err)
	}
	if err := authorizeActivity(ctx, h.db, &activity, access.ActionViewRegistrations); err != nil {
		return nil, err
	}

	regs, err := h.service.ForActivity(ctx, activity.ID)
	if err != nil {
		return nil, serviceError(h.log, "list_registrations", err)
	}
	res := &ListRegistrationsOutput{Body: make([]RegistrationResponse, 0, len(regs))}
	for _, r := range regs {
		item := newRegistrationResponse(r)
		user := auth.NewUserResponse(r.User)
		item.User = &user
		res.Body = append(res.Body, item)
	}
	return res, nil
}

type UserIDInput struct {
	ID uint `path:"id"`
}

func (h *RegistrationHandler) HandleListForUser(ctx context.Context, input *UserIDInput) (*ListRegistrationsOutput, error) {
	if _, err := authorize(ctx, access.ActionViewUser, access.Scope{UserID: input.ID}); err != nil {
		return nil, err
	}

	regs, err := h.service.ForUser(ctx, input.ID)
	if err != nil {
		return nil, serviceError(h.log, "list_registrations", err)
	}
	ids := make([]uint, 0, len(regs))
	for _, r := range regs {
		ids = append(ids, r.ActivityID)
	}
	counts, err := registeredCounts(h.db.WithContext(ctx), ids)
	if err != nil {
		return nil, serviceError(h.log, "list_registrations", err)
	}

	res := &ListRegistrationsOutput{Body: make([]RegistrationResponse, 0, len(regs))}
	for _, r := range regs {
		item := newRegistrationResponse(r)
		activity := newActivityResponse(r.Activity, counts[r.ActivityID])
		item.Activity = &activity
		res.Body = append(res.Body, item)
	}
	return res, nil
}

type RegistrationLogResponse struct {
	ActivityID uint                      `json:"activity_id"`
	EventID    uint                      `json:"event_id"`
	Action     models.RegistrationAction `json:"action" enum:"registered,unregistered"`
	CreatedAt  time.Time                 `json:"created_at"`
}

type RegistrationLogOutput struct {
	Body []RegistrationLogResponse
}

func (h *RegistrationHandler) HandleLog(ctx context.Context, input *struct{}) (*RegistrationLogOutput, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	logs, err := h.service.History(ctx, userID)
	if err != nil {
		return nil, serviceError(h.log, "registration_log", err)
	}
	res := &RegistrationLogOutput{Body: make([]RegistrationLogResponse, 0, len(logs))}
	for _, l := range logs {
		res.Body = append(res.Body, RegistrationLogResponse{
			ActivityID: l.ActivityID,
			EventID:    l.EventID,
			Action:     l.Action,
			CreatedAt:  l.CreatedAt,
		})
	}
	return res, nil
}
