package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/access"
	"github.com/gdg-garage/event-platform-api/internal/auth"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EventHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewEventHandler(db *gorm.DB, log *zap.Logger) *EventHandler {
	return &EventHandler{db: db, log: log}
}

type EventResponse struct {
	ID                       uint                `json:"id"`
	Name                     string              `json:"name"`
	Description              string              `json:"description"`
	Visible                  bool                `json:"visible"`
	Active                   bool                `json:"active"`
	StartDate                time.Time           `json:"start_date"`
	EndDate                  time.Time           `json:"end_date"`
	RegistryStartDate        time.Time           `json:"registry_start_date"`
	RegistryEndDate          time.Time           `json:"registry_end_date"`
	CertificateMinAttendance float64             `json:"certificate_min_attendance"`
	Organizers               []auth.UserResponse `json:"organizers"`
}

func newEventResponse(e models.Event) EventResponse {
	organizers := make([]auth.UserResponse, 0, len(e.Organizers))
	for _, u := range e.Organizers {
		organizers = append(organizers, auth.NewUserResponse(u))
	}
	return EventResponse{
		ID:                       e.ID,
		Name:                     e.Name,
		Description:              e.Description,
		Visible:                  e.Visible,
		Active:                   e.Active,
		StartDate:                e.StartDate,
		EndDate:                  e.EndDate,
		RegistryStartDate:        e.RegistryStartDate,
		RegistryEndDate:          e.RegistryEndDate,
		CertificateMinAttendance: e.CertificateMinAttendance,
		Organizers:               organizers,
	}
}

type EventBody struct {
	Name                     string    `json:"name" minLength:"1" maxLength:"200"`
	Description              string    `json:"description,omitempty"`
	Visible                  bool      `json:"visible,omitempty"`
	Active                   bool      `json:"active,omitempty"`
	StartDate                time.Time `json:"start_date"`
	EndDate                  time.Time `json:"end_date"`
	RegistryStartDate        time.Time `json:"registry_start_date"`
	RegistryEndDate          time.Time `json:"registry_end_date"`
	CertificateMinAttendance float64   `json:"certificate_min_attendance,omitempty" minimum:"0" maximum:"1" doc:"Attended fraction required for a certificate; 0 uses the server default"`
}

func (b EventBody) validate() error {
	if b.EndDate.Before(b.StartDate) {
		return huma.Error422UnprocessableEntity("End date cannot be before start date")
	}
	if b.RegistryEndDate.Before(b.RegistryStartDate) {
		return huma.Error422UnprocessableEntity("Registration end cannot be before registration start")
	}
	return nil
}

func (b EventBody) apply(e *models.Event) {
	e.Name = b.Name
	e.Description = b.Description
	e.Visible = b.Visible
	e.Active = b.Active
	e.StartDate = b.StartDate
	e.EndDate = b.EndDate
	e.RegistryStartDate = b.RegistryStartDate
	e.RegistryEndDate = b.RegistryEndDate
	e.CertificateMinAttendance = b.CertificateMinAttendance
}

type EventOutput struct {
	Body EventResponse
}

type ListEventsOutput struct {
	Body []EventResponse
}

// HandleList lists the events the caller may see. Inactive events are left
// out for callers who cannot manage them but stay reachable by ID.
func (h *EventHandler) HandleList(ctx context.Context, input *struct{}) (*ListEventsOutput, error) {
	p, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	var events []models.Event
	if err := h.db.WithContext(ctx).Preload("Organizers").Order("start_date").Find(&events).Error; err != nil {
		return nil, serviceError(h.log, "list_events", err)
	}

	res := &ListEventsOutput{Body: []EventResponse{}}
	for _, e := range events {
		scope := access.Scope{EventID: e.ID}
		if !e.Visible && !access.Can(p, access.ActionViewHiddenEvent, scope) {
			continue
		}
		if !e.Active && !access.Can(p, access.ActionManageEvent, scope) {
			continue
		}
		res.Body = append(res.Body, newEventResponse(e))
	}
	return res, nil
}

type EventIDInput struct {
	ID uint `path:"id"`
}

func (h *EventHandler) HandleGet(ctx context.Context, input *EventIDInput) (*EventOutput, error) {
	event, err := visibleEvent(ctx, h.db, input.ID)
	if err != nil {
		return nil, err
	}
	return &EventOutput{Body: newEventResponse(*event)}, nil
}

type CreateEventInput struct {
	Body EventBody
}

func (h *EventHandler) HandleCreate(ctx context.Context, input *CreateEventInput) (*EventOutput, error) {
	if _, err := authorize(ctx, access.ActionAdminister, access.Scope{}); err != nil {
		return nil, err
	}
	if err := input.Body.validate(); err != nil {
		return nil, err
	}

	var event models.Event
	input.Body.apply(&event)
	if err := h.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, serviceError(h.log, "create_event", err)
	}
	return &EventOutput{Body: newEventResponse(event)}, nil
}

type UpdateEventInput struct {
	ID   uint `path:"id"`
	Body EventBody
}

func (h *EventHandler) HandleUpdate(ctx context.Context, input *UpdateEventInput) (*EventOutput, error) {
	if _, err := authorize(ctx, access.ActionManageEvent, access.Scope{EventID: input.ID}); err != nil {
		return nil, err
	}
	if err := input.Body.validate(); err != nil {
		return nil, err
	}

	var event models.Event
	if err := h.db.WithContext(ctx).Preload("Organizers").First(&event, input.ID).Error; err != nil {
		return nil, eventLookupError(h.log, err)
	}
	input.Body.apply(&event)
	if err := h.db.WithContext(ctx).Omit("Organizers").Save(&event).Error; err != nil {
		return nil, serviceError(h.log, "update_event", err)
	}
	return &EventOutput{Body: newEventResponse(event)}, nil
}

func (h *EventHandler) HandleDelete(ctx context.Context, input *EventIDInput) (*struct{}, error) {
	if _, err := authorize(ctx, access.ActionAdminister, access.Scope{}); err != nil {
		return nil, err
	}

	var event models.Event
	if err := h.db.WithContext(ctx).First(&event, input.ID).Error; err != nil {
		return nil, eventLookupError(h.log, err)
	}

	// Registrations go with the event, otherwise they would keep blocking
	// overlapping activities of other events.
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activities := tx.Model(&models.Activity{}).Select("id").Where("event_id = ?", event.ID)
		registrations := tx.Model(&models.ActivityRegistration{}).Select("id").Where("activity_id IN (?)", activities)
		if err := tx.Where("registration_id IN (?)", registrations).Delete(&models.Presence{}).Error; err != nil {
			return fmt.Errorf("delete presences: %w", err)
		}
		if err := tx.Where("activity_id IN (?)", activities).Delete(&models.ActivityRegistration{}).Error; err != nil {
			return fmt.Errorf("delete registrations: %w", err)
		}
		if err := tx.Where("activity_id IN (?)", activities).Delete(&models.Schedule{}).Error; err != nil {
			return fmt.Errorf("delete schedules: %w", err)
		}
		if err := tx.Where("event_id = ?", event.ID).Delete(&models.Activity{}).Error; err != nil {
			return fmt.Errorf("delete activities: %w", err)
		}
		return tx.Delete(&event).Error
	})
	if err != nil {
		return nil, serviceError(h.log, "delete_event", err)
	}
	return nil, nil
}

type EventUserInput struct {
	ID     uint `path:"id"`
	UserID uint `path:"userId"`
}

func (h *EventHandler) HandleAddOrganizer(ctx context.Context, input *EventUserInput) (*EventOutput, error) {
	return h.changeOrganizers(ctx, input, func(a *gorm.Association, u *models.User) error { return a.Append(u) })
}

func (h *EventHandler) HandleRemoveOrganizer(ctx context.Context, input *EventUserInput) (*EventOutput, error) {
	return h.changeOrganizers(ctx, input, func(a *gorm.Association, u *models.User) error { return a.Delete(u) })
}

func (h *EventHandler) changeOrganizers(ctx context.Context, input *EventUserInput, change func(*gorm.Association, *models.User) error) (*EventOutput, error) {
	if _, err := authorize(ctx, access.ActionAdminister, access.Scope{}); err != nil {
		return nil, err
	}

	var event models.Event
	if err := h.db.WithContext(ctx).First(&event, input.ID).Error; err != nil {
		return nil, eventLookupError(h.log, err)
	}
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, input.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("User not found")
		}
		return nil, serviceError(h.log, "change_organizers", err)
	}

	if err := change(h.db.WithContext(ctx).Model(&event).Association("Organizers"), &user); err != nil {
		return nil, serviceError(h.log, "change_organizers", err)
	}
	if err := h.db.WithContext(ctx).Preload("Organizers").First(&event, event.ID).Error; err != nil {
		return nil, serviceError(h.log, "change_organizers", err)
	}
	return &EventOutput{Body: newEventResponse(event)}, nil
}

// visibleEvent loads an event the caller may see. Invisible events look
// missing unless the caller organizes them.
func visibleEvent(ctx context.Context, db *gorm.DB, eventID uint) (*models.Event, error) {
	p, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	var event models.Event
	if err := db.WithContext(ctx).Preload("Organizers").First(&event, eventID).Error; err != nil {
		return nil, eventLookupError(zap.L(), err)
	}
	if !event.Visible && !access.Can(p, access.ActionViewHiddenEvent, access.Scope{EventID: event.ID}) {
		return nil, huma.Error404NotFound("Event not found")
	}
	return &event, nil
}

func eventLookupError(log *zap.Logger, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return huma.Error404NotFound("Event not found")
	}
	return serviceError(log, "load_event", err)
}
