package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/access"
	"github.com/gdg-garage/event-platform-api/internal/auth"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ActivityHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewActivityHandler(db *gorm.DB, log *zap.Logger) *ActivityHandler {
	return &ActivityHandler{db: db, log: log}
}

type ScheduleResponse struct {
	ID              uint          `json:"id"`
	ActivityID      uint          `json:"activity_id"`
	StartDate       time.Time     `json:"start_date"`
	EndDate         time.Time     `json:"end_date"`
	DurationMinutes int           `json:"duration_minutes"`
	Room            *RoomResponse `json:"room,omitempty"`
	URL             string        `json:"url,omitempty"`
}

func newScheduleResponse(s models.Schedule) ScheduleResponse {
	res := ScheduleResponse{
		ID:              s.ID,
		ActivityID:      s.ActivityID,
		StartDate:       s.StartDate,
		EndDate:         s.EndDate(),
		DurationMinutes: s.DurationMinutes,
		URL:             s.URL,
	}
	if s.Room != nil {
		room := newRoomResponse(*s.Room)
		res.Room = &room
	}
	return res
}

type ActivityResponse struct {
	ID               uint                `json:"id"`
	EventID          uint                `json:"event_id"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Vacancies        int                 `json:"vacancies"`
	Registered       int64               `json:"registered"`
	WorkloadMinutes  int                 `json:"workload_minutes"`
	ResponsibleUsers []auth.UserResponse `json:"responsible_users"`
	TeachingUsers    []auth.UserResponse `json:"teaching_users"`
	Schedules        []ScheduleResponse  `json:"schedules"`
}

func newActivityResponse(a models.Activity, registered int64) ActivityResponse {
	res := ActivityResponse{
		ID:               a.ID,
		EventID:          a.EventID,
		Title:            a.Title,
		Description:      a.Description,
		Vacancies:        a.Vacancies,
		Registered:       registered,
		WorkloadMinutes:  a.WorkloadMinutes,
		ResponsibleUsers: userResponses(a.ResponsibleUsers),
		TeachingUsers:    userResponses(a.TeachingUsers),
		Schedules:        make([]ScheduleResponse, 0, len(a.Schedules)),
	}
	for _, s := range a.Schedules {
		res.Schedules = append(res.Schedules, newScheduleResponse(s))
	}
	return res
}

func userResponses(users []models.User) []auth.UserResponse {
	out := make([]auth.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, auth.NewUserResponse(u))
	}
	return out
}

func withActivityDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ResponsibleUsers").
		Preload("TeachingUsers").
		Preload("Schedules", func(db *gorm.DB) *gorm.DB { return db.Order("start_date") }).
		Preload("Schedules.Room")
}

// registeredCounts returns the number of registrations per activity.
func registeredCounts(db *gorm.DB, activityIDs []uint) (map[uint]int64, error) {
	var rows []struct {
		ActivityID uint
		Count      int64
	}
	counts := make(map[uint]int64, len(activityIDs))
	if len(activityIDs) == 0 {
		return counts, nil
	}
	err := db.Model(&models.ActivityRegistration{}).
		Select("activity_id, COUNT(*) AS count").
		Where("activity_id IN ?", activityIDs).
		Group("activity_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	for _, r := range rows {
		counts[r.ActivityID] = r.Count
	}
	return counts, nil
}

type ListActivitiesOutput struct {
	Body []ActivityResponse
}

func (h *ActivityHandler) HandleList(ctx context.Context, input *EventIDInput) (*ListActivitiesOutput, error) {
	if _, err := visibleEvent(ctx, h.db, input.ID); err != nil {
		return nil, err
	}

	var activities []models.Activity
	if err := withActivityDetails(h.db.WithContext(ctx)).Where("event_id = ?", input.ID).Order("id").Find(&activities).Error; err != nil {
		return nil, serviceError(h.log, "list_activities", err)
	}

	ids := make([]uint, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.ID)
	}
	counts, err := registeredCounts(h.db.WithContext(ctx), ids)
	if err != nil {
		return nil, serviceError(h.log, "list_activities", err)
	}

	res := &ListActivitiesOutput{Body: make([]ActivityResponse, 0, len(activities))}
	for _, a := range activities {
		res.Body = append(res.Body, newActivityResponse(a, counts[a.ID]))
	}
	return res, nil
}

type ActivityBody struct {
	Title           string `json:"title" minLength:"1" maxLength:"200"`
	Description     string `json:"description,omitempty"`
	Vacancies       int    `json:"vacancies,omitempty" minimum:"0" doc:"Maximum registrations; 0 means unlimited"`
	WorkloadMinutes int    `json:"workload_minutes,omitempty" minimum:"0"`
}

func (b ActivityBody) apply(a *models.Activity) {
	a.Title = b.Title
	a.Description = b.Description
	a.Vacancies = b.Vacancies
	a.WorkloadMinutes = b.WorkloadMinutes
}

type CreateActivityInput struct {
	ID   uint `path:"id" doc:"Event ID"`
	Body ActivityBody
}

type ActivityOutput struct {
	Body ActivityResponse
}

func (h *ActivityHandler) HandleCreate(ctx context.Context, input *CreateActivityInput) (*ActivityOutput, error) {
	if _, err := authorize(ctx, access.ActionManageEvent, access.Scope{EventID: input.ID}); err != nil {
		return nil, err
	}

	var event models.Event
	if err := h.db.WithContext(ctx).First(&event, input.ID).Error; err != nil {
		return nil, eventLookupError(h.log, err)
	}

	activity := models.Activity{EventID: event.ID}
	input.Body.apply(&activity)
	if err := h.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, serviceError(h.log, "create_activity", err)
	}
	return &ActivityOutput{Body: newActivityResponse(activity, 0)}, nil
}

type ActivityIDInput struct {
	ID uint `path:"id"`
}

func (h *ActivityHandler) HandleGet(ctx context.Context, input *ActivityIDInput) (*ActivityOutput, error) {
	var activity models.Activity
	if err := withActivityDetails(h.db.WithContext(ctx)).First(&activity, input.ID).Error; err != nil {
		return nil, activityLookupError(h.log, err)
	}
	if _, err := visibleEvent(ctx, h.db, activity.EventID); err != nil {
		// Activities of hidden events do not exist for the caller.
		return nil, huma.Error404NotFound("Activity not found")
	}
	return h.activityOutput(ctx, activity)
}

type UpdateActivityInput struct {
	ID   uint `path:"id"`
	Body ActivityBody
}

func (h *ActivityHandler) HandleUpdate(ctx context.Context, input *UpdateActivityInput) (*ActivityOutput, error) {
	activity, err := h.authorizedActivity(ctx, input.ID, access.ActionManageActivity)
	if err != nil {
		return nil, err
	}

	input.Body.apply(activity)
	err = h.db.WithContext(ctx).Model(activity).
		Select("Title", "Description", "Vacancies", "WorkloadMinutes").
		Updates(activity).Error
	if err != nil {
		return nil, serviceError(h.log, "update_activity", err)
	}

	var updated models.Activity
	if err := withActivityDetails(h.db.WithContext(ctx)).First(&updated, activity.ID).Error; err != nil {
		return nil, serviceError(h.log, "update_activity", err)
	}
	return h.activityOutput(ctx, updated)
}

// HandleDelete removes the activity together with its schedules and
// registrations.
func (h *ActivityHandler) HandleDelete(ctx context.Context, input *ActivityIDInput) (*struct{}, error) {
	activity, err := h.loadActivity(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := authorizeActivity(ctx, h.db, activity, access.ActionManageEvent); err != nil {
		return nil, err
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		registrations := tx.Model(&models.ActivityRegistration{}).Select("id").Where("activity_id = ?", activity.ID)
		if err := tx.Where("registration_id IN (?)", registrations).Delete(&models.Presence{}).Error; err != nil {
			return fmt.Errorf("delete presences: %w", err)
		}
		if err := tx.Where("activity_id = ?", activity.ID).Delete(&models.ActivityRegistration{}).Error; err != nil {
			return fmt.Errorf("delete registrations: %w", err)
		}
		if err := tx.Where("activity_id = ?", activity.ID).Delete(&models.Schedule{}).Error; err != nil {
			return fmt.Errorf("delete schedules: %w", err)
		}
		return tx.Delete(activity).Error
	})
	if err != nil {
		return nil, serviceError(h.log, "delete_activity", err)
	}
	return nil, nil
}

type ActivityUserInput struct {
	ID     uint `path:"id"`
	UserID uint `path:"userId"`
}

func (h *ActivityHandler) HandleAddResponsible(ctx context.Context, input *ActivityUserInput) (*ActivityOutput, error) {
	return h.changeMembers(ctx, input, "ResponsibleUsers", true)
}

func (h *ActivityHandler) HandleRemoveResponsible(ctx context.Context, input *ActivityUserInput) (*ActivityOutput, error) {
	return h.changeMembers(ctx, input, "ResponsibleUsers", false)
}

func (h *ActivityHandler) HandleAddTeacher(ctx context.Context, input *ActivityUserInput) (*ActivityOutput, error) {
	return h.changeMembers(ctx, input, "TeachingUsers", true)
}

func (h *ActivityHandler) HandleRemoveTeacher(ctx context.Context, input *ActivityUserInput) (*ActivityOutput, error) {
	return h.changeMembers(ctx, input, "TeachingUsers", false)
}

func (h *ActivityHandler) changeMembers(ctx context.Context, input *ActivityUserInput, association string, add bool) (*ActivityOutput, error) {
	activity, err := h.loadActivity(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := authorizeActivity(ctx, h.db, activity, access.ActionManageEvent); err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, input.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("User not found")
		}
		return nil, serviceError(h.log, "change_members", err)
	}

	assoc := h.db.WithContext(ctx).Model(activity).Association(association)
	if add {
		err = assoc.Append(&user)
	} else {
		err = assoc.Delete(&user)
	}
	if err != nil {
		return nil, serviceError(h.log, "change_members", err)
	}

	var updated models.Activity
	if err := withActivityDetails(h.db.WithContext(ctx)).First(&updated, activity.ID).Error; err != nil {
		return nil, serviceError(h.log, "change_members", err)
	}
	return h.activityOutput(ctx, updated)
}

type CreateScheduleInput struct {
	ID   uint `path:"id" doc:"Activity ID"`
	Body struct {
		StartDate       time.Time `json:"start_date"`
		DurationMinutes int       `json:"duration_minutes" minimum:"1"`
		RoomID          *uint     `json:"room_id,omitempty"`
		URL             string    `json:"url,omitempty" format:"uri"`
	}
}

type ScheduleOutput struct {
	Body ScheduleResponse
}

func (h *ActivityHandler) HandleCreateSchedule(ctx context.Context, input *CreateScheduleInput) (*ScheduleOutput, error) {
	activity, err := h.authorizedActivity(ctx, input.ID, access.ActionManageActivity)
	if err != nil {
		return nil, err
	}

	schedule := models.Schedule{
		ActivityID:      activity.ID,
		StartDate:       input.Body.StartDate,
		DurationMinutes: input.Body.DurationMinutes,
		RoomID:          input.Body.RoomID,
		URL:             input.Body.URL,
	}
	if schedule.RoomID != nil {
		var room models.Room
		if err := h.db.WithContext(ctx).First(&room, *schedule.RoomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, huma.Error422UnprocessableEntity("Room not found")
			}
			return nil, serviceError(h.log, "create_schedule", err)
		}
		schedule.Room = &room
	}

	// Existing registrations get a presence for the new schedule, present
	// by default like the ones created at registration.
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Room").Create(&schedule).Error; err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}

		var registrationIDs []uint
		if err := tx.Model(&models.ActivityRegistration{}).Where("activity_id = ?", activity.ID).Pluck("id", &registrationIDs).Error; err != nil {
			return fmt.Errorf("load registrations: %w", err)
		}
		if len(registrationIDs) == 0 {
			return nil
		}
		presences := make([]models.Presence, 0, len(registrationIDs))
		for _, id := range registrationIDs {
			presences = append(presences, models.Presence{RegistrationID: id, ScheduleID: schedule.ID, Present: true})
		}
		if err := tx.Create(&presences).Error; err != nil {
			return fmt.Errorf("create presences: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, serviceError(h.log, "create_schedule", err)
	}
	return &ScheduleOutput{Body: newScheduleResponse(schedule)}, nil
}

type ScheduleIDInput struct {
	ID uint `path:"id"`
}

func (h *ActivityHandler) HandleDeleteSchedule(ctx context.Context, input *ScheduleIDInput) (*struct{}, error) {
	var schedule models.Schedule
	if err := h.db.WithContext(ctx).First(&schedule, input.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Schedule not found")
		}
		return nil, serviceError(h.log, "delete_schedule", err)
	}
	if _, err := h.authorizedActivity(ctx, schedule.ActivityID, access.ActionManageActivity); err != nil {
		return nil, err
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", schedule.ID).Delete(&models.Presence{}).Error; err != nil {
			return fmt.Errorf("delete presences: %w", err)
		}
		return tx.Delete(&schedule).Error
	})
	if err != nil {
		return nil, serviceError(h.log, "delete_schedule", err)
	}
	return nil, nil
}

func (h *ActivityHandler) loadActivity(ctx context.Context, id uint) (*models.Activity, error) {
	var activity models.Activity
	if err := h.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return nil, activityLookupError(h.log, err)
	}
	return &activity, nil
}

func (h *ActivityHandler) authorizedActivity(ctx context.Context, id uint, action access.Action) (*models.Activity, error) {
	activity, err := h.loadActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeActivity(ctx, h.db, activity, action); err != nil {
		return nil, err
	}
	return activity, nil
}

func (h *ActivityHandler) activityOutput(ctx context.Context, activity models.Activity) (*ActivityOutput, error) {
	counts, err := registeredCounts(h.db.WithContext(ctx), []uint{activity.ID})
	if err != nil {
		return nil, serviceError(h.log, "load_activity", err)
	}
	return &ActivityOutput{Body: newActivityResponse(activity, counts[activity.ID])}, nil
}

// authorizeActivity authorizes an activity-scoped action. Callers who cannot
// see the activity's event get the same 404 as for a missing activity.
func authorizeActivity(ctx context.Context, db *gorm.DB, activity *models.Activity, action access.Action) error {
	_, err := authorize(ctx, action, access.Scope{EventID: activity.EventID, ActivityID: activity.ID})
	if err == nil {
		return nil
	}
	if _, visErr := visibleEvent(ctx, db, activity.EventID); visErr != nil {
		var statusErr huma.StatusError
		if errors.As(visErr, &statusErr) && statusErr.GetStatus() == http.StatusNotFound {
			return huma.Error404NotFound("Activity not found")
		}
		return visErr
	}
	return err
}

func activityLookupError(log *zap.Logger, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return huma.Error404NotFound("Activity not found")
	}
	return serviceError(log, "load_activity", err)
}
