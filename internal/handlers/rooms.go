package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/access"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RoomHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRoomHandler(db *gorm.DB, log *zap.Logger) *RoomHandler {
	return &RoomHandler{db: db, log: log}
}

type RoomResponse struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func newRoomResponse(r models.Room) RoomResponse {
	return RoomResponse{ID: r.ID, Name: r.Name, Capacity: r.Capacity}
}

type ListRoomsOutput struct {
	Body []RoomResponse
}

func (h *RoomHandler) HandleList(ctx context.Context, input *struct{}) (*ListRoomsOutput, error) {
	var rooms []models.Room
	if err := h.db.WithContext(ctx).Order("name").Find(&rooms).Error; err != nil {
		return nil, serviceError(h.log, "list_rooms", err)
	}

	res := &ListRoomsOutput{Body: make([]RoomResponse, 0, len(rooms))}
	for _, r := range rooms {
		res.Body = append(res.Body, newRoomResponse(r))
	}
	return res, nil
}

type CreateRoomInput struct {
	Body struct {
		Name     string `json:"name" minLength:"1" maxLength:"120"`
		Capacity int    `json:"capacity,omitempty" minimum:"0"`
	}
}

type RoomOutput struct {
	Body RoomResponse
}

func (h *RoomHandler) HandleCreate(ctx context.Context, input *CreateRoomInput) (*RoomOutput, error) {
	if _, err := authorize(ctx, access.ActionAdminister, access.Scope{}); err != nil {
		return nil, err
	}

	room := models.Room{Name: input.Body.Name, Capacity: input.Body.Capacity}
	if err := h.db.WithContext(ctx).Create(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, huma.Error409Conflict("Room name already in use")
		}
		return nil, serviceError(h.log, "create_room", err)
	}
	return &RoomOutput{Body: newRoomResponse(room)}, nil
}

type RoomIDInput struct {
	ID uint `path:"id"`
}

func (h *RoomHandler) HandleDelete(ctx context.Context, input *RoomIDInput) (*struct{}, error) {
	if _, err := authorize(ctx, access.ActionAdminister, access.Scope{}); err != nil {
		return nil, err
	}

	// Hard delete keeps the unique room name reusable.
	result := h.db.WithContext(ctx).Unscoped().Delete(&models.Room{}, input.ID)
	if result.Error != nil {
		return nil, serviceError(h.log, "delete_room", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, huma.Error404NotFound("Room not found")
	}
	h.db.WithContext(ctx).Model(&models.Schedule{}).Where("room_id = ?", input.ID).Update("room_id", nil)
	return nil, nil
}
