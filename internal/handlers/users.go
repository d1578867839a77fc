package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/access"
	"github.com/gdg-garage/event-platform-api/internal/auth"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewUserHandler(db *gorm.DB, log *zap.Logger) *UserHandler {
	return &UserHandler{db: db, log: log}
}

type SetAdminInput struct {
	ID   uint `path:"id"`
	Body struct {
		IsAdmin bool `json:"is_admin"`
	}
}

// HandleSetAdmin grants or revokes the admin flag. Admins cannot demote
// themselves, so the platform always keeps at least one.
func (h *UserHandler) HandleSetAdmin(ctx context.Context, input *SetAdminInput) (*auth.UserOutput, error) {
	p, err := authorize(ctx, access.ActionAdminister, access.Scope{})
	if err != nil {
		return nil, err
	}
	if p.UserID == input.ID && !input.Body.IsAdmin {
		return nil, huma.Error409Conflict("Cannot revoke your own admin role")
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, input.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("User not found")
		}
		return nil, serviceError(h.log, "set_admin", err)
	}
	if err := h.db.WithContext(ctx).Model(&user).Update("is_admin", input.Body.IsAdmin).Error; err != nil {
		return nil, serviceError(h.log, "set_admin", err)
	}
	user.IsAdmin = input.Body.IsAdmin
	return &auth.UserOutput{Body: auth.NewUserResponse(user)}, nil
}
