package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/access"
	"github.com/gdg-garage/event-platform-api/internal/auth"
)

func currentUserID(ctx context.Context) (uint, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return 0, huma.Error401Unauthorized("Unauthorized")
	}
	return userID, nil
}

func currentPrincipal(ctx context.Context) (*access.Principal, error) {
	p, ok := access.FromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}
	return p, nil
}

// authorize fails with 403 unless the caller may perform the action.
func authorize(ctx context.Context, action access.Action, scope access.Scope) (*access.Principal, error) {
	p, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if !access.Can(p, action, scope) {
		return nil, huma.Error403Forbidden("Access denied")
	}
	return p, nil
}
