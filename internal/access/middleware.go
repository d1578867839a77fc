package access

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Middleware resolves the principal for an authenticated request. It must
// run after auth.AuthHandler.Middleware.
func Middleware(api huma.API, db *gorm.DB, log *zap.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		userID, ok := auth.UserIDFromContext(ctx.Context())
		if !ok {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}

		principal, err := Resolve(ctx.Context(), db, userID)
		if err != nil {
			if errors.Is(err, ErrUnknownUser) {
				_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized: unknown user")
				return
			}
			log.Error("failed to resolve principal", zap.Uint("user_id", userID), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "Failed to resolve permissions")
			return
		}

		next(huma.WithValue(ctx, principalKey{}, principal))
	}
}
