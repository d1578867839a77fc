package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"gorm.io/gorm"
)

type contextKey string

const UserIDKey contextKey = "user_id"

var (
	errNoToken       = errors.New("Unauthorized: No token found")
	errInvalidToken  = errors.New("Unauthorized: Invalid token")
	errInvalidClaims = errors.New("Unauthorized: Invalid token claims")
	errAPIKeyExpired = errors.New("Unauthorized: API Key expired")
)

func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok && userID != 0
}

// Authenticate resolves the caller from an API key or a session token. The
// returned cookie is non-nil when the session was refreshed.
func (h *AuthHandler) Authenticate(ctx context.Context, apiKey, token string) (uint, *http.Cookie, error) {
	// 1. API key
	if apiKey != "" {
		var keyModel models.APIKey
		err := h.db.WithContext(ctx).Where("key = ?", apiKey).First(&keyModel).Error
		if err == nil {
			now := h.now()
			if keyModel.Expired(now) {
				return 0, nil, errAPIKeyExpired
			}
			h.db.WithContext(ctx).Model(&keyModel).Update("last_used_at", now)
			return keyModel.UserID, nil, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, err
		}
	}

	// 2. Fallback to the session token
	if token == "" {
		return 0, nil, errNoToken
	}
	userID, exp, err := h.ParseToken(token)
	if err != nil {
		return 0, nil, err
	}

	// Sliding session: refresh token if it's more than halfway through its duration
	if exp.Sub(h.now()) < h.TokenDuration()/2 {
		newToken, err := h.GenerateToken(userID)
		if err == nil {
			cookie := h.sessionCookie(newToken)
			return userID, &cookie, nil
		}
	}
	return userID, nil, nil
}

// Middleware authenticates huma operations and stores the user ID in the
// request context.
func (h *AuthHandler) Middleware(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		userID, refreshed, err := h.Authenticate(ctx.Context(), ctx.Header("X-API-KEY"), requestToken(ctx))
		if err != nil {
			status := http.StatusUnauthorized
			msg := err.Error()
			if !isAuthError(err) {
				status = http.StatusInternalServerError
				msg = "Authentication failed"
			}
			_ = huma.WriteErr(api, ctx, status, msg)
			return
		}
		if refreshed != nil {
			ctx.AppendHeader("Set-Cookie", refreshed.String())
		}
		next(huma.WithValue(ctx, UserIDKey, userID))
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, errNoToken) ||
		errors.Is(err, errInvalidToken) ||
		errors.Is(err, errInvalidClaims) ||
		errors.Is(err, errAPIKeyExpired)
}

// requestToken prefers an Authorization bearer token over the session cookie.
func requestToken(ctx huma.Context) string {
	if header := ctx.Header("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	cookies, err := http.ParseCookie(ctx.Header("Cookie"))
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == CookieName {
			return c.Value
		}
	}
	return ""
}
