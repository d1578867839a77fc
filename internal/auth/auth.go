package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/event-platform-api/internal/config"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const CookieName = "auth_token"

type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
	now func() time.Time
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, now: time.Now}
}

// TokenDuration is the lifetime of a freshly issued session token.
func (h *AuthHandler) TokenDuration() time.Duration {
	if h.cfg.TokenTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(h.cfg.TokenTTLHours) * time.Hour
}

func (h *AuthHandler) GenerateToken(userID uint) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     h.now().Add(h.TokenDuration()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// ParseToken validates a session token and returns its user and expiry.
func (h *AuthHandler) ParseToken(tokenString string) (uint, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, time.Time{}, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, time.Time{}, errInvalidToken
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok || userIDFloat <= 0 {
		return 0, time.Time{}, errInvalidClaims
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, time.Time{}, errInvalidClaims
	}
	return uint(userIDFloat), exp.Time, nil
}

func (h *AuthHandler) sessionCookie(token string) http.Cookie {
	return http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  h.now().Add(h.TokenDuration()),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}

type UserResponse struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

func NewUserResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin}
}

type SignupRequest struct {
	Body struct {
		Name     string `json:"name" doc:"Display name" minLength:"1" maxLength:"120"`
		Email    string `json:"email" doc:"Login email" format:"email"`
		Password string `json:"password" doc:"Password" minLength:"8" maxLength:"72"`
	}
}

type UserOutput struct {
	Body UserResponse
}

func (h *AuthHandler) HandleSignup(ctx context.Context, input *SignupRequest) (*UserOutput, error) {
	hash, err := HashPassword(input.Body.Password)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to hash password")
	}

	user := models.User{
		Name:         strings.TrimSpace(input.Body.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Body.Email)),
		PasswordHash: hash,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, huma.Error409Conflict("Email already in use")
		}
		return nil, huma.Error500InternalServerError("Failed to create user")
	}

	return &UserOutput{Body: NewUserResponse(user)}, nil
}

type LoginRequest struct {
	Body struct {
		Email    string `json:"email" format:"email"`
		Password string `json:"password"`
	}
}

type LoginResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Token     string       `json:"token"`
		ExpiresAt time.Time    `json:"expires_at"`
		User      UserResponse `json:"user"`
	}
}

func (h *AuthHandler) HandleLogin(ctx context.Context, input *LoginRequest) (*LoginResponse, error) {
	var user models.User
	email := strings.ToLower(strings.TrimSpace(input.Body.Email))
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error401Unauthorized("Invalid email or password")
		}
		return nil, huma.Error500InternalServerError("Database error")
	}
	if !CheckPassword(user.PasswordHash, input.Body.Password) {
		return nil, huma.Error401Unauthorized("Invalid email or password")
	}

	token, err := h.GenerateToken(user.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to generate token")
	}

	res := &LoginResponse{SetCookie: h.sessionCookie(token)}
	res.Body.Token = token
	res.Body.ExpiresAt = res.SetCookie.Expires
	res.Body.User = NewUserResponse(user)
	return res, nil
}

type LogoutResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
}

func (h *AuthHandler) HandleLogout(ctx context.Context, input *struct{}) (*LogoutResponse, error) {
	return &LogoutResponse{SetCookie: http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}}, nil
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *struct{}) (*UserOutput, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, huma.Error404NotFound("User not found")
	}
	return &UserOutput{Body: NewUserResponse(user)}, nil
}
