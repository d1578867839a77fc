package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/event-platform-api/internal/access"
	"github.com/gdg-garage/event-platform-api/internal/attendance"
	"github.com/gdg-garage/event-platform-api/internal/auth"
	"github.com/gdg-garage/event-platform-api/internal/config"
	"github.com/gdg-garage/event-platform-api/internal/logger"
	"github.com/gdg-garage/event-platform-api/internal/registration"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handlers groups every operation handler of the API.
type Handlers struct {
	Auth          *auth.AuthHandler
	Events        *EventHandler
	Rooms         *RoomHandler
	Activities    *ActivityHandler
	Registrations *RegistrationHandler
	Attendance    *AttendanceHandler
	APIKeys       *APIKeyHandler
	Users         *UserHandler
}

func NewHandlers(db *gorm.DB, log *zap.Logger, authHandler *auth.AuthHandler, registrations *registration.Service, attendanceService *attendance.Service) *Handlers {
	return &Handlers{
		Auth:          authHandler,
		Events:        NewEventHandler(db, log),
		Rooms:         NewRoomHandler(db, log),
		Activities:    NewActivityHandler(db, log),
		Registrations: NewRegistrationHandler(db, registrations, log),
		Attendance:    NewAttendanceHandler(db, attendanceService, log),
		APIKeys:       NewAPIKeyHandler(db, log),
		Users:         NewUserHandler(db, log),
	}
}

func RegisterRoutes(r *chi.Mux, cfg *config.Config, db *gorm.DB, log *zap.Logger, h *Handlers) huma.API {
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{cfg.FrontendURL},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-KEY"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Initialize Huma API
	humaConfig := huma.DefaultConfig("Event Platform API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
		"apiKeyAuth": {
			Type: "apiKey",
			In:   "header",
			Name: "X-API-KEY",
		},
	}
	api := humachi.New(r, humaConfig)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	registerOperations(api, db, log, h)
	return api
}

func registerOperations(api huma.API, db *gorm.DB, log *zap.Logger, h *Handlers) {
	authenticated := func(o *huma.Operation) {
		o.Security = []map[string][]string{{"cookieAuth": {}}, {"bearerAuth": {}}, {"apiKeyAuth": {}}}
		o.Middlewares = append(o.Middlewares, h.Auth.Middleware(api), access.Middleware(api, db, log))
	}
	ok := func(o *huma.Operation) { o.DefaultStatus = http.StatusOK }
	created := func(o *huma.Operation) { o.DefaultStatus = http.StatusCreated }
	noContent := func(o *huma.Operation) { o.DefaultStatus = http.StatusNoContent }

	// Auth routes
	huma.Post(api, "/auth/signup", h.Auth.HandleSignup, created)
	huma.Post(api, "/auth/login", h.Auth.HandleLogin, ok)
	huma.Post(api, "/auth/logout", h.Auth.HandleLogout, noContent)
	huma.Get(api, "/me", h.Auth.HandleMe, authenticated)

	huma.Get(api, "/api-keys", h.APIKeys.HandleList, authenticated)
	huma.Post(api, "/api-keys", h.APIKeys.HandleCreate, authenticated, created)
	huma.Delete(api, "/api-keys/{id}", h.APIKeys.HandleDelete, authenticated, noContent)

	huma.Put(api, "/users/{id}/admin", h.Users.HandleSetAdmin, authenticated)
	huma.Get(api, "/users/{id}/registrations", h.Registrations.HandleListForUser, authenticated)
	huma.Get(api, "/me/registration-log", h.Registrations.HandleLog, authenticated)

	// Events
	huma.Get(api, "/events", h.Events.HandleList, authenticated)
	huma.Post(api, "/events", h.Events.HandleCreate, authenticated, created)
	huma.Get(api, "/events/{id}", h.Events.HandleGet, authenticated)
	huma.Put(api, "/events/{id}", h.Events.HandleUpdate, authenticated)
	huma.Delete(api, "/events/{id}", h.Events.HandleDelete, authenticated, noContent)
	huma.Put(api, "/events/{id}/organizers/{userId}", h.Events.HandleAddOrganizer, authenticated)
	huma.Delete(api, "/events/{id}/organizers/{userId}", h.Events.HandleRemoveOrganizer, authenticated)

	// Rooms
	huma.Get(api, "/rooms", h.Rooms.HandleList, authenticated)
	huma.Post(api, "/rooms", h.Rooms.HandleCreate, authenticated, created)
	huma.Delete(api, "/rooms/{id}", h.Rooms.HandleDelete, authenticated, noContent)

	// Activities and schedules
	huma.Get(api, "/events/{id}/activities", h.Activities.HandleList, authenticated)
	huma.Post(api, "/events/{id}/activities", h.Activities.HandleCreate, authenticated, created)
	huma.Get(api, "/activities/{id}", h.Activities.HandleGet, authenticated)
	huma.Put(api, "/activities/{id}", h.Activities.HandleUpdate, authenticated)
	huma.Delete(api, "/activities/{id}", h.Activities.HandleDelete, authenticated, noContent)
	huma.Put(api, "/activities/{id}/responsibles/{userId}", h.Activities.HandleAddResponsible, authenticated)
	huma.Delete(api, "/activities/{id}/responsibles/{userId}", h.Activities.HandleRemoveResponsible, authenticated)
	huma.Put(api, "/activities/{id}/teachers/{userId}", h.Activities.HandleAddTeacher, authenticated)
	huma.Delete(api, "/activities/{id}/teachers/{userId}", h.Activities.HandleRemoveTeacher, authenticated)
	huma.Post(api, "/activities/{id}/schedules", h.Activities.HandleCreateSchedule, authenticated, created)
	huma.Delete(api, "/schedules/{id}", h.Activities.HandleDeleteSchedule, authenticated, noContent)

	// Registration
	huma.Post(api, "/activities/{id}/registration", h.Registrations.HandleRegister, authenticated, created)
	huma.Delete(api, "/activities/{id}/registration", h.Registrations.HandleUnregister, authenticated)
	huma.Get(api, "/activities/{id}/registrations", h.Registrations.HandleListForActivity, authenticated)

	// Attendance and certificates
	huma.Put(api, "/schedules/{id}/presences/{userId}", h.Attendance.HandleMarkPresence, authenticated)
	huma.Get(api, "/events/{id}/certificate", h.Attendance.HandleEligibility, authenticated)
	huma.Post(api, "/events/{id}/certificate", h.Attendance.HandleIssueCertificate, authenticated, ok)
	huma.Get(api, "/certificates/{code}", h.Attendance.HandleValidateCertificate)
	huma.Get(api, "/events/{id}/attendance.xlsx", h.Attendance.HandleExport, authenticated)
}
