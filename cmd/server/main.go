package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdg-garage/event-platform-api/internal/attendance"
	"github.com/gdg-garage/event-platform-api/internal/auth"
	"github.com/gdg-garage/event-platform-api/internal/config"
	"github.com/gdg-garage/event-platform-api/internal/database"
	"github.com/gdg-garage/event-platform-api/internal/handlers"
	"github.com/gdg-garage/event-platform-api/internal/logger"
	"github.com/gdg-garage/event-platform-api/internal/notifier"
	"github.com/gdg-garage/event-platform-api/internal/registration"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	// Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(&logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	}, logger.DefaultServiceName)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	// Connect to Database
	db, err := database.Connect(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect database", zap.Error(err))
	}

	// Initialize Handlers
	var n notifier.Notifier
	if cfg.DiscordBotToken != "" {
		discordNotifier, err := notifier.NewDiscordBotNotifier(cfg.DiscordBotToken, cfg.DiscordNotificationsChannelID)
		if err != nil {
			zapLogger.Warn("discord notifier not initialized", zap.Error(err))
		} else {
			n = discordNotifier
		}
	}

	authHandler := auth.NewAuthHandler(cfg, db)
	registrations := registration.NewService(db, n, zapLogger)
	attendanceService := attendance.NewService(db, cfg.CertificateMinAttendance)

	// Initialize Router
	r := chi.NewRouter()
	handlers.RegisterRoutes(r, cfg, db, zapLogger, handlers.NewHandlers(db, zapLogger, authHandler, registrations, attendanceService))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		zapLogger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
