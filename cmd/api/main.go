package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/config"
	"github.com/cmlabs-hris/attendance-engine-go/internal/engine"
	appHTTP "github.com/cmlabs-hris/attendance-engine-go/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine-go/internal/location"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine-go/internal/repository/postgresql"
	"github.com/cmlabs-hris/attendance-engine-go/internal/spoof"
	"github.com/cmlabs-hris/attendance-engine-go/internal/timesync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("app", "attendance-engine"),
	)

	gateway := postgresql.NewGateway(db, logger, cfg.Capture.DefaultTimezone)
	provider := location.NewPushProvider()
	watcher := location.NewWatcher(provider)
	detector := spoof.NewDetector(spoof.Config{
		MaxSpeedMetersPerSecond:  cfg.Capture.SpoofMaxSpeedMPS,
		SuspiciousAccuracyMeters: cfg.Capture.SpoofMinAccuracyMeters,
	})
	timeClient := timesync.NewClient(cfg.TimeAPI.BaseURL, cfg.TimeAPI.Timeout)
	hub := sse.NewHub()

	eng := engine.New(
		engine.Config{AccuracyCeilingMeters: cfg.Capture.AccuracyCeilingMeters},
		gateway,
		watcher,
		detector,
		timeClient,
		hub,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go eng.Run(ctx)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.SessionExpiration)
	sessionHandler := appHTTP.NewSessionHandler(eng, JWTService)
	attendanceHandler := appHTTP.NewAttendanceHandler(eng, provider, hub, JWTService)

	router := appHTTP.NewRouter(JWTService, cfg.App.AllowedOrigin, sessionHandler, attendanceHandler)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	server := &http.Server{Addr: port, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Println("Server error:", err)
	}
}
