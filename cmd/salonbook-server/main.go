package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"salonbook/backend/internal/calendar"
	"salonbook/backend/internal/config"
	"salonbook/backend/internal/service/availability"
	"salonbook/backend/internal/service/bookings"
	"salonbook/backend/internal/service/calendarsync"
	"salonbook/backend/internal/store/postgres"
	httpTransport "salonbook/backend/internal/transport/http"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "salonbook-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "salonbook-server"),
	)
	slog.SetDefault(log)

	addr := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.HTTPPort))
	log.Info("starting", slog.String("http_addr", addr), slog.String("log_level", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	repo := postgres.NewBookingRepo(db)

	cal, err := calendar.NewGoogleClient(ctx, calendar.GoogleConfig{
		CredentialsFile: cfg.CalendarCredentialsFile,
		CalendarID:      cfg.CalendarID,
	})
	if err != nil {
		log.Warn("calendar client unavailable; bookings will sync as disabled", slog.Any("err", err))
		cal = calendar.Disabled()
	}

	syncer := calendarsync.NewSyncer(cal, repo, nil, log, calendarsync.Config{
		CallTimeout:      cfg.CalendarCallTimeout,
		RetryConcurrency: cfg.SyncRetryConcurrency,
		RetryBatchLimit:  cfg.SyncRetryBatchLimit,
	})

	avail := availability.NewService(repo, availability.BusinessHours{
		Open:  parseBusinessHour(cfg.BusinessOpen, 9*time.Hour),
		Close: parseBusinessHour(cfg.BusinessClose, 19*time.Hour),
	})
	booking := bookings.NewService(repo, avail, syncer, cfg.DurationTolerance, log)

	srv := httpTransport.NewServer(booking, avail, syncer, log)

	go syncer.RunRetryLoop(ctx, cfg.SyncRetryInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	log.Info("http server started", slog.String("http_addr", addr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, srv, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func shutdown(log *slog.Logger, srv *httpTransport.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
		return
	}
	log.Info("http server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseBusinessHour reads a wall-clock boundary like "09:00" as an offset
// from midnight.
func parseBusinessHour(s string, fallback time.Duration) time.Duration {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
