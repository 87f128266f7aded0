// Package http exposes the booking API over JSON HTTP.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/availability"
	"salonbook/backend/internal/service/bookings"
	"salonbook/backend/internal/service/calendarsync"
	"salonbook/backend/internal/store"
)

type bookingsService interface {
	Create(ctx context.Context, in bookings.CreateInput) (domain.Booking, error)
	Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	Reschedule(ctx context.Context, bookingID uuid.UUID, date, start, end time.Time) (domain.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, reason string) (domain.Booking, error)
	UpdateStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) (domain.Booking, error)
}

type availabilityService interface {
	CheckOne(ctx context.Context, technicianID string, date, start time.Time, duration time.Duration) (availability.Result, error)
	CheckBatch(ctx context.Context, technicianIDs []string, date, start time.Time, duration time.Duration) ([]availability.Result, error)
}

type syncRetrier interface {
	RetryPending(ctx context.Context) ([]calendarsync.Outcome, error)
}

type Server struct {
	echo    *echo.Echo
	booking bookingsService
	avail   availabilityService
	retrier syncRetrier
	log     *slog.Logger
}

func NewServer(booking bookingsService, avail availabilityService, retrier syncRetrier, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		booking: booking,
		avail:   avail,
		retrier: retrier,
		log:     log.With(slog.String("component", "http")),
	}

	e.GET("/healthz", s.health)

	api := e.Group("/api")
	api.POST("/availability/check", s.checkAvailability)
	api.POST("/availability/batch-check", s.batchCheckAvailability)
	api.POST("/bookings", s.createBooking)
	api.GET("/bookings/:id", s.getBooking)
	api.POST("/bookings/:id/reschedule", s.rescheduleBooking)
	api.POST("/bookings/:id/cancel", s.cancelBooking)
	api.POST("/bookings/:id/status", s.updateBookingStatus)
	api.POST("/calendar/retry", s.retryCalendarSync)

	return s
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying mux, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service and store errors onto HTTP statuses. Unknown
// errors are logged and reported as a plain 500 so internals do not leak.
func (s *Server) writeError(c echo.Context, op string, err error) error {
	var bookingVErr *bookings.ValidationError
	var availVErr *availability.ValidationError
	if errors.As(err, &bookingVErr) || errors.As(err, &availVErr) {
		s.log.Warn("invalid request", slog.String("op", op), slog.Any("err", err))
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	var conflict *bookings.ConflictError
	if errors.As(err, &conflict) {
		s.log.Info("booking conflict", slog.String("op", op))
		return c.JSON(http.StatusConflict, conflictResponse(conflict))
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "booking not found"})
	case errors.Is(err, store.ErrConflict):
		s.log.Info("booking conflict", slog.String("op", op))
		return c.JSON(http.StatusConflict, errorResponse{Error: "the requested slot is no longer free"})
	case errors.Is(err, store.ErrIdempotencyConflict):
		s.log.Info("idempotency conflict", slog.String("op", op))
		return c.JSON(http.StatusConflict, errorResponse{Error: "this idempotency key was already used for a different booking"})
	case errors.Is(err, store.ErrUnavailable):
		s.log.Error("store unavailable", slog.String("op", op), slog.Any("err", err))
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable"})
	}

	s.log.Error("request failed", slog.String("op", op), slog.Any("err", err))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
