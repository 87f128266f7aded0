package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/bookings"
)

type checkAvailabilityRequest struct {
	TechnicianID    string `json:"technician_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (s *Server) checkAvailability(c echo.Context) error {
	var req checkAvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	date, start, err := parseSlot(req.Date, req.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	result, err := s.avail.CheckOne(c.Request().Context(), req.TechnicianID, date, start, time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		return s.writeError(c, "check_availability", err)
	}
	return c.JSON(http.StatusOK, toAvailabilityResult(result))
}

type batchCheckRequest struct {
	TechnicianIDs   []string `json:"technician_ids"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
}

func (s *Server) batchCheckAvailability(c echo.Context) error {
	var req batchCheckRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	date, start, err := parseSlot(req.Date, req.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	results, err := s.avail.CheckBatch(c.Request().Context(), req.TechnicianIDs, date, start, time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		return s.writeError(c, "batch_check_availability", err)
	}
	out := make([]availabilityResultDTO, 0, len(results))
	for _, r := range results {
		out = append(out, toAvailabilityResult(r))
	}
	return c.JSON(http.StatusOK, map[string]any{"results": out})
}

type createBookingRequest struct {
	CustomerID     string           `json:"customer_id"`
	Services       []serviceItemDTO `json:"services"`
	Date           string           `json:"date"`
	StartTime      string           `json:"start_time"`
	EndTime        string           `json:"end_time"`
	PaymentStatus  string           `json:"payment_status"`
	Notes          string           `json:"notes"`
	CustomerNotes  string           `json:"customer_notes"`
	IdempotencyKey string           `json:"idempotency_key"`
}

func (s *Server) createBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	date, start, err := parseSlot(req.Date, req.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	var end time.Time
	if strings.TrimSpace(req.EndTime) != "" {
		end, err = parseClock(req.EndTime, date)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
	}

	items := make([]domain.ServiceItem, 0, len(req.Services))
	for _, d := range req.Services {
		items = append(items, toServiceItem(d))
	}

	in := bookings.CreateInput{
		CustomerID:      req.CustomerID,
		Services:        items,
		AppointmentDate: date,
		StartTime:       start,
		EndTime:         end,
		PaymentStatus:   req.PaymentStatus,
		Notes:           req.Notes,
		CustomerNotes:   req.CustomerNotes,
		IdempotencyKey:  req.IdempotencyKey,
	}
	if key := idempotencyKey(c); key != "" {
		in.IdempotencyKey = key
	}

	booking, err := s.booking.Create(c.Request().Context(), in)
	if err != nil {
		return s.writeError(c, "create_booking", err)
	}

	s.log.Info(
		"booking created",
		slog.String("booking_id", booking.ID.String()),
		slog.String("customer_id", booking.CustomerID),
		slog.Time("start_time", booking.StartTime),
	)
	return c.JSON(http.StatusCreated, toBookingResponse(booking))
}

func (s *Server) getBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
	}
	booking, err := s.booking.Get(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, "get_booking", err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

type rescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (s *Server) rescheduleBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	date, start, err := parseSlot(req.Date, req.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	var end time.Time
	if strings.TrimSpace(req.EndTime) != "" {
		end, err = parseClock(req.EndTime, date)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
	}

	booking, err := s.booking.Reschedule(c.Request().Context(), id, date, start, end)
	if err != nil {
		return s.writeError(c, "reschedule_booking", err)
	}

	s.log.Info(
		"booking rescheduled",
		slog.String("booking_id", booking.ID.String()),
		slog.Time("start_time", booking.StartTime),
	)
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancelBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	booking, err := s.booking.Cancel(c.Request().Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		return s.writeError(c, "cancel_booking", err)
	}

	s.log.Info("booking cancelled", slog.String("booking_id", booking.ID.String()))
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateBookingStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	booking, err := s.booking.UpdateStatus(c.Request().Context(), id, domain.BookingStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		return s.writeError(c, "update_booking_status", err)
	}

	s.log.Info(
		"booking status updated",
		slog.String("booking_id", booking.ID.String()),
		slog.String("status", string(booking.Status)),
	)
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

func (s *Server) retryCalendarSync(c echo.Context) error {
	outcomes, err := s.retrier.RetryPending(c.Request().Context())
	if err != nil {
		return s.writeError(c, "retry_calendar_sync", err)
	}
	out := make([]syncOutcomeDTO, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, toSyncOutcome(o))
	}
	s.log.Info("calendar sync retry swept", slog.Int("count", len(out)))
	return c.JSON(http.StatusOK, map[string]any{"outcomes": out})
}

func parseSlot(dateStr, startStr string) (date, start time.Time, err error) {
	date, err = parseDate(dateStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err = parseClock(startStr, date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return date, start, nil
}

func idempotencyKey(c echo.Context) string {
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" {
		key = c.Request().Header.Get("X-Idempotency-Key")
	}
	return strings.TrimSpace(key)
}
