// Package calendarsync keeps booking state reflected on the external
// calendar. Sync outcomes are recorded on the booking's calendar fields and
// never fail the booking mutation that triggered them.
package calendarsync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"salonbook/backend/internal/calendar"
	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

// Outcome is the resolution of one sync attempt.
type Outcome struct {
	BookingID uuid.UUID
	Status    domain.CalendarSyncStatus
	EventID   string
	Err       error
}

// EnrichFunc supplies display data for the projection. A nil func or a
// returned zero value both degrade the event to IDs and counts.
type EnrichFunc func(ctx context.Context, b domain.Booking) Enrichment

type Config struct {
	CallTimeout      time.Duration
	RetryConcurrency int
	RetryBatchLimit  int
}

type Syncer struct {
	cal    calendar.Client
	repo   store.BookingRepository
	enrich EnrichFunc
	log    *slog.Logger
	now    func() time.Time
	cfg    Config
}

func NewSyncer(cal calendar.Client, repo store.BookingRepository, enrich EnrichFunc, log *slog.Logger, cfg Config) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.RetryConcurrency <= 0 {
		cfg.RetryConcurrency = 4
	}
	if cfg.RetryBatchLimit <= 0 {
		cfg.RetryBatchLimit = 100
	}
	return &Syncer{
		cal:    cal,
		repo:   repo,
		enrich: enrich,
		log:    log.With(slog.String("component", "calendarsync")),
		now:    func() time.Time { return time.Now().UTC() },
		cfg:    cfg,
	}
}

// SyncBooking drives the booking through one sync transition and records the
// resolution on its calendar fields. It is idempotent: a booking that already
// carries an event id gets an update, not a duplicate create. Safe to call
// repeatedly at any cadence.
func (s *Syncer) SyncBooking(ctx context.Context, b domain.Booking) Outcome {
	if b.Status == domain.BookingStatusCancelled {
		return s.deleteTransition(ctx, b)
	}
	return s.createOrUpdate(ctx, b)
}

// createOrUpdate is the self-healing write transition: a booking that never
// successfully synced gets a fresh create, any other gets an update against
// its existing event.
func (s *Syncer) createOrUpdate(ctx context.Context, b domain.Booking) Outcome {
	event := Project(b, s.enrichFor(ctx, b))

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	var err error
	if b.CalendarEventID == "" {
		var eventID string
		eventID, err = s.cal.CreateEvent(callCtx, event)
		if err == nil {
			b.CalendarEventID = eventID
		}
	} else {
		err = s.cal.UpdateEvent(callCtx, b.CalendarEventID, event)
	}

	switch {
	case errors.Is(err, calendar.ErrUnconfigured):
		b.CalendarSyncStatus = domain.CalendarSyncDisabled
		return s.record(ctx, b, nil, false)
	case err != nil:
		s.log.Warn("calendar write failed",
			slog.String("booking_id", b.ID.String()),
			slog.Any("err", err),
		)
		b.CalendarSyncStatus = domain.CalendarSyncFailed
		return s.record(ctx, b, err, true)
	default:
		b.CalendarSyncStatus = domain.CalendarSyncSynced
		return s.record(ctx, b, nil, true)
	}
}

// deleteTransition removes the external event for a cancelled booking. A
// booking that never synced has nothing to remove and lands in disabled
// directly.
func (s *Syncer) deleteTransition(ctx context.Context, b domain.Booking) Outcome {
	if b.CalendarEventID == "" {
		b.CalendarSyncStatus = domain.CalendarSyncDisabled
		return s.record(ctx, b, nil, false)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	err := s.cal.DeleteEvent(callCtx, b.CalendarEventID)
	switch {
	case errors.Is(err, calendar.ErrUnconfigured):
		b.CalendarSyncStatus = domain.CalendarSyncDisabled
		return s.record(ctx, b, nil, false)
	case err != nil:
		s.log.Warn("calendar delete failed",
			slog.String("booking_id", b.ID.String()),
			slog.String("event_id", b.CalendarEventID),
			slog.Any("err", err),
		)
		b.CalendarSyncStatus = domain.CalendarSyncFailed
		return s.record(ctx, b, err, true)
	default:
		b.CalendarEventID = ""
		b.CalendarSyncStatus = domain.CalendarSyncDisabled
		return s.record(ctx, b, nil, true)
	}
}

// RetryFailedSyncs re-runs the sync transition for each booking, bounded by
// the configured concurrency. One booking's failure never aborts its
// siblings; results preserve input order.
func (s *Syncer) RetryFailedSyncs(ctx context.Context, bookings []domain.Booking) []Outcome {
	results := make([]Outcome, len(bookings))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.RetryConcurrency)
	for i, b := range bookings {
		i, b := i, b
		g.Go(func() error {
			results[i] = s.SyncBooking(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// RetryPending selects the bookings whose sync is still owed (pending or
// failed) and retries them.
func (s *Syncer) RetryPending(ctx context.Context) ([]Outcome, error) {
	bookings, err := s.repo.ListBySyncStatus(ctx, []domain.CalendarSyncStatus{
		domain.CalendarSyncPending,
		domain.CalendarSyncFailed,
	}, s.cfg.RetryBatchLimit)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	return s.RetryFailedSyncs(ctx, bookings), nil
}

// RunRetryLoop retries owed syncs every interval until ctx is done.
func (s *Syncer) RunRetryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			outcomes, err := s.RetryPending(ctx)
			if err != nil {
				s.log.Error("sync retry sweep failed", slog.Any("err", err))
				continue
			}
			if len(outcomes) == 0 {
				continue
			}
			synced, failed := 0, 0
			for _, o := range outcomes {
				switch o.Status {
				case domain.CalendarSyncSynced, domain.CalendarSyncDisabled:
					synced++
				default:
					failed++
				}
			}
			s.log.Info("sync retry sweep done",
				slog.Int("retried", len(outcomes)),
				slog.Int("resolved", synced),
				slog.Int("still_failed", failed),
			)
		}
	}
}

func (s *Syncer) enrichFor(ctx context.Context, b domain.Booking) Enrichment {
	if s.enrich == nil {
		return Enrichment{}
	}
	return s.enrich(ctx, b)
}

// record persists the resolved calendar fields and builds the outcome. A
// store failure on the write is surfaced in the outcome but the transition
// result stands.
func (s *Syncer) record(ctx context.Context, b domain.Booking, syncErr error, stamp bool) Outcome {
	if stamp {
		at := s.now()
		b.CalendarLastSyncAt = &at
	}

	saved, err := s.repo.Update(ctx, b)
	if err != nil {
		s.log.Error("sync state write failed",
			slog.String("booking_id", b.ID.String()),
			slog.Any("err", err),
		)
		return Outcome{
			BookingID: b.ID,
			Status:    b.CalendarSyncStatus,
			EventID:   b.CalendarEventID,
			Err:       errors.Join(syncErr, err),
		}
	}

	return Outcome{
		BookingID: saved.ID,
		Status:    saved.CalendarSyncStatus,
		EventID:   saved.CalendarEventID,
		Err:       syncErr,
	}
}
