package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

// inactiveStatuses are the booking statuses that release a technician's slot.
var inactiveStatuses = []domain.BookingStatus{
	domain.BookingStatusCancelled,
	domain.BookingStatusNoShow,
}

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

// Create inserts the booking inside a transaction that holds advisory locks
// on every technician involved, re-checking slot conflicts under the lock.
// This closes the window between an availability read and the write.
func (r *BookingRepo) Create(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	var out domain.Booking
	err := r.InTechnicianTransaction(ctx, booking.TechnicianIDs, func(ctx context.Context, tx store.BookingTx) error {
		if err := ensureNoBookingConflicts(ctx, tx, booking, uuid.Nil); err != nil {
			return err
		}
		b, err := tx.InsertBooking(ctx, booking)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func (r *BookingRepo) Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewSelect().
		Model(&b).
		Where("id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, store.ErrNotFound
		}
		return domain.Booking{}, storeUnavailable(err)
	}
	return b, nil
}

// Update saves status, payment, and calendar bookkeeping fields. It does not
// re-check slot conflicts; schedule changes go through UpdateSchedule.
func (r *BookingRepo) Update(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	res, err := r.db.NewUpdate().
		Model(&booking).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, storeUnavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, storeUnavailable(err)
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return booking, nil
}

// UpdateSchedule moves a booking to a new slot under the same locking and
// conflict re-check as Create, excluding the booking's own interval.
func (r *BookingRepo) UpdateSchedule(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	var out domain.Booking
	err := r.InTechnicianTransaction(ctx, booking.TechnicianIDs, func(ctx context.Context, tx store.BookingTx) error {
		if err := ensureNoBookingConflicts(ctx, tx, booking, booking.ID); err != nil {
			return err
		}
		b, err := tx.SaveBooking(ctx, booking)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func (r *BookingRepo) FindActiveBookings(ctx context.Context, technicianIDs []string, date time.Time) ([]domain.Booking, error) {
	return findActiveBookings(ctx, r.db, technicianIDs, date)
}

func (r *BookingRepo) ListBySyncStatus(ctx context.Context, statuses []domain.CalendarSyncStatus, limit int) ([]domain.Booking, error) {
	var rows []domain.Booking
	q := r.db.NewSelect().
		Model(&rows).
		Where("calendar_sync_status IN (?)", bun.In(statuses)).
		OrderExpr("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storeUnavailable(err)
	}
	return rows, nil
}

func (r *BookingRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("start_time < ?", to).
		Where("end_time > ?", from).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	return rows, nil
}

// InTechnicianTransaction runs fn inside a transaction that holds an
// advisory lock per technician, taken in sorted order so two bookings
// sharing technicians cannot deadlock each other.
func (r *BookingRepo) InTechnicianTransaction(ctx context.Context, technicianIDs []string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockTechnicianCalendars(ctx, tx, technicianIDs); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func lockTechnicianCalendars(ctx context.Context, tx bun.Tx, technicianIDs []string) error {
	ids := append([]string(nil), technicianIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", id).Exec(ctx); err != nil {
			return storeUnavailable(err)
		}
	}
	return nil
}

func (r bookingTx) InsertBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m := booking
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			var existing domain.Booking
			selectErr := r.tx.NewSelect().
				Model(&existing).
				Where("id = ?", m.ID).
				Limit(1).
				Scan(ctx)
			if selectErr != nil {
				return domain.Booking{}, storeUnavailable(err)
			}
			if existing.CustomerID != booking.CustomerID ||
				!existing.StartTime.Equal(booking.StartTime) ||
				!existing.EndTime.Equal(booking.EndTime) {
				return domain.Booking{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
		return domain.Booking{}, storeUnavailable(err)
	}
	return m, nil
}

func (r bookingTx) SaveBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	res, err := r.tx.NewUpdate().
		Model(&booking).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, storeUnavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, storeUnavailable(err)
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return booking, nil
}

func (r bookingTx) FindActiveBookings(ctx context.Context, technicianIDs []string, date time.Time) ([]domain.Booking, error) {
	return findActiveBookings(ctx, r.tx, technicianIDs, date)
}

func findActiveBookings(ctx context.Context, db bun.IDB, technicianIDs []string, date time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("appointment_date = ?", domain.DateOf(date)).
		Where("technician_ids && ?", pgdialect.Array(technicianIDs)).
		Where("status NOT IN (?)", bun.In(inactiveStatuses)).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	return rows, nil
}

// ensureNoBookingConflicts rejects the write when any technician on the
// booking already has an active overlapping booking. excludeID keeps a
// rescheduled booking from colliding with its own row.
func ensureNoBookingConflicts(ctx context.Context, tx store.BookingTx, booking domain.Booking, excludeID uuid.UUID) error {
	existing, err := tx.FindActiveBookings(ctx, booking.TechnicianIDs, booking.AppointmentDate)
	if err != nil {
		return err
	}

	for _, techID := range booking.DistinctTechnicianIDs() {
		requested := booking.Interval(techID)
		for _, e := range existing {
			if e.ID == excludeID || !e.Involves(techID) {
				continue
			}
			if requested.Overlaps(e.Interval(techID)) {
				return store.ErrConflict
			}
		}
	}
	return nil
}

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
