package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

func TestPostgresIntegration_BookingInsertFindAndIdempotency(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("SALONBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("SALONBOOK_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Open(ctx, databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "salonbook_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer ccancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(cctx)
	})

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		if err := applyMigrations(ctx, tx); err != nil {
			return err
		}

		r := bookingTx{tx: tx}

		start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
		end := start.Add(time.Hour)
		b1 := domain.Booking{
			ID:         uuid.MustParse("00000000-0000-0000-0000-000000000901"),
			CustomerID: "c1",
			Services: []domain.ServiceItem{
				{ServiceID: "s1", TechnicianID: "t1", Duration: 60, Price: 45},
			},
			TechnicianIDs:      []string{"t1"},
			AppointmentDate:    domain.DateOf(start),
			StartTime:          start,
			EndTime:            end,
			TotalDuration:      60,
			TotalPrice:         45,
			Status:             domain.BookingStatusConfirmed,
			CalendarSyncStatus: domain.CalendarSyncPending,
		}

		inserted, err := r.InsertBooking(ctx, b1)
		if err != nil {
			return err
		}
		if inserted.ID != b1.ID {
			return fmt.Errorf("inserted id = %s, want %s", inserted.ID, b1.ID)
		}

		rows, err := r.FindActiveBookings(ctx, []string{"t1", "t9"}, start)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return fmt.Errorf("len(rows) = %d, want 1", len(rows))
		}
		if rows[0].ID != b1.ID {
			return fmt.Errorf("found id = %s, want %s", rows[0].ID, b1.ID)
		}
		if len(rows[0].Services) != 1 || rows[0].Services[0].TechnicianID != "t1" {
			return fmt.Errorf("services not round-tripped: %+v", rows[0].Services)
		}

		rows, err = r.FindActiveBookings(ctx, []string{"t2"}, start)
		if err != nil {
			return err
		}
		if len(rows) != 0 {
			return fmt.Errorf("len(rows) for t2 = %d, want 0", len(rows))
		}

		// Re-insert with the same ID and same schedule is an idempotent no-op.
		again, err := r.InsertBooking(ctx, b1)
		if err != nil {
			return err
		}
		if again.ID != b1.ID {
			return fmt.Errorf("idempotent insert id = %s, want %s", again.ID, b1.ID)
		}

		conflicting := b1
		conflicting.StartTime = start.Add(30 * time.Minute)
		conflicting.EndTime = end.Add(30 * time.Minute)
		if _, err := r.InsertBooking(ctx, conflicting); err != store.ErrIdempotencyConflict {
			return fmt.Errorf("idempotency err = %v, want %v", err, store.ErrIdempotencyConflict)
		}

		cancelled := b1
		cancelled.ID = uuid.MustParse("00000000-0000-0000-0000-000000000902")
		cancelled.StartTime = start.Add(2 * time.Hour)
		cancelled.EndTime = end.Add(2 * time.Hour)
		cancelled.Status = domain.BookingStatusCancelled
		if _, err := r.InsertBooking(ctx, cancelled); err != nil {
			return err
		}

		rows, err = r.FindActiveBookings(ctx, []string{"t1"}, start)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return fmt.Errorf("cancelled bookings must be excluded, got %d rows", len(rows))
		}

		updated := inserted
		updated.Status = domain.BookingStatusInProgress
		saved, err := r.SaveBooking(ctx, updated)
		if err != nil {
			return err
		}
		if saved.Status != domain.BookingStatusInProgress {
			return fmt.Errorf("saved status = %s, want %s", saved.Status, domain.BookingStatusInProgress)
		}

		missing := inserted
		missing.ID = uuid.MustParse("00000000-0000-0000-0000-000000000999")
		if _, err := r.SaveBooking(ctx, missing); err != store.ErrNotFound {
			return fmt.Errorf("save missing err = %v, want %v", err, store.ErrNotFound)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type mig struct {
		name string
		path string
	}
	migs := make([]mig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migs = append(migs, mig{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].name < migs[j].name })

	for _, m := range migs {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
