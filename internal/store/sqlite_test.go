package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/authchat/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "db", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDeviceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetDevice(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("GetDevice(missing) = %v, %v; want nil, nil", got, err)
	}

	now := time.Now().Truncate(time.Second)
	if err := s.UpsertDevice(ctx, &domain.Device{DeviceID: "d1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}
	got, err = s.GetDevice(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got == nil || !got.LastSeenAt.Equal(now) {
		t.Fatalf("GetDevice() = %+v", got)
	}

	later := now.Add(time.Hour)
	if err := s.UpdateLastSeen(ctx, "d1", later); err != nil {
		t.Fatalf("UpdateLastSeen() error = %v", err)
	}
	got, _ = s.GetDevice(ctx, "d1")
	if !got.LastSeenAt.Equal(later) {
		t.Fatalf("LastSeenAt = %v, want %v", got.LastSeenAt, later)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt changed to %v", got.CreatedAt)
	}
}

func TestCookiesReplaceSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []domain.StoredCookie{{Name: "sid", Value: "a"}, {Name: "csrf", Value: "b"}}
	if err := s.SaveCookies(ctx, "d1", first); err != nil {
		t.Fatalf("SaveCookies() error = %v", err)
	}
	got, err := s.LoadCookies(ctx, "d1")
	if err != nil {
		t.Fatalf("LoadCookies() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "csrf" || got[1].Value != "a" {
		t.Fatalf("LoadCookies() = %+v", got)
	}

	if err := s.SaveCookies(ctx, "d1", []domain.StoredCookie{{Name: "sid", Value: "c"}}); err != nil {
		t.Fatalf("SaveCookies() error = %v", err)
	}
	got, _ = s.LoadCookies(ctx, "d1")
	if len(got) != 1 || got[0].Value != "c" {
		t.Fatalf("after replace = %+v", got)
	}

	if err := s.SaveCookies(ctx, "d1", nil); err != nil {
		t.Fatalf("SaveCookies(nil) error = %v", err)
	}
	if got, _ := s.LoadCookies(ctx, "d1"); len(got) != 0 {
		t.Fatalf("after clear = %+v", got)
	}
}

func TestDeleteDeviceAndIdle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	old := now.Add(-48 * time.Hour)
	for id, seen := range map[string]time.Time{"fresh": now, "stale": old} {
		if err := s.UpsertDevice(ctx, &domain.Device{DeviceID: id, LastSeenAt: seen, CreatedAt: seen, UpdatedAt: seen}); err != nil {
			t.Fatalf("UpsertDevice(%s) error = %v", id, err)
		}
		if err := s.SaveCookies(ctx, id, []domain.StoredCookie{{Name: "sid", Value: id}}); err != nil {
			t.Fatalf("SaveCookies(%s) error = %v", id, err)
		}
	}

	idle, err := s.GetIdleDevices(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("GetIdleDevices() error = %v", err)
	}
	if len(idle) != 1 || idle[0].DeviceID != "stale" {
		t.Fatalf("GetIdleDevices() = %+v", idle)
	}

	if err := s.DeleteDevice(ctx, "stale"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if d, _ := s.GetDevice(ctx, "stale"); d != nil {
		t.Fatalf("device still present: %+v", d)
	}
	if c, _ := s.LoadCookies(ctx, "stale"); len(c) != 0 {
		t.Fatalf("cookies still present: %+v", c)
	}
	if c, _ := s.LoadCookies(ctx, "fresh"); len(c) != 1 {
		t.Fatalf("fresh cookies = %+v", c)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := withRetry(ctx, "op", func() error {
		calls++
		if calls < 2 {
			return errors.New("SQLITE_BUSY: database busy")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("withRetry() = %v after %d calls, want nil after 2", err, calls)
	}

	calls = 0
	boom := errors.New("constraint failed")
	err = withRetry(ctx, "op", func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("withRetry() = %v after %d calls, want boom after 1", err, calls)
	}

	calls = 0
	err = withRetry(ctx, "op", func() error {
		calls++
		return errors.New("database is locked")
	})
	if err == nil || calls != maxRetries {
		t.Fatalf("withRetry() = %v after %d calls, want error after %d", err, calls, maxRetries)
	}
}

func TestIsConflictError(t *testing.T) {
	if isConflictError(nil) {
		t.Errorf("isConflictError(nil) = true")
	}
	if !isConflictError(errors.New("database is locked (5)")) {
		t.Errorf("locked error not detected")
	}
	if isConflictError(errors.New("no such table")) {
		t.Errorf("unrelated error detected as conflict")
	}
}
