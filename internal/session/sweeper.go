package session

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper runs a background goroutine that periodically evicts devices
// idle for longer than ttl. It stops when ctx is done.
func StartSweeper(ctx context.Context, m *Manager, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				m.sweep(ctx, ttl)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// sweep evicts idle devices and returns how many were removed.
func (m *Manager) sweep(ctx context.Context, ttl time.Duration) int {
	idle, err := m.store.GetIdleDevices(ctx, ttl)
	if err != nil {
		slog.Error("Session sweeper failed to list idle devices", "error", err)
		return 0
	}
	if len(idle) == 0 {
		return 0
	}

	slog.Info("Session sweeper found idle devices", "count", len(idle))
	evicted := 0
	for _, d := range idle {
		// A request may have touched the device since the listing.
		current, err := m.store.GetDevice(ctx, d.DeviceID)
		if err != nil {
			slog.Warn("Session sweeper failed to reload device", "device_id", d.DeviceID, "error", err)
			continue
		}
		if current != nil && !current.Idle(time.Now(), ttl) {
			continue
		}
		if err := m.Evict(ctx, d.DeviceID); err != nil {
			slog.Warn("Session sweeper failed to evict device", "device_id", d.DeviceID, "error", err)
			continue
		}
		evicted++
	}
	slog.Info("Session sweeper completed", "evicted", evicted)
	return evicted
}
