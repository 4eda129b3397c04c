// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/authchat/internal/domain"
)

// Repository persists devices and the opaque backend credentials each
// device holds.
type Repository interface {
	// GetDevice retrieves a device by ID. It returns nil, nil when the
	// device is unknown.
	GetDevice(ctx context.Context, deviceID string) (*domain.Device, error)

	// UpsertDevice creates or updates a device record.
	UpsertDevice(ctx context.Context, device *domain.Device) error

	// UpdateLastSeen updates the last_seen_at timestamp for a device.
	UpdateLastSeen(ctx context.Context, deviceID string, lastSeen time.Time) error

	// SaveCookies replaces the stored credential set of a device.
	SaveCookies(ctx context.Context, deviceID string, cookies []domain.StoredCookie) error

	// LoadCookies returns the stored credential set of a device.
	LoadCookies(ctx context.Context, deviceID string) ([]domain.StoredCookie, error)

	// DeleteDevice removes a device and its credentials.
	DeleteDevice(ctx context.Context, deviceID string) error

	// GetIdleDevices returns devices not seen for longer than ttl.
	GetIdleDevices(ctx context.Context, ttl time.Duration) ([]*domain.Device, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
