package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/authchat/internal/controller"
	"github.com/ashureev/authchat/internal/domain"
)

// Store is the persistence the manager needs.
type Store interface {
	CookieStore
	GetDevice(ctx context.Context, deviceID string) (*domain.Device, error)
	UpsertDevice(ctx context.Context, device *domain.Device) error
	UpdateLastSeen(ctx context.Context, deviceID string, lastSeen time.Time) error
	DeleteDevice(ctx context.Context, deviceID string) error
	GetIdleDevices(ctx context.Context, ttl time.Duration) ([]*domain.Device, error)
}

// EvictCallback is called after a device session has been evicted.
type EvictCallback func(deviceID string)

// Manager owns the live device sessions.
type Manager struct {
	store      Store
	backend    controller.AuthBackend
	backendURL string

	mu       sync.Mutex
	sessions map[string]*Session
	onEvict  []EvictCallback
}

// NewManager creates a session manager. backendURL scopes every device jar.
func NewManager(store Store, backend controller.AuthBackend, backendURL string) *Manager {
	return &Manager{
		store:      store,
		backend:    backend,
		backendURL: backendURL,
		sessions:   make(map[string]*Session),
	}
}

// OnEvict registers fn to run whenever a device session is evicted.
func (m *Manager) OnEvict(fn EvictCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = append(m.onEvict, fn)
}

// Get returns the live session for deviceID, creating the device record
// and restoring its stored credentials on first use.
func (m *Manager) Get(ctx context.Context, deviceID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[deviceID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	if err := m.ensureDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	jar, err := NewJar(ctx, m.store, deviceID, m.backendURL)
	if err != nil {
		return nil, fmt.Errorf("restore jar for %s: %w", deviceID, err)
	}
	created := newSession(deviceID, jar, m.backend)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[deviceID]; ok {
		return s, nil
	}
	m.sessions[deviceID] = created
	slog.Debug("Device session created", "device_id", deviceID)
	return created, nil
}

func (m *Manager) ensureDevice(ctx context.Context, deviceID string) error {
	device, err := m.store.GetDevice(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("get device: %w", err)
	}
	if device != nil {
		return nil
	}

	now := time.Now()
	if err := m.store.UpsertDevice(ctx, &domain.Device{
		DeviceID:   deviceID,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	return nil
}

// Touch records activity for deviceID.
func (m *Manager) Touch(ctx context.Context, deviceID string) error {
	return m.store.UpdateLastSeen(ctx, deviceID, time.Now())
}

// Evict drops the live session and the stored device. Callbacks run after
// the session is gone.
func (m *Manager) Evict(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	delete(m.sessions, deviceID)
	callbacks := append([]EvictCallback(nil), m.onEvict...)
	m.mu.Unlock()

	err := m.store.DeleteDevice(ctx, deviceID)
	for _, fn := range callbacks {
		fn(deviceID)
	}
	if err != nil {
		return fmt.Errorf("delete device %s: %w", deviceID, err)
	}
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
