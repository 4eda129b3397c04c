package chatws

import (
	"log/slog"
	"sync"

	"github.com/ashureev/authchat/internal/domain"
)

// Peer is one live chat view.
type Peer interface {
	Navigate(route domain.Route)
	Close(reason string)
}

// Registry tracks the live chat views of every device.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]Peer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]map[string]Peer)}
}

// Count returns the number of live views of a device.
func (r *Registry) Count(deviceID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active[deviceID])
}

// Register adds a view for a device.
func (r *Registry) Register(deviceID, connID string, p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[deviceID]; !exists {
		r.active[deviceID] = make(map[string]Peer)
	}
	r.active[deviceID][connID] = p
	slog.Debug("Chat view registered", "device_id", deviceID, "conn_id", connID)
}

// Unregister removes a view if it is still the registered one.
func (r *Registry) Unregister(deviceID, connID string, p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	views, ok := r.active[deviceID]
	if !ok {
		return
	}
	if current, exists := views[connID]; exists && current == p {
		delete(views, connID)
		if len(views) == 0 {
			delete(r.active, deviceID)
		}
		slog.Debug("Chat view unregistered", "device_id", deviceID, "conn_id", connID)
	}
}

// NavigateOthers sends every view of a device except connID to route.
func (r *Registry) NavigateOthers(deviceID, connID string, route domain.Route) {
	r.mu.RLock()
	peers := make([]Peer, 0, len(r.active[deviceID]))
	for id, p := range r.active[deviceID] {
		if id != connID {
			peers = append(peers, p)
		}
	}
	r.mu.RUnlock()

	for _, p := range peers {
		p.Navigate(route)
	}
}

// CloseDevice terminates every view of a device.
func (r *Registry) CloseDevice(deviceID string) {
	r.mu.Lock()
	views := r.active[deviceID]
	delete(r.active, deviceID)
	r.mu.Unlock()

	for connID, p := range views {
		p.Close("session closed")
		slog.Info("Chat view closed", "device_id", deviceID, "conn_id", connID)
	}
}

// CloseAll terminates every view of every device.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	devices := make([]string, 0, len(r.active))
	for id := range r.active {
		devices = append(devices, id)
	}
	r.mu.RUnlock()

	for _, id := range devices {
		r.CloseDevice(id)
	}
}
