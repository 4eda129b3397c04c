package domain

import "time"

// Device is a browser or terminal that holds its own backend session.
type Device struct {
	DeviceID   string    `json:"device_id"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Idle reports whether the device has not been seen for longer than ttl.
func (d *Device) Idle(now time.Time, ttl time.Duration) bool {
	return now.Sub(d.LastSeenAt) > ttl
}

// StoredCookie is an opaque backend credential entry. The value is never
// interpreted by the front end.
type StoredCookie struct {
	Name  string
	Value string
}
