package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	DeviceCookieName   = "authchat_device"
	deviceCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const sessionKey contextKey = iota

// FromContext returns the device session attached by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func isValidDeviceID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func setDeviceCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     DeviceCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(deviceCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(deviceCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func deviceIDFromRequest(w http.ResponseWriter, r *http.Request, isDev bool) string {
	id := ""
	if c, err := r.Cookie(DeviceCookieName); err == nil && isValidDeviceID(c.Value) {
		id = c.Value
	} else {
		id = uuid.NewString()
	}
	setDeviceCookie(w, id, isDev)
	return id
}

// Middleware attaches the device session to every request, issuing a device
// cookie on first contact.
func Middleware(m *Manager, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := deviceIDFromRequest(w, r, isDev)

			s, err := m.Get(r.Context(), deviceID)
			if err != nil {
				slog.Error("Failed to load device session", "device_id", deviceID, "error", err)
				http.Error(w, "failed to establish session", http.StatusInternalServerError)
				return
			}
			if err := m.Touch(r.Context(), deviceID); err != nil {
				slog.Warn("Failed to record device activity", "device_id", deviceID, "error", err)
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}
