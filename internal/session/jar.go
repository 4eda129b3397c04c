package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/ashureev/authchat/internal/domain"
	"golang.org/x/net/publicsuffix"
)

const persistTimeout = 5 * time.Second

// CookieStore persists a device's backend credentials.
type CookieStore interface {
	SaveCookies(ctx context.Context, deviceID string, cookies []domain.StoredCookie) error
	LoadCookies(ctx context.Context, deviceID string) ([]domain.StoredCookie, error)
}

// Jar is a device's cookie jar for the backend. It behaves like a
// cookiejar.Jar and writes the backend origin's cookies through to a
// CookieStore whenever the backend sets or expires one. Cookie values are
// stored as received and never interpreted.
type Jar struct {
	inner    *cookiejar.Jar
	origin   *url.URL
	deviceID string
	store    CookieStore
}

var _ http.CookieJar = (*Jar)(nil)

// NewJar creates a jar for deviceID scoped to backendURL and restores any
// credentials previously stored for the device. A nil store keeps the jar
// in memory only.
func NewJar(ctx context.Context, store CookieStore, deviceID, backendURL string) (*Jar, error) {
	origin, err := url.Parse(backendURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if origin.Host == "" {
		return nil, fmt.Errorf("backend url %q has no host", backendURL)
	}
	origin = &url.URL{Scheme: origin.Scheme, Host: origin.Host, Path: "/"}

	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	j := &Jar{inner: inner, origin: origin, deviceID: deviceID, store: store}
	if store == nil {
		return j, nil
	}

	stored, err := store.LoadCookies(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	if len(stored) > 0 {
		cookies := make([]*http.Cookie, 0, len(stored))
		for _, c := range stored {
			cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
		}
		inner.SetCookies(origin, cookies)
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)
	if j.store == nil || len(cookies) == 0 || u.Host != j.origin.Host {
		return
	}
	j.persist()
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// HasCredential reports whether the jar holds any cookie for the backend.
func (j *Jar) HasCredential() bool {
	return len(j.inner.Cookies(j.origin)) > 0
}

// Clear drops every backend cookie locally and in the store.
func (j *Jar) Clear() {
	expired := make([]*http.Cookie, 0)
	for _, c := range j.inner.Cookies(j.origin) {
		expired = append(expired, &http.Cookie{Name: c.Name, Path: "/", MaxAge: -1})
	}
	if len(expired) > 0 {
		j.inner.SetCookies(j.origin, expired)
	}
	if j.store != nil {
		j.persist()
	}
}

func (j *Jar) persist() {
	current := j.inner.Cookies(j.origin)
	stored := make([]domain.StoredCookie, 0, len(current))
	for _, c := range current {
		stored = append(stored, domain.StoredCookie{Name: c.Name, Value: c.Value})
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := j.store.SaveCookies(ctx, j.deviceID, stored); err != nil {
		slog.Error("Failed to persist device cookies", "device_id", j.deviceID, "error", err)
	}
}
