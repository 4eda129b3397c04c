//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/authchat/internal/backend"
	"github.com/ashureev/authchat/internal/domain"
	"github.com/ashureev/authchat/internal/middleware"
	"github.com/ashureev/authchat/internal/session"
	"github.com/ashureev/authchat/internal/store"
	"github.com/ashureev/authchat/internal/validate"
	"github.com/ashureev/authchat/web"
	"github.com/go-chi/chi/v5"
)

const testBackendURL = "http://backend.test"

type fakeAuth struct {
	mu        sync.Mutex
	signIns   int
	forgots   int
	resets    int
	signInErr error
	resetErr  error
}

func (f *fakeAuth) SignIn(_ context.Context, jar http.CookieJar, _ validate.SignInInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signIns++
	if f.signInErr != nil {
		return f.signInErr
	}
	u, _ := url.Parse(testBackendURL + "/signin")
	jar.SetCookies(u, []*http.Cookie{{Name: "sid", Value: "opaque", Path: "/"}})
	return nil
}

func (f *fakeAuth) SignUp(context.Context, http.CookieJar, validate.SignUpInput) error { return nil }

func (f *fakeAuth) Forgot(context.Context, http.CookieJar, validate.ForgotInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgots++
	return nil
}

func (f *fakeAuth) Reset(context.Context, http.CookieJar, validate.ResetInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.resetErr
}

type testClient struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func newTestClient(t *testing.T, auth *fakeAuth) *testClient {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	renderer, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mgr := session.NewManager(repo, auth, testBackendURL)
	pages := NewPageHandler(renderer)
	limiter := middleware.NewRateLimiter(ctx, 3, time.Minute)

	r := chi.NewRouter()
	r.Use(session.Middleware(mgr, true))
	r.Use(middleware.RateLimit(limiter, func(r *http.Request) string {
		return session.FromContext(r.Context()).DeviceID
	}, http.HandlerFunc(pages.Limited)))
	pages.RegisterRoutes(r)

	return &testClient{t: t, handler: r}
}

func (c *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	if got := rec.Result().Cookies(); len(got) > 0 {
		c.cookies = got
	}
	return rec
}

func (c *testClient) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *testClient) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestRootRedirectsToSignIn(t *testing.T) {
	c := newTestClient(t, &fakeAuth{})
	rec := c.get("/")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/signin" {
		t.Fatalf("GET / = %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestSignInValidationSkipsBackend(t *testing.T) {
	auth := &fakeAuth{}
	c := newTestClient(t, auth)

	rec := c.post("/signin", url.Values{"email": {"not-an-email"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("POST /signin = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, validate.MsgInvalidEmail) || !strings.Contains(body, validate.MsgPasswordRequired) {
		t.Fatalf("field errors missing from body")
	}
	if auth.signIns != 0 {
		t.Fatalf("backend called %d times", auth.signIns)
	}
}

func TestSignInSuccessRedirectsToChat(t *testing.T) {
	auth := &fakeAuth{}
	c := newTestClient(t, auth)

	if rec := c.get("/chat"); rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/signin" {
		t.Fatalf("GET /chat before sign-in = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec := c.post("/signin", url.Values{"email": {"ada@example.com"}, "password": {"pw"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/chat" {
		t.Fatalf("POST /signin = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = c.get("/chat")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /chat = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Signed in successfully!") {
		t.Fatalf("flashed notice missing from chat page")
	}
}

func TestSignInBackendRejection(t *testing.T) {
	auth := &fakeAuth{signInErr: &backend.APIError{Status: http.StatusUnauthorized}}
	c := newTestClient(t, auth)

	rec := c.post("/signin", url.Values{"email": {"ada@example.com"}, "password": {"bad"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /signin = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Invalid credentials") {
		t.Fatalf("notice missing")
	}
	if !strings.Contains(body, `value="ada@example.com"`) {
		t.Fatalf("email not echoed back")
	}
	if strings.Contains(body, `value="bad"`) {
		t.Fatalf("password echoed back")
	}
}

func TestForgotPasswordFlow(t *testing.T) {
	auth := &fakeAuth{}
	c := newTestClient(t, auth)

	if rec := c.get("/forgot-password"); rec.Code != http.StatusOK {
		t.Fatalf("GET /forgot-password = %d", rec.Code)
	}

	rec := c.post("/forgot-password", url.Values{"email": {"ada@example.com"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("request step = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="token"`) || !strings.Contains(body, "Reset instructions sent to your email") {
		t.Fatalf("reset step not shown")
	}

	rec = c.post("/forgot-password", url.Values{"token": {"t0k"}, "password": {"new"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/signin" {
		t.Fatalf("reset step = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := c.get("/signin"); !strings.Contains(rec.Body.String(), "Password reset successfully") {
		t.Fatalf("reset notice missing on sign-in page")
	}
	if auth.forgots != 1 || auth.resets != 1 {
		t.Fatalf("backend calls forgot=%d reset=%d", auth.forgots, auth.resets)
	}
}

func TestForgotPageLoadRestartsFlow(t *testing.T) {
	c := newTestClient(t, &fakeAuth{})

	c.post("/forgot-password", url.Values{"email": {"ada@example.com"}})
	rec := c.get("/forgot-password")
	if strings.Contains(rec.Body.String(), `name="token"`) {
		t.Fatalf("page load kept the reset step")
	}
}

func TestForgotInvalidTokenStaysOnReset(t *testing.T) {
	auth := &fakeAuth{resetErr: &backend.APIError{Status: http.StatusBadRequest, Field: "token", Message: "Token expired"}}
	c := newTestClient(t, auth)

	c.post("/forgot-password", url.Values{"email": {"ada@example.com"}})
	rec := c.post("/forgot-password", url.Values{"token": {"old"}, "password": {"new"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset step = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="token"`) || !strings.Contains(body, "Token expired") {
		t.Fatalf("reset step error not rendered")
	}
}

func TestAuthRateLimit(t *testing.T) {
	auth := &fakeAuth{signInErr: errors.New("nope")}
	c := newTestClient(t, auth)
	c.get("/signin")

	for i := 0; i < 3; i++ {
		c.post("/signin", url.Values{"email": {"ada@example.com"}, "password": {"x"}})
	}
	rec := c.post("/signin", url.Values{"email": {"ada@example.com"}, "password": {"x"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("limited POST = %d, want 303", rec.Code)
	}
	if auth.signIns != 3 {
		t.Fatalf("backend calls = %d, want 3", auth.signIns)
	}
	if page := c.get("/signin"); !strings.Contains(page.Body.String(), "Too many attempts") {
		t.Fatalf("rate limit notice missing")
	}
}

func TestAuthRateLimitKeepsResetStep(t *testing.T) {
	auth := &fakeAuth{resetErr: &backend.APIError{Status: http.StatusBadRequest}}
	c := newTestClient(t, auth)

	c.post("/forgot-password", url.Values{"email": {"ada@example.com"}})
	for i := 0; i < 2; i++ {
		c.post("/forgot-password", url.Values{"token": {"t0k"}, "password": {"new"}})
	}

	rec := c.post("/forgot-password", url.Values{"token": {"t0k"}, "password": {"new"}})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("limited POST = %d, want 429", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="token"`) {
		t.Fatalf("limited POST left the reset step")
	}
	if !strings.Contains(body, "Too many attempts") {
		t.Fatalf("rate limit notice missing")
	}
	if !strings.Contains(body, `value="t0k"`) {
		t.Fatalf("token not echoed back")
	}
	if auth.forgots != 1 || auth.resets != 2 {
		t.Fatalf("backend calls forgot=%d reset=%d, want 1 and 2", auth.forgots, auth.resets)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("down") })

	tests := []struct {
		name        string
		db, backend Pinger
		wantCode    int
		wantBackend string
	}{
		{"healthy", ok, ok, http.StatusOK, "ok"},
		{"backend down", ok, down, http.StatusServiceUnavailable, "unreachable"},
		{"db down", down, ok, http.StatusServiceUnavailable, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(tt.db, tt.backend).RegisterHealth(r)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}

			var got struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if got.Checks["backend"] != tt.wantBackend {
				t.Errorf("backend check = %q, want %q", got.Checks["backend"], tt.wantBackend)
			}
		})
	}
}

func TestPageEffectsFirstNavigationWins(t *testing.T) {
	fx := &pageEffects{}
	fx.Navigate(domain.RouteChat)
	fx.Navigate(domain.RouteSignIn)
	if fx.route != domain.RouteChat {
		t.Fatalf("route = %q", fx.route)
	}
}
