package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/authchat/internal/validate"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func newJar(t *testing.T) http.CookieJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	return jar
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "  "}); err == nil {
		t.Fatalf("New() expected error for empty base URL")
	}
}

func TestSignInCredentialCarriedToChat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /signin", func(w http.ResponseWriter, r *http.Request) {
		var in validate.SignInInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		if in.Email != "ada@example.com" || in.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "opaque", Path: "/"})
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil || c.Value != "opaque" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"not signed in"}`))
			return
		}
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(ChatReply{Data: "echo: " + req.Message})
	})

	client := newTestClient(t, mux)
	jar := newJar(t)
	ctx := context.Background()

	if _, err := client.Chat(ctx, jar, "hello"); err == nil {
		t.Fatalf("Chat() before sign-in expected error")
	}

	if err := client.SignIn(ctx, jar, validate.SignInInput{Email: "ada@example.com", Password: "pw"}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	reply, err := client.Chat(ctx, jar, "hello")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply != "echo: hello" {
		t.Fatalf("Chat() = %q, want %q", reply, "echo: hello")
	}
}

func TestPostReturnsAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Email already registered","field":"email"}`))
	}))

	err := client.SignUp(context.Background(), newJar(t), validate.SignUpInput{Name: "a", Email: "a@b.io", Password: "x"})
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("SignUp() error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusConflict {
		t.Errorf("Status = %d, want 409", apiErr.Status)
	}
	if apiErr.Field != "email" {
		t.Errorf("Field = %q, want email", apiErr.Field)
	}
	if got := MessageOr(err, "fallback"); got != "Email already registered" {
		t.Errorf("MessageOr() = %q", got)
	}
}

func TestPostAPIErrorWithoutBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.Forgot(context.Background(), newJar(t), validate.ForgotInput{Email: "a@b.io"})
	if _, ok := AsAPIError(err); !ok {
		t.Fatalf("Forgot() error = %v, want *APIError", err)
	}
	if got := MessageOr(err, "fallback"); got != "fallback" {
		t.Errorf("MessageOr() = %q, want fallback", got)
	}
}

func TestPostMalformedResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))

	_, err := client.Chat(context.Background(), newJar(t), "hi")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("Chat() error = %v, want ErrMalformedResponse", err)
	}
}

func TestPostTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := New(Config{BaseURL: url})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = client.SignOut(context.Background(), newJar(t))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("SignOut() error = %v, want ErrTransport", err)
	}
	if err := client.Ping(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("Ping() error = %v, want ErrTransport", err)
	}
}

func TestPostCancelledContext(t *testing.T) {
	block := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, newJar(t), "hi")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Chat() error = %v, want context.Canceled", err)
	}
}

func TestSignOutSendsNoBody(t *testing.T) {
	var gotLen int64 = -1
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathSignOut {
			t.Errorf("path = %q, want %q", r.URL.Path, PathSignOut)
		}
		gotLen = r.ContentLength
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.SignOut(context.Background(), newJar(t)); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if gotLen != 0 {
		t.Fatalf("ContentLength = %d, want 0", gotLen)
	}
	if client.BaseURL() == "" {
		t.Fatalf("BaseURL() should be set")
	}
}
