// Package controller holds the page controllers: each one owns a single
// view's form state, runs validation, calls the backend and maps the result
// to UI state through injected Effects.
package controller

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/ashureev/authchat/internal/backend"
	"github.com/ashureev/authchat/internal/domain"
	"github.com/ashureev/authchat/internal/validate"
)

// ErrBusy is returned when a submission arrives while another one from the
// same view is still in flight.
var ErrBusy = errors.New("submission already in progress")

// User-visible notice texts.
const (
	MsgSignedIn           = "Signed in successfully!"
	MsgInvalidCredentials = "Invalid credentials"
	MsgAccountCreated     = "Account created successfully!"
	MsgGeneric            = "Something went wrong"
	MsgResetSent          = "Reset instructions sent to your email"
	MsgPasswordReset      = "Password reset successfully"
	MsgInvalidToken       = "Invalid token"
)

// Effects receives the side effects of a submission.
type Effects interface {
	Navigate(route domain.Route)
	Notify(notice domain.Notice)
}

// AuthBackend is the part of the backend client the auth views use.
type AuthBackend interface {
	SignIn(ctx context.Context, jar http.CookieJar, in validate.SignInInput) error
	SignUp(ctx context.Context, jar http.CookieJar, in validate.SignUpInput) error
	Forgot(ctx context.Context, jar http.CookieJar, in validate.ForgotInput) error
	Reset(ctx context.Context, jar http.CookieJar, in validate.ResetInput) error
}

// ChatBackend is the part of the backend client the chat view uses.
type ChatBackend interface {
	Chat(ctx context.Context, jar http.CookieJar, message string) (string, error)
	SignOut(ctx context.Context, jar http.CookieJar) error
}

// formState is the loading flag and field error map shared by auth views.
type formState struct {
	mu      sync.Mutex
	loading bool
	errors  domain.FieldErrors
}

// Loading reports whether a request is in flight.
func (s *formState) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Errors returns the field errors of the last attempt.
func (s *formState) Errors() domain.FieldErrors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}

// begin starts an attempt: prior errors are dropped, the loading flag is
// claimed and a second attempt while loading is refused. Callers must pair a
// successful begin with end.
func (s *formState) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return ErrBusy
	}
	s.errors = domain.FieldErrors{}
	s.loading = true
	return nil
}

func (s *formState) end() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *formState) invalid(issues validate.Issues) error {
	s.mu.Lock()
	s.errors = issues.Fields()
	s.mu.Unlock()
	return issues
}

// fail surfaces a request failure. Backend errors naming a field of the
// current form are also placed inline.
func (s *formState) fail(ctx context.Context, err error, fx Effects, fallback string, fields ...domain.Field) error {
	if ctx.Err() != nil {
		return err
	}
	apiErr, ok := backend.AsAPIError(err)
	if !ok {
		fx.Notify(domain.Failure(MsgGeneric))
		return err
	}

	msg := backend.MessageOr(err, fallback)
	fx.Notify(domain.Failure(msg))
	if f, known := domain.ParseField(apiErr.Field); known && containsField(fields, f) {
		s.mu.Lock()
		s.errors.Set(f, msg)
		s.mu.Unlock()
	}
	return err
}

func containsField(fields []domain.Field, f domain.Field) bool {
	for _, candidate := range fields {
		if candidate == f {
			return true
		}
	}
	return false
}
