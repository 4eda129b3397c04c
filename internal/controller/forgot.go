package controller

import (
	"context"
	"net/http"

	"github.com/ashureev/authchat/internal/domain"
	"github.com/ashureev/authchat/internal/validate"
)

// ForgotPassword controls the two-step forgot/reset view. Step "request"
// collects an email; on success the same view moves to step "reset", which
// collects the emailed token and a new password.
type ForgotPassword struct {
	formState
	backend AuthBackend
	jar     http.CookieJar
	step    domain.Step
	email   string
}

// NewForgotPassword creates the controller in step "request".
func NewForgotPassword(b AuthBackend, jar http.CookieJar) *ForgotPassword {
	return &ForgotPassword{backend: b, jar: jar, step: domain.StepRequest}
}

// Restore resumes the view at step with the email entered earlier.
func (c *ForgotPassword) Restore(step domain.Step, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if step != domain.StepReset {
		step = domain.StepRequest
	}
	c.step = step
	c.email = email
}

// Step returns the current step.
func (c *ForgotPassword) Step() domain.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Email returns the email submitted in the request step.
func (c *ForgotPassword) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

// Submit runs the current step.
func (c *ForgotPassword) Submit(ctx context.Context, form domain.Form, fx Effects) error {
	if c.Step() == domain.StepReset {
		return c.reset(ctx, form, fx)
	}
	return c.request(ctx, form, fx)
}

func (c *ForgotPassword) request(ctx context.Context, form domain.Form, fx Effects) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	c.email = form.Value(domain.FieldEmail)
	c.mu.Unlock()

	in, issues := validate.Forgot(form)
	if len(issues) > 0 {
		return c.invalid(issues)
	}

	if err := c.backend.Forgot(ctx, c.jar, in); err != nil {
		return c.fail(ctx, err, fx, MsgGeneric, domain.FieldEmail)
	}
	fx.Notify(domain.Success(MsgResetSent))
	c.mu.Lock()
	c.step = domain.StepReset
	c.mu.Unlock()
	return nil
}

func (c *ForgotPassword) reset(ctx context.Context, form domain.Form, fx Effects) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	in, issues := validate.Reset(form)
	if len(issues) > 0 {
		return c.invalid(issues)
	}

	if err := c.backend.Reset(ctx, c.jar, in); err != nil {
		return c.fail(ctx, err, fx, MsgInvalidToken, domain.FieldToken, domain.FieldPassword)
	}
	fx.Notify(domain.Success(MsgPasswordReset))
	fx.Navigate(domain.RouteSignIn)
	return nil
}
