package controller

import (
	"context"
	"net/http"

	"github.com/ashureev/authchat/internal/domain"
	"github.com/ashureev/authchat/internal/validate"
)

// SignIn controls the sign-in view.
type SignIn struct {
	formState
	backend AuthBackend
	jar     http.CookieJar
}

// NewSignIn creates a sign-in controller bound to a session jar.
func NewSignIn(b AuthBackend, jar http.CookieJar) *SignIn {
	return &SignIn{backend: b, jar: jar}
}

// Submit validates form and signs in. On success the view navigates to the
// chat exactly once.
func (c *SignIn) Submit(ctx context.Context, form domain.Form, fx Effects) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	in, issues := validate.SignIn(form)
	if len(issues) > 0 {
		return c.invalid(issues)
	}

	if err := c.backend.SignIn(ctx, c.jar, in); err != nil {
		return c.fail(ctx, err, fx, MsgInvalidCredentials, domain.FieldEmail, domain.FieldPassword)
	}
	fx.Notify(domain.Success(MsgSignedIn))
	fx.Navigate(domain.RouteChat)
	return nil
}

// SignUp controls the sign-up view.
type SignUp struct {
	formState
	backend AuthBackend
	jar     http.CookieJar
}

// NewSignUp creates a sign-up controller bound to a session jar.
func NewSignUp(b AuthBackend, jar http.CookieJar) *SignUp {
	return &SignUp{backend: b, jar: jar}
}

// Submit validates form and creates the account, then navigates to sign-in.
func (c *SignUp) Submit(ctx context.Context, form domain.Form, fx Effects) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	in, issues := validate.SignUp(form)
	if len(issues) > 0 {
		return c.invalid(issues)
	}

	if err := c.backend.SignUp(ctx, c.jar, in); err != nil {
		return c.fail(ctx, err, fx, MsgGeneric, domain.FieldName, domain.FieldEmail, domain.FieldPassword)
	}
	fx.Notify(domain.Success(MsgAccountCreated))
	fx.Navigate(domain.RouteSignIn)
	return nil
}
