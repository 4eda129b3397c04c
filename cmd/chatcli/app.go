package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/authchat/internal/controller"
	"github.com/ashureev/authchat/internal/domain"
	"github.com/ashureev/authchat/internal/validate"
)

// signOutWait bounds how long the process lingers for the sign-out request
// before exiting.
const signOutWait = 5 * time.Second

var (
	errNotSignedIn = errors.New("not signed in, run `chatcli signin` first")
	// errReported marks a failure whose notice was already printed.
	errReported    = errors.New("submission failed")
)

// credentials is the local side of the backend session.
type credentials interface {
	HasCredential() bool
	Clear()
}

type jar interface {
	credentials
	http.CookieJar
}

type app struct {
	auth   controller.AuthBackend
	chat   controller.ChatBackend
	jar    jar
	prompt *prompter
	out    io.Writer
	logger *slog.Logger

	// startChat opens the chat view; replaced in tests.
	startChat func(ctx context.Context) error
}

func newApp(auth controller.AuthBackend, chat controller.ChatBackend, j jar, p *prompter, out io.Writer, logger *slog.Logger) *app {
	a := &app{auth: auth, chat: chat, jar: j, prompt: p, out: out, logger: logger}
	a.startChat = a.runChat
	return a
}

func (a *app) dispatch(ctx context.Context, cmd string) error {
	switch cmd {
	case "signin":
		return a.signIn(ctx)
	case "signup":
		return a.signUp(ctx)
	case "forgot":
		return a.forgot(ctx)
	case "chat":
		if !a.jar.HasCredential() {
			return errNotSignedIn
		}
		return a.startChat(ctx)
	case "signout":
		return a.signOut(ctx)
	default:
		fmt.Fprintf(a.out, "Unknown command %q\n", cmd)
		return errUsage
	}
}

// read prompts for each field in order. Passwords are read as secrets.
func (a *app) read(fields ...domain.Field) (domain.Form, error) {
	form := make(domain.Form, len(fields))
	for _, f := range fields {
		label := fieldLabel(f)
		var (
			v   string
			err error
		)
		if f == domain.FieldPassword {
			v, err = a.prompt.secret(label)
		} else {
			v, err = a.prompt.line(label)
		}
		if err != nil {
			return nil, err
		}
		form[f] = v
	}
	return form, nil
}

func fieldLabel(f domain.Field) string {
	switch f {
	case domain.FieldName:
		return "Name"
	case domain.FieldEmail:
		return "Email"
	case domain.FieldPassword:
		return "Password"
	case domain.FieldToken:
		return "Reset token"
	default:
		return string(f)
	}
}

type submitter interface {
	Submit(ctx context.Context, form domain.Form, fx controller.Effects) error
	Errors() domain.FieldErrors
}

// submit runs one attempt and reports field errors. It returns the route
// the view navigated to, if any.
func (a *app) submit(ctx context.Context, c submitter, form domain.Form) (domain.Route, error) {
	fx := &printer{out: a.out}
	err := c.Submit(ctx, form, fx)

	var issues validate.Issues
	if errors.As(err, &issues) {
		fmt.Fprintln(a.out, errorStyle.Render("Please fix the following:"))
	}
	printFieldErrors(a.out, c.Errors())
	if err != nil {
		a.logger.Debug("Submission failed", "error", err)
		return fx.route, errReported
	}
	return fx.route, nil
}

func (a *app) signIn(ctx context.Context) error {
	form, err := a.read(domain.FieldEmail, domain.FieldPassword)
	if err != nil {
		return err
	}
	route, err := a.submit(ctx, controller.NewSignIn(a.auth, a.jar), form)
	if route != domain.RouteChat {
		return err
	}
	return a.startChat(ctx)
}

func (a *app) signUp(ctx context.Context) error {
	form, err := a.read(domain.FieldName, domain.FieldEmail, domain.FieldPassword)
	if err != nil {
		return err
	}
	route, err := a.submit(ctx, controller.NewSignUp(a.auth, a.jar), form)
	if route == domain.RouteSignIn {
		fmt.Fprintln(a.out, "Run `chatcli signin` to continue.")
	}
	return err
}

func (a *app) forgot(ctx context.Context) error {
	c := controller.NewForgotPassword(a.auth, a.jar)

	form, err := a.read(domain.FieldEmail)
	if err != nil {
		return err
	}
	if _, err := a.submit(ctx, c, form); err != nil {
		return err
	}
	if c.Step() != domain.StepReset {
		return nil
	}

	form, err = a.read(domain.FieldToken, domain.FieldPassword)
	if err != nil {
		return err
	}
	route, err := a.submit(ctx, c, form)
	if route == domain.RouteSignIn {
		fmt.Fprintln(a.out, "Run `chatcli signin` with your new password.")
	}
	return err
}

func (a *app) signOut(ctx context.Context) error {
	chat := controller.NewChat(a.chat, a.jar, a.logger)
	chat.SignOut(ctx, &printer{out: a.out})
	a.finishSignOut(ctx, chat)
	return nil
}

// finishSignOut waits briefly for the fired sign-out request and forgets
// the local credentials whatever its outcome.
func (a *app) finishSignOut(ctx context.Context, chat *controller.Chat) {
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), signOutWait)
	defer cancel()
	chat.WaitSignOut(waitCtx)
	a.jar.Clear()
	fmt.Fprintln(a.out, "Signed out.")
}
