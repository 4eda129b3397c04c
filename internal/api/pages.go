package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/authchat/internal/controller"
	"github.com/ashureev/authchat/internal/domain"
	"github.com/ashureev/authchat/internal/session"
	"github.com/ashureev/authchat/internal/validate"
	"github.com/ashureev/authchat/web"
	"github.com/go-chi/chi/v5"
)

// MsgTooManyAttempts is flashed when the auth rate limit trips.
const MsgTooManyAttempts = "Too many attempts. Please wait a moment and try again."

// PageHandler serves the auth views and the chat shell.
type PageHandler struct {
	renderer *web.Renderer
}

// NewPageHandler creates a page handler.
func NewPageHandler(renderer *web.Renderer) *PageHandler {
	return &PageHandler{renderer: renderer}
}

// RegisterRoutes registers the page routes. The routes expect
// session.Middleware upstream.
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/signin", h.ShowSignIn)
	r.Post("/signin", h.SubmitSignIn)
	r.Get("/signup", h.ShowSignUp)
	r.Post("/signup", h.SubmitSignUp)
	r.Get("/forgot-password", h.ShowForgot)
	r.Post("/forgot-password", h.SubmitForgot)
	r.Get("/chat", h.ShowChat)
}

// Root sends visitors to the sign-in view.
func (h *PageHandler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, string(domain.RouteSignIn), http.StatusFound)
}

// ShowSignIn renders the sign-in form.
func (h *PageHandler) ShowSignIn(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	h.renderer.Render(w, http.StatusOK, web.PageSignIn, web.PageData{
		Title:   "Sign in",
		Notices: sess.TakeNotices(),
	})
}

// SubmitSignIn runs the sign-in controller.
func (h *PageHandler) SubmitSignIn(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	form := readForm(r)
	fx := &pageEffects{sess: sess}

	err := sess.SignIn.Submit(r.Context(), form, fx)
	if fx.redirect(w, r) {
		return
	}
	h.renderer.Render(w, statusFor(err), web.PageSignIn, web.PageData{
		Title:   "Sign in",
		Notices: sess.TakeNotices(),
		Values:  values(form, domain.FieldEmail),
		Errors:  sess.SignIn.Errors(),
	})
}

// ShowSignUp renders the sign-up form.
func (h *PageHandler) ShowSignUp(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	h.renderer.Render(w, http.StatusOK, web.PageSignUp, web.PageData{
		Title:   "Create account",
		Notices: sess.TakeNotices(),
	})
}

// SubmitSignUp runs the sign-up controller.
func (h *PageHandler) SubmitSignUp(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	form := readForm(r)
	fx := &pageEffects{sess: sess}

	err := sess.SignUp.Submit(r.Context(), form, fx)
	if fx.redirect(w, r) {
		return
	}
	h.renderer.Render(w, statusFor(err), web.PageSignUp, web.PageData{
		Title:   "Create account",
		Notices: sess.TakeNotices(),
		Values:  values(form, domain.FieldName, domain.FieldEmail),
		Errors:  sess.SignUp.Errors(),
	})
}

// ShowForgot renders the forgot-password view. Loading the page starts the
// flow over at the request step.
func (h *PageHandler) ShowForgot(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	sess.Forgot.Restore(domain.StepRequest, "")
	h.renderer.Render(w, http.StatusOK, web.PageForgot, web.PageData{
		Title:   "Forgot password",
		Notices: sess.TakeNotices(),
		Step:    domain.StepRequest,
	})
}

// SubmitForgot runs the current step of the forgot-password controller.
func (h *PageHandler) SubmitForgot(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	form := readForm(r)
	fx := &pageEffects{sess: sess}

	err := sess.Forgot.Submit(r.Context(), form, fx)
	if fx.redirect(w, r) {
		return
	}
	h.renderForgot(w, statusFor(err), sess, form, err != nil)
}

// renderForgot renders the current step of the forgot-password view. The
// token is echoed only when the reset attempt did not go through.
func (h *PageHandler) renderForgot(w http.ResponseWriter, status int, sess *session.Session, form domain.Form, keepToken bool) {
	data := web.PageData{
		Title:   "Forgot password",
		Notices: sess.TakeNotices(),
		Errors:  sess.Forgot.Errors(),
		Step:    sess.Forgot.Step(),
		Email:   sess.Forgot.Email(),
	}
	if data.Step == domain.StepReset {
		data.Title = "Reset password"
		if keepToken {
			data.Values = values(form, domain.FieldToken)
		}
	} else {
		data.Values = values(form, domain.FieldEmail)
	}
	h.renderer.Render(w, status, web.PageForgot, data)
}

// ShowChat renders the chat shell. Devices without a backend credential are
// sent to sign in first.
func (h *PageHandler) ShowChat(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Jar.HasCredential() {
		http.Redirect(w, r, string(domain.RouteSignIn), http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, http.StatusOK, web.PageChat, web.PageData{
		Title:   "Chat",
		Notices: sess.TakeNotices(),
	})
}

// Limited answers an auth submission refused by the rate limiter. The
// forgot-password view is re-rendered in place, since loading it afresh
// restarts the flow at the request step.
func (h *PageHandler) Limited(w http.ResponseWriter, r *http.Request) {
	slog.Warn("Auth rate limit exceeded", "path", r.URL.Path)
	sess := session.FromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	sess.Flash(domain.Failure(MsgTooManyAttempts))
	if r.URL.Path == string(domain.RouteForgotPassword) {
		h.renderForgot(w, http.StatusTooManyRequests, sess, readForm(r), true)
		return
	}
	http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
}

// readForm extracts the known fields from a urlencoded body. Unknown keys
// are dropped.
func readForm(r *http.Request) domain.Form {
	form := domain.Form{}
	if err := r.ParseForm(); err != nil {
		slog.Debug("Failed to parse form", "error", err)
		return form
	}
	for _, f := range domain.Fields {
		if v, ok := r.PostForm[string(f)]; ok && len(v) > 0 {
			form[f] = v[0]
		}
	}
	return form
}

// values echoes the given fields back into a re-rendered form. Passwords
// are never echoed.
func values(form domain.Form, fields ...domain.Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[string(f)] = form.Value(f)
	}
	return out
}

func statusFor(err error) int {
	var issues validate.Issues
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &issues):
		return http.StatusUnprocessableEntity
	case errors.Is(err, controller.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}
