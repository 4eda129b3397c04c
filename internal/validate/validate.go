// Package validate holds the per-form input schemas. Validation is purely
// local and never reaches the network.
package validate

import (
	"regexp"
	"strings"

	"github.com/ashureev/authchat/internal/domain"
)

const (
	MsgInvalidEmail     = "Invalid email address"
	MsgPasswordRequired = "Password is required"
	MsgNameRequired     = "Name is required"
	MsgTokenRequired    = "Reset token is required"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)

// Issue is a single failed rule.
type Issue struct {
	Field   domain.Field
	Message string
}

// Issues is the ordered list of failures from one validation pass.
type Issues []Issue

// Error implements error so Issues can travel through error returns.
func (is Issues) Error() string {
	parts := make([]string, 0, len(is))
	for _, i := range is {
		parts = append(parts, string(i.Field)+": "+i.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields converts the issue list into a field error map. The first message
// for a field wins.
func (is Issues) Fields() domain.FieldErrors {
	var out domain.FieldErrors
	for _, i := range is {
		if out.Get(i.Field) == "" {
			out.Set(i.Field, i.Message)
		}
	}
	return out
}

// SignInInput is a validated sign-in payload.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpInput is a validated sign-up payload.
type SignUpInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotInput is a validated reset-request payload.
type ForgotInput struct {
	Email string `json:"email"`
}

// ResetInput is a validated password-reset payload.
type ResetInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// SignIn validates the sign-in form.
func SignIn(form domain.Form) (SignInInput, Issues) {
	var issues Issues
	in := SignInInput{
		Email:    email(form, &issues),
		Password: password(form, &issues),
	}
	return in, issues
}

// SignUp validates the sign-up form.
func SignUp(form domain.Form) (SignUpInput, Issues) {
	var issues Issues
	in := SignUpInput{
		Name:     required(form, domain.FieldName, MsgNameRequired, &issues),
		Email:    email(form, &issues),
		Password: password(form, &issues),
	}
	return in, issues
}

// Forgot validates the reset-request form.
func Forgot(form domain.Form) (ForgotInput, Issues) {
	var issues Issues
	in := ForgotInput{Email: email(form, &issues)}
	return in, issues
}

// Reset validates the password-reset form.
func Reset(form domain.Form) (ResetInput, Issues) {
	var issues Issues
	in := ResetInput{
		Token:    required(form, domain.FieldToken, MsgTokenRequired, &issues),
		Password: password(form, &issues),
	}
	return in, issues
}

// IsEmail reports whether s has a standard email shape.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func email(form domain.Form, issues *Issues) string {
	v := strings.TrimSpace(form.Value(domain.FieldEmail))
	if !IsEmail(v) {
		*issues = append(*issues, Issue{Field: domain.FieldEmail, Message: MsgInvalidEmail})
	}
	return v
}

// Passwords are passed through untrimmed; only presence is enforced.
func password(form domain.Form, issues *Issues) string {
	v := form.Value(domain.FieldPassword)
	if v == "" {
		*issues = append(*issues, Issue{Field: domain.FieldPassword, Message: MsgPasswordRequired})
	}
	return v
}

func required(form domain.Form, f domain.Field, msg string, issues *Issues) string {
	v := strings.TrimSpace(form.Value(f))
	if v == "" {
		*issues = append(*issues, Issue{Field: f, Message: msg})
	}
	return v
}
