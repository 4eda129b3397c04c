package backend

import (
	"context"
	"net/http"

	"github.com/ashureev/authchat/internal/validate"
)

// ChatRequest is the /chat payload.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatReply is the /chat response body.
type ChatReply struct {
	Data string `json:"data"`
}

// SignIn posts credentials to /signin. The backend establishes the session
// credential through Set-Cookie into jar.
func (c *Client) SignIn(ctx context.Context, jar http.CookieJar, in validate.SignInInput) error {
	return c.Post(ctx, jar, PathSignIn, in, nil)
}

// SignUp posts a new account to /signup.
func (c *Client) SignUp(ctx context.Context, jar http.CookieJar, in validate.SignUpInput) error {
	return c.Post(ctx, jar, PathSignUp, in, nil)
}

// Forgot requests reset instructions for an email.
func (c *Client) Forgot(ctx context.Context, jar http.CookieJar, in validate.ForgotInput) error {
	return c.Post(ctx, jar, PathForgot, in, nil)
}

// Reset sets a new password using a reset token.
func (c *Client) Reset(ctx context.Context, jar http.CookieJar, in validate.ResetInput) error {
	return c.Post(ctx, jar, PathReset, in, nil)
}

// Chat sends one message and returns the reply text.
func (c *Client) Chat(ctx context.Context, jar http.CookieJar, message string) (string, error) {
	var reply ChatReply
	if err := c.Post(ctx, jar, PathChat, ChatRequest{Message: message}, &reply); err != nil {
		return "", err
	}
	return reply.Data, nil
}

// SignOut asks the backend to invalidate the session credential.
func (c *Client) SignOut(ctx context.Context, jar http.CookieJar) error {
	return c.Post(ctx, jar, PathSignOut, nil, nil)
}
