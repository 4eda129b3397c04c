// Package session keeps one front-end session per device: the device's
// backend cookie jar, its auth view controllers and pending notices.
package session

import (
	"sync"

	"github.com/ashureev/authchat/internal/controller"
	"github.com/ashureev/authchat/internal/domain"
)

// Session is the state the front end holds on behalf of one device. The
// auth controllers live here so that a double submit from the same device
// is refused and the forgot-password step survives between requests.
type Session struct {
	DeviceID string
	Jar      *Jar

	SignIn *controller.SignIn
	SignUp *controller.SignUp
	Forgot *controller.ForgotPassword

	mu      sync.Mutex
	notices []domain.Notice
}

func newSession(deviceID string, jar *Jar, b controller.AuthBackend) *Session {
	return &Session{
		DeviceID: deviceID,
		Jar:      jar,
		SignIn:   controller.NewSignIn(b, jar),
		SignUp:   controller.NewSignUp(b, jar),
		Forgot:   controller.NewForgotPassword(b, jar),
	}
}

// Flash queues a notice for the next rendered view.
func (s *Session) Flash(n domain.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

// TakeNotices returns and clears the queued notices.
func (s *Session) TakeNotices() []domain.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}
