// Package api provides the HTTP handlers of the front-end server.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/authchat/internal/domain"
	"github.com/ashureev/authchat/internal/session"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// pageEffects applies controller side effects to a page request: notices
// are flashed to the device session and navigation becomes a redirect once
// the controller returns.
type pageEffects struct {
	sess  *session.Session
	route domain.Route
}

func (e *pageEffects) Navigate(route domain.Route) {
	if e.route == "" {
		e.route = route
	}
}

func (e *pageEffects) Notify(n domain.Notice) {
	e.sess.Flash(n)
}

// redirect finishes the request with a 303 when the controller navigated.
func (e *pageEffects) redirect(w http.ResponseWriter, r *http.Request) bool {
	if e.route == "" {
		return false
	}
	http.Redirect(w, r, string(e.route), http.StatusSeeOther)
	return true
}
