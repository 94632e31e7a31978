package controllers

import (
	"net/http"

	"github.com/angelmondragon/shelfpos/api/responses"
	"github.com/angelmondragon/shelfpos/api/validators"
	"github.com/angelmondragon/shelfpos/internal/session"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

type unlockRequest struct {
	Password string `json:"password"`
}

type unlockResponse struct {
	Status session.Status `json:"status"`
	// FailedAttempts is how many wrong passwords were entered before this
	// successful unlock.
	FailedAttempts int `json:"failedAttempts"`
}

type passwordRequest struct {
	Current string `json:"current"`
	Next    string `json:"next" validate:"omitempty,min=4,max=64"`
}

func SessionStatus(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, m.Status())
	}
}

func LockSession(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.Lock(r.Context())
		responses.WriteSuccess(w, m.Status())
	}
}

func UnlockSession(m *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload unlockRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		failed, err := m.Unlock(r.Context(), payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, unlockResponse{Status: m.Status(), FailedAttempts: failed})
	}
}

// SetSessionPassword changes the lock password. An empty next removes it.
func SetSessionPassword(m *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload passwordRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := m.SetPassword(r.Context(), payload.Current, payload.Next); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, m.Status())
	}
}
