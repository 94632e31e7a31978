package middleware

import (
	"net/http"

	"github.com/angelmondragon/shelfpos/api/responses"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

type sessionGate interface {
	Touch() bool
}

// RequireUnlocked rejects requests with LOCKED while the till session is
// locked. Every admitted request counts as activity.
func RequireUnlocked(gate sessionGate, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate != nil && !gate.Touch() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeLocked, "session is locked"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
