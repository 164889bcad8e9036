package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/mardix/voodoo-doll-auth/core/logger"
	"github.com/mardix/voodoo-doll-auth/core/sessiontransport"
)

type scopeKey struct{}

// SessionConfig configures the session middleware.
type SessionConfig struct {
	// Transport hands out the per-request session scope.
	Transport *sessiontransport.Cookie

	// Logger for structured logging (default: discard).
	Logger *slog.Logger

	// RequireAuth rejects requests without an active session.
	RequireAuth bool

	// ErrorHandler customizes the rejection response.
	// Default: 401 for missing auth, 500 for storage failures.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// Session creates middleware that attaches a session scope to every
// request's context. Handlers retrieve it with ScopeFrom; resolution is
// lazy and memoized inside the scope, so requests that never look at the
// session cost nothing.
func Session(transport *sessiontransport.Cookie) func(http.Handler) http.Handler {
	return SessionWithConfig(SessionConfig{Transport: transport})
}

// SessionWithConfig creates session middleware with custom configuration.
func SessionWithConfig(cfg SessionConfig) func(http.Handler) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	errorHandler := cfg.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := cfg.Transport.Scope(w, r)

			if cfg.RequireAuth {
				sess, err := scope.Resolve()
				if err != nil {
					log.ErrorContext(r.Context(), "session resolution failed",
						logger.Component("middleware.session"), logger.Error(err))
					errorHandler(w, r, err)
					return
				}
				if sess == nil {
					errorHandler(w, r, nil)
					return
				}
			}

			ctx := context.WithValue(r.Context(), scopeKey{}, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ScopeFrom extracts the session scope attached by the middleware.
func ScopeFrom(ctx context.Context) (*sessiontransport.Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*sessiontransport.Scope)
	return scope, ok
}
