package web

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"cdr.dev/slog"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/auth"
	"github.com/teamclock/teamclock/internal/models"
)

type requestIDKey struct{}

// requestID tags each request with an id, reusing a client-supplied
// X-Request-ID when it parses as a UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// accessLog logs one line per request. 5xx responses log at warn.
func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := h.clock.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Don't log successful health checks.
		if r.URL.Path == "/health" && ww.Status() == http.StatusOK {
			return
		}
		took := h.clock.Since(start)
		log := h.log.With(
			slog.F("path", r.URL.Path),
			slog.F("remote_addr", r.RemoteAddr),
			slog.F("request_id", requestIDFrom(r.Context())),
			slog.F("status_code", ww.Status()),
			slog.F("latency_ms", float64(took/time.Millisecond)),
		)
		if ww.Status() >= http.StatusInternalServerError {
			log.Warn(r.Context(), r.Method)
			return
		}
		log.Debug(r.Context(), r.Method)
	})
}

// recoverer turns a panicking handler into a 500.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.log.Error(r.Context(), "panic serving request",
					slog.F("path", r.URL.Path),
					slog.F("panic", rec),
					slog.F("stack", string(debug.Stack())))
				respondJSON(w, http.StatusInternalServerError, Response{Message: apperr.Message(nil)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token into a user stored on the context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.respondError(w, r, apperr.Unauthenticated("Could not validate credentials"))
			return
		}
		user, err := h.auth.Resolve(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// require gates a route group on a role predicate.
func (h *Handler) require(gate func(*models.User) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate(auth.UserFrom(r.Context())); err != nil {
				h.respondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func currentUser(r *http.Request) *models.User {
	return auth.UserFrom(r.Context())
}
