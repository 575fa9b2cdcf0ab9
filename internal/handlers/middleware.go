package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shelfwise/apiserver/internal/services"
)

// RequestLogger attaches a request-scoped zerolog logger to the context and
// writes one access log line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := log.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Logger()
		ctx := logger.WithContext(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := zerolog.Ctx(ctx).Info()
		if status >= http.StatusInternalServerError {
			event = zerolog.Ctx(ctx).Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("latency", time.Since(start)).
			Str("ip", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// RequireAdmin rejects callers whose account does not hold the admin role.
// It must run after RequireAuth.
func RequireAdmin(userService *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := userIDFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusForbidden, "unauthenticated", "missing or invalid credentials")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if services.KindOf(err) == services.KindNotFound {
					writeServiceError(w, r, services.ErrNotAdmin)
					return
				}
				writeServiceError(w, r, err)
				return
			}

			if !user.IsAdmin() {
				writeServiceError(w, r, services.ErrNotAdmin)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
