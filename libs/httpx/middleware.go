package httpx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Middleware func(http.Handler) http.Handler

func Chain(h http.Handler, m ...Middleware) http.Handler {
	// Apply in reverse so Chain(h, a, b) becomes a(b(h)).
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func WithTimeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

// WithFormat honours the _format query parameter. Only the listed formats
// are served; anything else is answered with 406.
func WithFormat(formats ...string) Middleware {
	allowed := map[string]struct{}{}
	for _, f := range formats {
		allowed[strings.ToLower(strings.TrimSpace(f))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("_format")))
			if format != "" {
				if _, ok := allowed[format]; !ok {
					http.Error(w, "unsupported _format "+format, http.StatusNotAcceptable)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithRecover turns handler panics into 500s instead of dropping the connection.
func WithRecover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("http handler panic",
						"request_id", RequestIDFromContext(r.Context()),
						"path", r.URL.Path,
						"panic", rec,
					)
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
