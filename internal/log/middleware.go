package log

import (
	"net/http"
)

// Middleware puts a request-scoped logger carrying the request id into the
// request context.
func Middleware(base *Logger, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if id := requestID(r); id != "" {
				l = base.With(FieldRequestID, id)
			}
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), l)))
		})
	}
}
