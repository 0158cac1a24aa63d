package edgekit

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Recoverer converts handler panics into 500 responses instead of tearing
// down the connection, logging the panic value.
func Recoverer(logger zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.WithLevel(zerolog.PanicLevel).
						Interface("error", err).
						Str("path", r.URL.Path).
						Msg("Panic in handler")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
