// Package cors negotiates Cross-Origin Resource Sharing headers: given a
// configuration and the request's Origin header, it decides which headers to
// add, and short-circuits preflight OPTIONS requests.
package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Options configures CORS negotiation.
type Options struct {
	// AllowedOrigins lists the origins allowed to access the resource.
	// []string{"*"} allows any origin.
	AllowedOrigins []string
	// AllowedMethods lists the methods allowed on cross-origin requests.
	AllowedMethods []string
	// AllowedHeaders lists the request headers allowed on cross-origin
	// requests.
	AllowedHeaders []string
	// ExposeHeaders lists the response headers exposed to the client.
	ExposeHeaders []string
	// AllowCredentials permits cookies and HTTP authentication on
	// cross-origin requests. The allowed origin is always echoed (never
	// the wildcard) when set.
	AllowCredentials bool
	// MaxAge bounds how long preflight results may be cached.
	MaxAge time.Duration
}

// Middleware applies the CORS decision to every request. Requests without
// an Origin header pass through untouched.
func Middleware(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed, ok := opts.allowOrigin(origin)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Add("Vary", "Origin")
			if opts.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if len(opts.ExposeHeaders) > 0 {
				h.Set("Access-Control-Expose-Headers", strings.Join(opts.ExposeHeaders, ", "))
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", joinOrDefault(opts.AllowedMethods, "GET, POST, OPTIONS"))
				h.Set("Access-Control-Allow-Headers", joinOrDefault(opts.AllowedHeaders, "Content-Type"))
				if opts.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(int(opts.MaxAge.Seconds())))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for the given
// request origin, and whether the origin is allowed at all.
func (o Options) allowOrigin(origin string) (string, bool) {
	for _, allowed := range o.AllowedOrigins {
		if allowed == "*" {
			if o.AllowCredentials {
				return origin, true
			}
			return "*", true
		}
		if allowed == origin {
			return origin, true
		}
	}
	return "", false
}

func joinOrDefault(values []string, def string) string {
	if len(values) == 0 {
		return def
	}
	return strings.Join(values, ", ")
}
