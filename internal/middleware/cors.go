package middleware

import (
	"net/http"
	"strings"
)

// CORS allows cross-origin calls from a single front-end origin. Credentials
// are never allowed. Any request header is accepted.
func CORS(allowedOrigin string, allowedMethods []string) Middleware {
	methods := strings.Join(allowedMethods, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			allowed := origin == allowedOrigin

			preflight := r.Method == http.MethodOptions &&
				r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				writeDetail(w, http.StatusBadRequest, "Disallowed CORS origin")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", methods)
			if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				w.Header().Set("Access-Control-Allow-Headers", requested)
			}
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusOK)
		})
	}
}
