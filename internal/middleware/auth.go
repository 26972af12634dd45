package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-api/internal/auth"
)

// RequireSeller rejects requests that the authenticator does not accept.
// A nil authenticator lets every request through.
func RequireSeller(authenticator auth.Authenticator, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seller, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("seller authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				setChallenge(w, err)
				writeDetail(w, http.StatusUnauthorized, err.Error())
				return
			}

			logger.Debug("seller authenticated",
				zap.String("seller", seller.Name),
				zap.String("method", string(seller.Method)),
			)

			next.ServeHTTP(w, r.WithContext(auth.WithSeller(r.Context(), seller)))
		})
	}
}

func setChallenge(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Basic realm="listing"`)
	case errors.Is(err, auth.ErrInvalidAPIKey):
		w.Header().Set("WWW-Authenticate", "API-Key")
	case errors.Is(err, auth.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Basic realm="listing", API-Key`)
	}
}
