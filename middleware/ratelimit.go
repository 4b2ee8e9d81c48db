package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	authgate "github.com/authgate/authgate"
)

// KeyFunc derives the client key a request is throttled by.
type KeyFunc func(r *http.Request) string

// ClientIPKey keys requests by remote IP, honoring X-Forwarded-For when
// present.
func ClientIPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit gates every request through the service's rate governor.
// Limit and Remaining headers are set on every response, including
// rejections. A governor backend outage rejects the request (fail
// closed) with 503.
func RateLimit(service *authgate.Service, routeKey string, window time.Duration, max int, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIPKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			res, err := service.Gate(r.Context(), routeKey, keyFn(r), window, max)
			if err != nil {
				if errors.Is(err, authgate.ErrRateLimited) {
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
					w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter/time.Second)))
					http.Error(w, "too many requests", http.StatusTooManyRequests)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
