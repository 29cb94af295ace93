package middleware

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth"
	"github.com/didip/tollbooth/limiter"
)

const rateLimitMessage = `{"error":"rate limit exceeded"}`

// RateLimit limits each client IP to rps requests per second.
// A non-positive rps disables limiting. The client IP is taken from
// RemoteAddr only, so forwarding headers count only once RealIP has
// rewritten RemoteAddr behind a trusted proxy.
func RateLimit(rps float64) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	lmt := tollbooth.NewLimiter(rps, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Minute,
	})
	lmt.SetIPLookups([]string{"RemoteAddr"})
	lmt.SetMessageContentType("application/json")
	lmt.SetMessage(rateLimitMessage)

	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	}
}
