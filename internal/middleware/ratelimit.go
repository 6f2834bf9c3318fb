package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ridedesk/autobook/internal/audit"
	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/service"
	"github.com/ridedesk/autobook/internal/util"
)

// KeyFunc names the bucket a request counts against. An empty key skips
// limiting.
type KeyFunc func(r *http.Request) string

func ByClientIP(r *http.Request) string {
	return audit.ClientIP(r)
}

// ByFormContact buckets Twilio webhooks by sender address.
func ByFormContact(r *http.Request) string {
	return util.StripChannelPrefix(r.FormValue("From"))
}

type RateLimitMiddleware struct {
	limiter *service.RateLimiter
	limit   int
	window  time.Duration
	prefix  string
	key     KeyFunc
}

func NewRateLimitMiddleware(limiter *service.RateLimiter, limit int, window time.Duration, prefix string, key KeyFunc) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		prefix:  prefix,
		key:     key,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := m.key(r)
		if id == "" || m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		res := m.limiter.CheckLimit(r.Context(), fmt.Sprintf("%s:%s", m.prefix, id), m.limit, m.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			secondsLeft := int(time.Until(res.ResetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secondsLeft))
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"bucket": m.prefix},
			})
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
