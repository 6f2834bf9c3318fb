package middleware

import (
	"net/http"

	apperrors "github.com/ridedesk/autobook/internal/errors"
)

// Ride requests and Twilio webhook forms are a few hundred bytes.
const DefaultMaxBodySize = 64 << 10

// BodyLimitMiddleware rejects declared oversize bodies up front and caps
// the rest while they are read.
type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.maxSize {
			writeError(w, apperrors.PayloadTooLarge(m.maxSize))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
