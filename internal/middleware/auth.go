package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ridedesk/autobook/internal/audit"
	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/util"
)

// AdminAuthMiddleware guards the operator endpoints with one shared bearer
// token. Only its hash is kept in memory. Without a configured token every
// request is refused.
type AdminAuthMiddleware struct {
	tokenHash string
}

func NewAdminAuthMiddleware(token string) *AdminAuthMiddleware {
	m := &AdminAuthMiddleware{}
	if token != "" {
		m.tokenHash = util.HashToken(token)
	}
	return m
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.tokenHash == "" {
			log.Warn().Str("path", r.URL.Path).Msg("admin request refused: ADMIN_API_TOKEN is not configured")
			writeError(w, apperrors.Unauthorized("Admin API is not configured"))
			return
		}

		token := extractToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		if !util.ConstantTimeEqual(util.HashToken(token), m.tokenHash) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			writeError(w, apperrors.InvalidToken("Invalid token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken accepts a query token so EventSource clients, which cannot
// set headers, can authenticate.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
