package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ridedesk/autobook/internal/audit"
	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/util"
)

const twilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignatureMiddleware checks that a form-encoded webhook was signed
// with the account auth token.
type TwilioSignatureMiddleware struct {
	authToken string
	baseURL   string
}

func NewTwilioSignatureMiddleware(authToken, publicBaseURL string) *TwilioSignatureMiddleware {
	return &TwilioSignatureMiddleware{
		authToken: authToken,
		baseURL:   strings.TrimRight(publicBaseURL, "/"),
	}
}

func (m *TwilioSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authToken == "" || m.baseURL == "" {
			log.Warn().Msg("twilio signature verification bypassed: TWILIO_AUTH_TOKEN or PUBLIC_BASE_URL is not configured")
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get(twilioSignatureHeader)
		if signature == "" {
			log.Warn().Msg("twilio signature middleware: missing signature header")
			m.reject(w, r, "missing")
			return
		}

		if err := r.ParseForm(); err != nil {
			log.Warn().Err(err).Msg("twilio signature middleware: failed to parse form")
			writeError(w, apperrors.ValidationError("Invalid webhook data"))
			return
		}

		fullURL := m.baseURL + r.URL.RequestURI()
		computed := util.HmacSHA1Base64(m.authToken, util.TwilioSignaturePayload(fullURL, r.PostForm))
		if !util.ConstantTimeEqual(computed, signature) {
			log.Warn().Str("url", fullURL).Msg("twilio signature middleware: invalid signature")
			m.reject(w, r, "mismatch")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *TwilioSignatureMiddleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSignatureFailure,
		Details: map[string]interface{}{"reason": reason},
	})
	writeError(w, apperrors.InvalidSignature())
}
