package middleware

import (
	"net/http"

	"github.com/ridedesk/autobook/internal/httputil"
)

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}
