package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/ridedesk/autobook/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteText answers webhooks, which expect a plain body.
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError renders err with the status of its code. Errors that are not
// AppErrors become a generic internal error so causes never leak.
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	WriteJSON(w, StatusFromCode(appErr.Code), ErrorResponse{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeValidation:      http.StatusBadRequest,
	apperrors.ErrCodeInvalidInput:    http.StatusBadRequest,
	apperrors.ErrCodeMissingRequired: http.StatusBadRequest,

	apperrors.ErrCodeUnauthorized:     http.StatusUnauthorized,
	apperrors.ErrCodeInvalidToken:     http.StatusUnauthorized,
	apperrors.ErrCodeInvalidSignature: http.StatusForbidden,

	apperrors.ErrCodeNotFound:      http.StatusNotFound,
	apperrors.ErrCodeAlreadyExists: http.StatusConflict,
	apperrors.ErrCodeConflict:      http.StatusConflict,

	apperrors.ErrCodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
	apperrors.ErrCodeRateLimitExceeded: http.StatusTooManyRequests,

	apperrors.ErrCodeExternal: http.StatusBadGateway,
	apperrors.ErrCodeInternal: http.StatusInternalServerError,
	apperrors.ErrCodeDatabase: http.StatusInternalServerError,
}

// StatusFromCode maps an ErrorCode to its HTTP status, defaulting to 500.
func StatusFromCode(code apperrors.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
