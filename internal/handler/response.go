package handler

import (
	"net/http"
	"time"

	"github.com/ridedesk/autobook/internal/httputil"
	"github.com/ridedesk/autobook/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func formatConversation(conv model.Conversation) map[string]any {
	return map[string]any{
		"phone":         conv.Phone,
		"step":          conv.Step,
		"rideData":      conv.RideData,
		"lastMessageAt": conv.LastMessageAt.Format(time.RFC3339),
	}
}
