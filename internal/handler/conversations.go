package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/model"
)

type ConversationAdmin interface {
	ListActive(ctx context.Context, limit, offset int) ([]model.Conversation, int, error)
	Reset(ctx context.Context, phone string) (bool, error)
}

type ConversationsHandler struct {
	conversations ConversationAdmin
}

func NewConversationsHandler(conversations ConversationAdmin) *ConversationsHandler {
	return &ConversationsHandler{conversations: conversations}
}

func (h *ConversationsHandler) Active(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r)

	convs, total, err := h.conversations.ListActive(r.Context(), page.Limit, page.Offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list active conversations")
		writeError(w, apperrors.Database(err))
		return
	}

	items := make([]map[string]any, 0, len(convs))
	for _, c := range convs {
		items = append(items, formatConversation(c))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"count":         len(items),
		"total":         total,
		"limit":         page.Limit,
		"offset":        page.Offset,
		"hasMore":       page.HasMore(total),
		"conversations": items,
	})
}

func (h *ConversationsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	phone := strings.TrimSpace(body.Phone)
	if phone == "" {
		writeError(w, apperrors.ValidationError("Phone number required"))
		return
	}

	closed, err := h.conversations.Reset(r.Context(), phone)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Conversation reset",
		"closed":  closed,
	})
}
