package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ridedesk/autobook/internal/config"
	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/httputil"
	"github.com/ridedesk/autobook/internal/util"
)

type MessageHandler interface {
	HandleMessage(ctx context.Context, phone, text string) (string, error)
}

type Notifier interface {
	Send(ctx context.Context, phone, message string) error
}

// WhatsAppHandler receives Twilio inbound message webhooks and answers
// through the outbound notifier.
type WhatsAppHandler struct {
	conversations MessageHandler
	notifier      Notifier
}

func NewWhatsAppHandler(conversations MessageHandler, notifier Notifier) *WhatsAppHandler {
	return &WhatsAppHandler{conversations: conversations, notifier: notifier}
}

func (h *WhatsAppHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body := strings.TrimSpace(r.FormValue("Body"))
	phone := util.StripChannelPrefix(strings.TrimSpace(r.FormValue("From")))
	if body == "" || phone == "" {
		writeError(w, apperrors.ValidationError("Invalid webhook data"))
		return
	}

	reply, err := h.conversations.HandleMessage(r.Context(), phone, body)
	if err != nil {
		log.Error().Err(err).Str("phone", util.MaskPhone(phone)).Msg("failed to process conversation message")
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), config.NotifyTimeout)
	defer cancel()
	if err := h.notifier.Send(ctx, phone, reply); err != nil {
		log.Error().Err(err).Str("phone", util.MaskPhone(phone)).Msg("failed to send conversation reply")
	}

	httputil.WriteText(w, http.StatusOK, "OK")
}
