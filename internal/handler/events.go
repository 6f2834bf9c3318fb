package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/sse"
	"github.com/ridedesk/autobook/internal/util"
)

// Subscriber is the part of the stream broker the events endpoint needs.
type Subscriber interface {
	Subscribe(phone string) *sse.Client
	Unsubscribe(client *sse.Client)
}

// EventsHandler streams ride decisions involving one contact as
// server-sent events.
type EventsHandler struct {
	broker    Subscriber
	heartbeat time.Duration
}

func NewEventsHandler(broker Subscriber) *EventsHandler {
	return &EventsHandler{
		broker:    broker,
		heartbeat: sse.HeartbeatInterval,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("contact"))
	if !util.IsValidPhone(phone) {
		writeError(w, apperrors.InvalidInput("contact", "expected an E.164 phone number"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(phone)
	defer h.broker.Unsubscribe(client)

	masked := util.MaskPhone(phone)
	log.Info().Str("phone", masked).Msg("sse connection established")

	if err := h.sendEvent(w, flusher, "connected", map[string]any{"contact": masked}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("phone", masked).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("phone", masked).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("phone", masked).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
