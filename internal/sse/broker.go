// Package sse streams ride decisions to operators watching one contact.
package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/ridedesk/autobook/internal/redis"
	"github.com/ridedesk/autobook/internal/util"
)

const (
	HeartbeatInterval = 30 * time.Second
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	Phone  string
	Events chan Event
	Done   chan struct{}
}

// Broker fans ride events out to stream subscribers. Events travel through
// redis pub/sub so a subscriber on one instance sees decisions made on any.
//
// Channels are keyed by contact phone, not by account. A phone can appear as
// driver on one ride and rider on another, so its channel carries every
// decision that names it in either role. The redis subscription for a phone
// lives while at least one local client watches it.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // phone -> set of clients
	subs    map[string]context.CancelFunc
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		subs:    make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(phone string) *Client {
	client := &Client{
		Phone:  phone,
		Events: make(chan Event, 100),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[phone] == nil {
		b.clients[phone] = make(map[*Client]bool)
		subCtx, cancel := context.WithCancel(b.ctx)
		b.subs[phone] = cancel
		go b.subscribeToRedis(subCtx, phone)
	}
	b.clients[phone][client] = true
	clientCount := len(b.clients[phone])
	b.mu.Unlock()

	log.Info().
		Str("phone", util.MaskPhone(phone)).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.Phone]; ok {
		if _, present := clients[client]; !present {
			return
		}
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.Phone)
			if cancel, ok := b.subs[client.Phone]; ok {
				cancel()
				delete(b.subs, client.Phone)
			}
		}

		log.Info().
			Str("phone", util.MaskPhone(client.Phone)).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, phone string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.RideEventChannel(phone)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, phone string) {
	channel := redisclient.RideEventChannel(phone)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("phone", util.MaskPhone(phone)).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(phone, event)
		}
	}
}

func (b *Broker) broadcast(phone string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients[phone] {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("phone", util.MaskPhone(phone)).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.subs = make(map[string]context.CancelFunc)
}

func (b *Broker) ClientCount(phone string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[phone])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
