// Package events announces ride decisions to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ridedesk/autobook/internal/model"
	"github.com/ridedesk/autobook/internal/sse"
)

const TypeRideDecided = "ride_decided"

type RideDecided struct {
	RideID            string                 `json:"rideId"`
	DriverPhone       string                 `json:"driverPhone"`
	RiderPhone        string                 `json:"riderPhone"`
	Status            model.RideStatus       `json:"status"`
	RejectionReason   *model.RejectionReason `json:"rejectionReason,omitempty"`
	RequestedTime     time.Time              `json:"requestedTime"`
	EstimatedDuration int                    `json:"estimatedDuration"`
	CalendarEventID   *string                `json:"calendarEventId,omitempty"`
	ProcessedAt       time.Time              `json:"processedAt"`
}

func NewRideDecided(ride *model.Ride) RideDecided {
	return RideDecided{
		RideID:            ride.RideID,
		DriverPhone:       ride.DriverPhone,
		RiderPhone:        ride.RiderPhone,
		Status:            ride.Status,
		RejectionReason:   ride.RejectionReason,
		RequestedTime:     ride.RequestedTime,
		EstimatedDuration: ride.EstimatedDuration,
		CalendarEventID:   ride.CalendarEventID,
		ProcessedAt:       ride.ProcessedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event RideDecided) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes decisions to a topic keyed by ride id.
type Kafka struct {
	writer messageWriter
}

func NewKafka(brokers []string, topic string) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Kafka{writer: w}
}

func (k *Kafka) Publish(ctx context.Context, event RideDecided) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RideID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeRideDecided)},
		},
	})
}

func (k *Kafka) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

type brokerPublisher interface {
	Publish(ctx context.Context, phone string, event sse.Event) error
}

// Broker pushes decisions to live stream subscribers of both parties.
type Broker struct {
	broker brokerPublisher
}

func NewBroker(b brokerPublisher) *Broker {
	return &Broker{broker: b}
}

func (b *Broker) Publish(ctx context.Context, event RideDecided) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := sse.Event{Type: TypeRideDecided, Data: data}

	errs := []error{b.broker.Publish(ctx, event.RiderPhone, msg)}
	if event.DriverPhone != event.RiderPhone {
		errs = append(errs, b.broker.Publish(ctx, event.DriverPhone, msg))
	}
	return errors.Join(errs...)
}

// Multi publishes to every publisher, joining their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event RideDecided) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(ctx context.Context, event RideDecided) error { return nil }
