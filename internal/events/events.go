// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderEdited        = "order.edited"
	TypeOrderCancelled     = "order.cancelled"
)

type Event struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status,omitempty"`
	Total       string    `json:"total,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher sends events downstream. Publish errors never roll back the
// write that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Publish runs on the request path: each event is flushed as its own batch.
const (
	batchTimeout = 10 * time.Millisecond
	writeTimeout = 5 * time.Second
)

// Kafka writes events as JSON keyed by order ID, so one order's events
// stay on one partition.
type Kafka struct {
	writer *kafka.Writer
}

// NewPublisher returns a Kafka publisher for brokersCSV, or Nop when no
// brokers are configured.
func NewPublisher(brokersCSV, topic string) Publisher {
	brokers := splitBrokers(brokersCSV)
	if len(brokers) == 0 {
		return Nop{}
	}
	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              1,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}}
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderID),
		Value: data,
		Time:  e.OccurredAt.UTC(),
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func splitBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
