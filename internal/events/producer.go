package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jtcarver/portfolio-ledger/internal/models"
)

// Event types published to the portfolio topic
const (
	EventTradeExecuted   = "TRADE_EXECUTED"
	EventPricesRefreshed = "PRICES_REFRESHED"
)

// PortfolioEvent is the wire shape for portfolio change notifications
type PortfolioEvent struct {
	EventType   string              `json:"event_type"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Requested   int                 `json:"requested,omitempty"`
	Updated     int                 `json:"updated,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

// Producer publishes portfolio events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishTransaction publishes a trade executed event keyed by symbol
func (p *Producer) PublishTransaction(ctx context.Context, t *models.Transaction) error {
	event := PortfolioEvent{
		EventType:   EventTradeExecuted,
		Transaction: t,
		Timestamp:   time.Now(),
	}
	return p.publish(ctx, t.Symbol, event)
}

// PublishPricesRefreshed publishes the outcome of a bulk price refresh
func (p *Producer) PublishPricesRefreshed(ctx context.Context, updated, requested int) error {
	event := PortfolioEvent{
		EventType: EventPricesRefreshed,
		Requested: requested,
		Updated:   updated,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, "refresh", event)
}

func (p *Producer) publish(ctx context.Context, key string, event PortfolioEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
