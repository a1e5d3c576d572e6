package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "events"

	RoutingImportCompleted = "invoice.import.completed"
)

// Publisher is satisfied by Producer and by NopPublisher when no broker is configured.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close()
}

type Producer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewProducer(url string) (*Producer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Producer{conn: conn, channel: ch}, nil
}

func (p *Producer) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *Producer) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close()                                     {}

// ImportCompletedEvent is published after every finished import run.
type ImportCompletedEvent struct {
	JobID      string    `json:"job_id"`
	UserID     string    `json:"user_id"`
	HistoryID  string    `json:"history_id,omitempty"`
	NewCount   int       `json:"new_count"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	ZipFile    string    `json:"zip_file,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
