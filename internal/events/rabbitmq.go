package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/example/docsync/internal/core"
)

const (
	RecordCreated = "record.created"
	RecordDeleted = "record.deleted"
)

// Event is the message published for every successful mutation.
type Event struct {
	Type       string         `json:"type"`
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// channel is the subset of *amqp.Channel used here.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Publisher sends mutation events to a durable RabbitMQ queue.
type Publisher struct {
	conn   *amqp.Connection
	ch     channel
	queue  string
	logger *zap.Logger
	now    func() time.Time

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

var _ core.MutationHook = (*Publisher)(nil)

// Config contains options for connecting a Publisher.
type Config struct {
	URL   string
	Queue string
}

// NewPublisher dials RabbitMQ, opens a channel and declares the queue.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	p, err := newPublisher(ch, cfg.Queue, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	p.logger.Info("Successfully connected to RabbitMQ", zap.String("queue", p.queue))
	return p, nil
}

func newPublisher(ch channel, queue string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	q, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &Publisher{
		ch:     ch,
		queue:  q.Name,
		logger: logger.Named("events"),
		now:    time.Now,
	}, nil
}

func (p *Publisher) RecordCreated(ctx context.Context, collection, id string, fields map[string]any) error {
	return p.Publish(ctx, Event{Type: RecordCreated, Collection: collection, ID: id, Fields: fields})
}

func (p *Publisher) RecordDeleted(ctx context.Context, collection, id string) error {
	return p.Publish(ctx, Event{Type: RecordDeleted, Collection: collection, ID: id})
}

// Publish sends ev as a persistent JSON message. OccurredAt defaults to now.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}
	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	}

	p.mu.Lock()
	err = p.ch.Publish(
		"",      // exchange
		p.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		msg,
	)
	p.mu.Unlock()
	if err != nil {
		p.logger.Error("Failed to publish event", zap.String("type", ev.Type), zap.String("id", ev.ID), zap.Error(err))
		return err
	}
	p.logger.Debug("Published event", zap.String("type", ev.Type), zap.String("collection", ev.Collection), zap.String("id", ev.ID))
	return nil
}

// Consume delivers events from the queue to handler until ctx is done or
// the delivery channel closes. Undecodable messages are logged and skipped.
func (p *Publisher) Consume(ctx context.Context, handler func(Event)) error {
	msgs, err := p.ch.Consume(
		p.queue, // queue
		"",      // consumer
		true,    // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer for queue %s: %w", p.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev Event
			if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(d.Body, &ev); err != nil {
				p.logger.Warn("Skipping undecodable message", zap.String("messageId", d.MessageId), zap.Error(err))
				continue
			}
			handler(ev)
		}
	}
}

func (p *Publisher) Close() error {
	var lastErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			lastErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
