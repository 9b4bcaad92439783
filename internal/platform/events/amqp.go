package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	log      *logger.Logger
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

// NewAMQPPublisher dials uri and declares a durable topic exchange. An empty uri yields a nop publisher.
func NewAMQPPublisher(uri string, baseLog *logger.Logger) (Publisher, error) {
	log := baseLog.With("service", "EventPublisher")
	if uri == "" {
		log.Warn("RABBITMQ_URI empty; event publishing disabled")
		return NewNopPublisher(), nil
	}
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{log: log, conn: conn, ch: ch, exchange: Exchange}, nil
}

func newAMQPPublisherWithChannel(ch amqpChannel, log *logger.Logger) *AMQPPublisher {
	return &AMQPPublisher{log: log, ch: ch, exchange: Exchange}
}

func (p *AMQPPublisher) PublishStakeResolved(ctx context.Context, ev StakeResolved) error {
	ev.EventType = RoutingStakeResolved
	return p.publish(ctx, RoutingStakeResolved, ev)
}

func (p *AMQPPublisher) PublishGradingFailed(ctx context.Context, ev GradingFailed) error {
	ev.EventType = RoutingGradingFailed
	return p.publish(ctx, RoutingGradingFailed, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, ev any) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	pubCtx, cancel := context.WithTimeout(ctx, defaultPublishDeadline)
	defer cancel()
	if err := p.ch.PublishWithContext(pubCtx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.log.Debug("event published", "routing_key", key)
	return nil
}

func (p *AMQPPublisher) Close() error {
	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
