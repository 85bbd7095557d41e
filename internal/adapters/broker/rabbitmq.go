package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/rota/pkg/logger"
	"github.com/okian/rota/pkg/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes events to a topic exchange.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      logger.Logger
	mu       sync.Mutex
}

// NewRabbitMQPublisher dials url and declares the domain events exchange.
func NewRabbitMQPublisher(url string, l logger.Logger) (*RabbitMQPublisher, error) {
	if l == nil {
		l = logger.Nop()
	}
	l = l.Named("rabbitmq")

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	l.Info(context.Background(), "rabbitmq publisher connected", logger.String("exchange", ExchangeName))

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  ch,
		exchange: ExchangeName,
		log:      l,
	}, nil
}

// Publish sends payload to the exchange under routingKey.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		metrics.RecordPublish(routingKey, "error")
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	metrics.RecordPublish(routingKey, "ok")
	p.log.Debug(ctx, "message published",
		logger.String("routing_key", routingKey),
		logger.Int("size", len(payload)),
	)
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Warn(context.Background(), "error closing channel", logger.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return err
		}
	}

	p.log.Info(context.Background(), "rabbitmq publisher closed")
	return nil
}
