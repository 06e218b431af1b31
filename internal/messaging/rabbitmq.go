package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func connectToRabbitMQ(url string, attempts int, delay time.Duration) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			slog.Info("connected to rabbitmq")
			return conn, nil
		}
		slog.Warn("failed to connect to rabbitmq", "attempt", i+1, "max_attempts", attempts, "error", err)
		if i+1 < attempts {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", attempts, err)
}

// RabbitMQPublisher publishes persistent JSON messages to a durable queue on
// the default exchange. A batch run publishes at most once, so the channel is
// not re-established after it closes.
type RabbitMQPublisher struct {
	connLock   sync.Mutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      string
	destructor sync.Once
}

var _ Publisher = (*RabbitMQPublisher)(nil)

func NewRabbitMQPublisher(rabbitMQURL, queue string) (*RabbitMQPublisher, error) {
	if queue == "" {
		queue = PredictionsReadyQueue
	}

	conn, err := connectToRabbitMQ(rabbitMQURL, MaxConnectRetry, RetryDelay)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare rabbitmq queue %s: %w", queue, err)
	}

	slog.Info("rabbitmq channel opened and queue declared", "queue", queue)

	return &RabbitMQPublisher{conn: conn, channel: channel, queue: queue}, nil
}

func (p *RabbitMQPublisher) publish(ctx context.Context, payload any) error {
	p.connLock.Lock()
	defer p.connLock.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		return fmt.Errorf("rabbitmq channel is closed")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", p.queue, err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // exchange (default)
		p.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		slog.Error("failed to publish message", "queue", p.queue, "error", err)
		return fmt.Errorf("failed to publish %s: %w", p.queue, err)
	}

	return nil
}

func (p *RabbitMQPublisher) PublishPredictionsReady(ctx context.Context, payload PredictionsReadyPayload) error {
	return p.publish(ctx, payload)
}

func (p *RabbitMQPublisher) Close() {
	p.destructor.Do(func() {
		if err := p.conn.Close(); err != nil {
			slog.Error("error closing rabbitmq connection", "error", err)
		}
	})
}
