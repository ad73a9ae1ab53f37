package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"gigflow/domain"
)

const routingPrefix = "user."

// RabbitMQ carries notifications over a topic exchange. Each envelope is
// routed by its recipient, so any number of API processes can consume the
// exchange and push to the websocket connections they hold.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zap.SugaredLogger

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

func NewRabbitMQ(cfg Config, log *zap.SugaredLogger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.NotifyExchange, // name
		"topic",            // kind
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.Infow("connected to RabbitMQ", "exchange", cfg.NotifyExchange)
	return &RabbitMQ{conn: conn, channel: ch, exchange: cfg.NotifyExchange, log: log}, nil
}

// Deliver implements domain.NotificationSink by publishing n to the exchange.
func (r *RabbitMQ) Deliver(ctx context.Context, n domain.Notification) error {
	body, err := encodeNotification(n)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel.PublishWithContext(
		ctx,
		r.exchange,
		routingKey(n.RecipientID),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Type:        string(n.Type),
			Timestamp:   n.Timestamp,
			Body:        body,
		},
	)
}

// ConsumeNotifications binds a private queue to every recipient key and
// forwards decoded envelopes to sink until the delivery channel closes.
func (r *RabbitMQ) ConsumeNotifications(ctx context.Context, sink domain.NotificationSink) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingPrefix+"#", r.exchange, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("register consumer: %w", err)
	}

	go func() {
		defer ch.Close()
		r.forward(ctx, msgs, sink)
	}()
	return nil
}

// forward hands decoded deliveries to sink until ctx ends or the broker
// closes msgs. After the latter this process gets no live notifications.
func (r *RabbitMQ) forward(ctx context.Context, msgs <-chan amqp.Delivery, sink domain.NotificationSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				r.log.Warnw("notification consumer stopped, broker closed the delivery channel",
					"exchange", r.exchange,
				)
				return
			}
			n, err := decodeNotification(d.Body)
			if err != nil {
				r.log.Warnw("invalid notification payload", "error", err)
				continue
			}
			if err := sink.Deliver(ctx, n); err != nil {
				r.log.Warnw("forward notification failed", "recipient_id", n.RecipientID, "error", err)
			}
		}
	}
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.channel.Close(); err != nil {
		r.log.Debugw("close channel", "error", err)
	}
	return r.conn.Close()
}

func routingKey(recipientID string) string {
	// Dots separate words in topic routing keys.
	return routingPrefix + strings.ReplaceAll(recipientID, ".", "_")
}

func encodeNotification(n domain.Notification) ([]byte, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return body, nil
}

// decodeNotification keeps Data as raw JSON so it is re-sent byte for byte.
func decodeNotification(body []byte) (domain.Notification, error) {
	var n domain.Notification
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &n); err != nil {
		return domain.Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Notification{}, fmt.Errorf("decode notification data: %w", err)
	}
	if n.RecipientID == "" {
		return domain.Notification{}, fmt.Errorf("decode notification: missing recipient")
	}
	n.Data = raw.Data
	return n, nil
}
