package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes contact events, either behind the broker or inline.
type Handler interface {
	HandleContactSubmitted(ctx context.Context, ev ContactSubmittedEvent) error
}

// AMQPPublisher publishes events to RabbitMQ.  Each publish opens its own
// connection so a broker outage never leaves a broken channel behind.
type AMQPPublisher struct {
	url string
}

// NewAMQPPublisher returns a publisher dialing url on every publish.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url}
}

// PublishContactSubmitted publishes ev to the contact.submitted queue.  Any
// error is logged and returned so the caller can choose to ignore it.
// Messages are marked as persistent.  Connecting honours ctx.
func (p *AMQPPublisher) PublishContactSubmitted(ctx context.Context, ev ContactSubmittedEvent) error {
	conn, err := dial(ctx, p.url)
	if err != nil {
		slog.Warn("rabbitmq: dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		slog.Warn("rabbitmq: channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := declareContactQueue(ch); err != nil {
		slog.Warn("rabbitmq: queue declare failed", "error", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                    // default exchange
		ContactSubmittedQueue, // routing key = queue name
		false,                 // mandatory
		false,                 // immediate
		pub,
	); err != nil {
		slog.Warn("rabbitmq: publish failed", "error", err)
		return err
	}
	return nil
}

// dialTimeout bounds the TCP connect and the AMQP handshake.
const dialTimeout = 3 * time.Second

// dial opens a broker connection that gives up at ctx's deadline or after
// dialTimeout, whichever comes first.  amqp.Dial alone waits up to 30s.
func dial(ctx context.Context, url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			deadline := time.Now().Add(dialTimeout)
			if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
				deadline = d
			}
			d := net.Dialer{Deadline: deadline}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// cleared by the library once the handshake completes
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
			return conn, nil
		},
	})
}

func declareContactQueue(ch *amqp.Channel) (amqp.Queue, error) {
	return ch.QueueDeclare(
		ContactSubmittedQueue, // name
		true,                  // durable
		false,                 // autoDelete
		false,                 // exclusive
		false,                 // noWait
		nil,                   // args
	)
}

// InlinePublisher hands events straight to a Handler.  It is used when no
// broker is configured so notifications still go out.
type InlinePublisher struct {
	handler Handler
}

// NewInlinePublisher wraps h.
func NewInlinePublisher(h Handler) *InlinePublisher {
	return &InlinePublisher{handler: h}
}

// PublishContactSubmitted runs the handler synchronously.
func (p *InlinePublisher) PublishContactSubmitted(ctx context.Context, ev ContactSubmittedEvent) error {
	return p.handler.HandleContactSubmitted(ctx, ev)
}
