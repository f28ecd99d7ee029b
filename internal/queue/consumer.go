package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const maxBackoff = 30 * time.Second

// ErrBadPayload marks a message that can never be handled.
var ErrBadPayload = errors.New("bad contact event payload")

// StartContactConsumer connects to RabbitMQ, declares the contact.submitted
// queue and hands every message to h.  It runs a reconnect loop and only
// returns once ctx is cancelled.  A payload that fails to decode is dropped.
// A handler failure is requeued once; the redelivery is dropped if it
// fails again, so one poisoned message cannot spin the loop.
func StartContactConsumer(ctx context.Context, url string, h Handler) error {
	backoff := time.Second
	for {
		conn, err := dial(ctx, url)
		if err != nil {
			slog.Warn("contact-consumer: failed to dial broker", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("contact-consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		slog.Warn("contact-consumer: set QoS failed", "error", err)
	}
	if _, err := declareContactQueue(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ContactSubmittedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleDelivery(ctx, d.Body, h); err != nil {
				retry := shouldRequeue(err, d.Redelivered)
				slog.Error("contact-consumer: handle message failed", "error", err, "requeue", retry)
				_ = d.Nack(false, retry)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleDelivery decodes one message body and passes it to h.
func HandleDelivery(ctx context.Context, body []byte, h Handler) error {
	var ev ContactSubmittedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if ev.ContactID == "" {
		return fmt.Errorf("%w: missing contact_id", ErrBadPayload)
	}
	return h.HandleContactSubmitted(ctx, ev)
}

// shouldRequeue gives a failed handler one more delivery.  Undecodable
// payloads are never retried.
func shouldRequeue(err error, redelivered bool) bool {
	return !errors.Is(err, ErrBadPayload) && !redelivered
}
