// Package notify delivers admin notifications by e-mail.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string
	From    string // defaults to the sender's configured address
	Subject string
	HTML    string
	ReplyTo string
}

// Sender sends one e-mail and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (string, error)
}

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender with the given API key and default from address.
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send sends a single email via Resend.
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (string, error) {
	from := req.From
	if from == "" {
		from = s.from
	}
	params := &resend.SendEmailRequest{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
	}
	if req.ReplyTo != "" {
		params.ReplyTo = req.ReplyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "to", req.To, "subject", req.Subject)
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	slog.Info("resend_sent", "message_id", sent.Id, "to", req.To, "subject", req.Subject)
	return sent.Id, nil
}

// NoopSender logs sends but does not deliver anything.  It is used when no
// Resend API key is configured.
type NoopSender struct{}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the email.
func (s *NoopSender) Send(_ context.Context, req SendRequest) (string, error) {
	slog.Info("noop_email_send", "to", req.To, "subject", req.Subject)
	return fmt.Sprintf("noop-%d", time.Now().UnixNano()), nil
}
