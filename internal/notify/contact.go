package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/guesthairspa/salon/internal/queue"
)

var contactTmpl = template.Must(template.New("contact").Parse(`<h2>Nouveau message de contact</h2>
<p><strong>Nom :</strong> {{.Nom}}</p>
<p><strong>Email :</strong> {{.Email}}</p>
{{if .Telephone}}<p><strong>Téléphone :</strong> {{.Telephone}}</p>
{{end}}<p><strong>Message :</strong></p>
<p style="white-space: pre-line">{{.Message}}</p>
<p><small>Reçu le {{.SubmittedAt}}</small></p>
`))

// ContactNotifier e-mails the salon whenever a contact form arrives.  It is
// the queue.Handler behind both the broker consumer and the inline publisher.
type ContactNotifier struct {
	sender Sender
	to     string
}

// NewContactNotifier returns a notifier writing to the given address.  An
// empty address disables delivery.
func NewContactNotifier(sender Sender, to string) *ContactNotifier {
	return &ContactNotifier{sender: sender, to: to}
}

// HandleContactSubmitted sends the "Nouveau message de contact" e-mail.
func (n *ContactNotifier) HandleContactSubmitted(ctx context.Context, ev queue.ContactSubmittedEvent) error {
	if n.to == "" {
		slog.Debug("contact notification skipped, no recipient", "contact_id", ev.ContactID)
		return nil
	}
	req, err := contactEmail(n.to, ev)
	if err != nil {
		return err
	}
	_, err = n.sender.Send(ctx, req)
	return err
}

func contactEmail(to string, ev queue.ContactSubmittedEvent) (SendRequest, error) {
	var buf bytes.Buffer
	if err := contactTmpl.Execute(&buf, ev); err != nil {
		return SendRequest{}, fmt.Errorf("render contact email: %w", err)
	}
	return SendRequest{
		To:      []string{to},
		Subject: "Nouveau message de contact - " + ev.Nom,
		HTML:    buf.String(),
		ReplyTo: ev.Email,
	}, nil
}
