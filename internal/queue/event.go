// Package queue defines message payloads exchanged over the message broker.
package queue

// ContactSubmittedQueue is the durable queue carrying ContactSubmittedEvent.
const ContactSubmittedQueue = "contact.submitted"

// ContactSubmittedEvent is published when a visitor sends the contact form.
// It contains enough information for the notifier to write the e-mail
// without querying the primary database.
type ContactSubmittedEvent struct {
	ContactID   string `json:"contact_id"`
	Nom         string `json:"nom"`
	Email       string `json:"email"`
	Telephone   string `json:"telephone"`
	Message     string `json:"message"`
	SubmittedAt string `json:"submitted_at"` // RFC 3339, UTC
}
