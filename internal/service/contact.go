package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/guesthairspa/salon/internal/model"
	"github.com/guesthairspa/salon/internal/queue"
	"github.com/guesthairspa/salon/internal/repository"
)

// Length limits for the contact form.
const (
	MaxNomLen       = 200
	MaxEmailLen     = 254
	MaxTelephoneLen = 50
	MaxMessageLen   = 5000
)

// Publisher announces stored contact submissions.
type Publisher interface {
	PublishContactSubmitted(ctx context.Context, ev queue.ContactSubmittedEvent) error
}

// ContactInput is the public contact form.
type ContactInput struct {
	Nom       string
	Email     string
	Telephone string
	Message   string
}

// ContactService stores contact submissions and serves the moderation list.
type ContactService struct {
	repo      *repository.ContactRepo
	publisher Publisher
}

// NewContactService wires the repository and an optional publisher.
func NewContactService(repo *repository.ContactRepo, publisher Publisher) *ContactService {
	return &ContactService{repo: repo, publisher: publisher}
}

// Submit validates and stores a submission with read=false.  Publishing
// the notification event is best effort.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*model.Contact, error) {
	var verrs ValidationErrors
	c := &model.Contact{
		Nom:       requiredText(&verrs, "nom", &in.Nom, 1, MaxNomLen),
		Email:     strings.TrimSpace(in.Email),
		Telephone: plainText(in.Telephone),
		Message:   requiredText(&verrs, "message", &in.Message, 1, MaxMessageLen),
	}
	switch {
	case c.Email == "":
		verrs.add("email", MsgRequired)
	case len(c.Email) > MaxEmailLen:
		verrs.add("email", MsgTooLong)
	default:
		if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
			verrs.add("email", MsgInvalidMail)
		}
	}
	if utf8.RuneCountInString(c.Telephone) > MaxTelephoneLen {
		verrs.add("telephone", MsgTooLong)
	}
	if err := verrs.err(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		ev := queue.ContactSubmittedEvent{
			ContactID:   c.ID,
			Nom:         c.Nom,
			Email:       c.Email,
			Telephone:   c.Telephone,
			Message:     c.Message,
			SubmittedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := s.publisher.PublishContactSubmitted(ctx, ev); err != nil {
			slog.Warn("publish contact.submitted failed", "error", err, "contact_id", c.ID)
		}
	}
	return c, nil
}

// List returns all submissions, newest first.
func (s *ContactService) List(ctx context.Context) ([]*model.Contact, error) {
	return s.repo.List(ctx)
}

// MarkRead flags a submission as read.  Unknown ids are ignored.
func (s *ContactService) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id)
}

// Delete removes a submission.  Unknown ids are ignored.
func (s *ContactService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
