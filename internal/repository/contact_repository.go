package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/guesthairspa/salon/internal/model"
)

const contactColumns = "id, nom, email, telephone, message, `read`, created_at"

// ContactRepo persists contact form submissions.
type ContactRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewContactRepo constructs a ContactRepo using the wall clock.
func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db, now: time.Now}
}

// WithClock replaces the time source used for created_at.
func (r *ContactRepo) WithClock(now func() time.Time) *ContactRepo {
	r.now = now
	return r
}

func scanContact(s rowScanner) (*model.Contact, error) {
	var c model.Contact
	if err := s.Scan(&c.ID, &c.Nom, &c.Email, &c.Telephone, &c.Message, &c.Read, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// Create inserts a submission with read=false.
func (r *ContactRepo) Create(ctx context.Context, c *model.Contact) error {
	c.ID = uuid.NewString()
	c.Read = false
	c.CreatedAt = r.now().UTC().Truncate(time.Microsecond)
	const q = "INSERT INTO contacts (" + contactColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, q, c.ID, c.Nom, c.Email, c.Telephone, c.Message, c.Read, c.CreatedAt)
	return err
}

// List returns all submissions, newest first.
func (r *ContactRepo) List(ctx context.Context) ([]*model.Contact, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+contactColumns+" FROM contacts ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches one submission or ErrContactNotFound.
func (r *ContactRepo) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, "SELECT "+contactColumns+" FROM contacts WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return c, nil
}

// CountUnread returns the number of submissions not yet marked read.
func (r *ContactRepo) CountUnread(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts WHERE `read` = ?", false).Scan(&n)
	return n, err
}

// MarkRead flips the read flag to true.  There is no way back; an unknown id
// is a no-op.
func (r *ContactRepo) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE contacts SET `read` = ? WHERE id = ?", true, id)
	return err
}

// Delete removes a submission.  Deleting an unknown id is not an error.
func (r *ContactRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM contacts WHERE id = ?", id)
	return err
}
