// Package repository contains data access logic separated from HTTP handlers.
// This file holds the promotions table: list ordered newest first, insert,
// partial update and delete by id.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guesthairspa/salon/internal/model"
)

const promotionColumns = "id, title, description, image, valid_until, created_at"

// PromotionRepo encapsulates all database queries related to promotions.
type PromotionRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPromotionRepo constructs a PromotionRepo using the wall clock.
func NewPromotionRepo(db *sql.DB) *PromotionRepo {
	return &PromotionRepo{db: db, now: time.Now}
}

// WithClock replaces the time source used for created_at.
func (r *PromotionRepo) WithClock(now func() time.Time) *PromotionRepo {
	r.now = now
	return r
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPromotion(s rowScanner) (*model.Promotion, error) {
	var (
		p          model.Promotion
		image      sql.NullString
		validUntil sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Description, &image, &validUntil, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Image = image.String
	if validUntil.Valid {
		d := dateOnly(validUntil.Time)
		p.ValidUntil = &d
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: dateOnly(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// List returns every promotion, newest first.  There is no pagination.
func (r *PromotionRepo) List(ctx context.Context) ([]*model.Promotion, error) {
	return r.query(ctx, "SELECT "+promotionColumns+" FROM promotions ORDER BY created_at DESC, id DESC")
}

// Latest returns at most n promotions, newest first.
func (r *PromotionRepo) Latest(ctx context.Context, n int) ([]*model.Promotion, error) {
	return r.query(ctx, "SELECT "+promotionColumns+" FROM promotions ORDER BY created_at DESC, id DESC LIMIT ?", n)
}

func (r *PromotionRepo) query(ctx context.Context, q string, args ...any) ([]*model.Promotion, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored promotions.
func (r *PromotionRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM promotions").Scan(&n)
	return n, err
}

// GetByID fetches one promotion or ErrPromotionNotFound.
func (r *PromotionRepo) GetByID(ctx context.Context, id string) (*model.Promotion, error) {
	p, err := scanPromotion(r.db.QueryRowContext(ctx, "SELECT "+promotionColumns+" FROM promotions WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPromotionNotFound
		}
		return nil, err
	}
	return p, nil
}

// Create inserts a promotion.  ID and CreatedAt are assigned here and written
// back into p.
func (r *PromotionRepo) Create(ctx context.Context, p *model.Promotion) error {
	p.ID = uuid.NewString()
	p.CreatedAt = r.now().UTC().Truncate(time.Microsecond)
	const q = "INSERT INTO promotions (" + promotionColumns + ") VALUES (?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, q, p.ID, p.Title, p.Description, nullString(p.Image), nullDate(p.ValidUntil), p.CreatedAt)
	return err
}

// Update applies a partial update and returns the row as stored afterwards.
// An unknown id yields ErrPromotionNotFound; no row is created.
func (r *PromotionRepo) Update(ctx context.Context, id string, patch model.PromotionPatch) (*model.Promotion, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}
	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Image != nil {
		sets = append(sets, "image = ?")
		args = append(args, nullString(*patch.Image))
	}
	if patch.ValidUntil != nil {
		sets = append(sets, "valid_until = ?")
		args = append(args, nullDate(*patch.ValidUntil))
	}
	args = append(args, id)

	q := "UPDATE promotions SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	// MySQL reports 0 affected rows when values are unchanged, so re-read
	// instead of trusting RowsAffected.
	return r.GetByID(ctx, id)
}

// Delete removes a promotion.  Deleting an unknown id is not an error.
func (r *PromotionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM promotions WHERE id = ?", id)
	return err
}
