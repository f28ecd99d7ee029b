// Package service holds the business rules between HTTP handlers and the
// repositories: input validation, image upload and cache invalidation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/guesthairspa/salon/internal/model"
	"github.com/guesthairspa/salon/internal/repository"
	"github.com/guesthairspa/salon/internal/storage"
)

// Length limits for promotion fields.  MaxImageURLLen matches the image
// column.
const (
	MinPromotionTextLen = 2
	MaxTitleLen         = 200
	MaxDescriptionLen   = 5000
	MaxImageURLLen      = 1024
)

// CachePurger drops cached public responses after a promotion changes.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// PromotionInput carries the promotion form.  Nil fields were not sent.
type PromotionInput struct {
	Title       *string
	Description *string
	Image       *string // absolute URL of an already hosted picture
	ValidUntil  *string // YYYY-MM-DD
}

// PromotionService manages promotions and their pictures.
type PromotionService struct {
	repo   *repository.PromotionRepo
	images *imageUploader
	purger CachePurger
}

// NewPromotionService wires the repository and the picture bucket.  purger
// may be nil when response caching is off.
func NewPromotionService(repo *repository.PromotionRepo, bucket storage.Bucket, maxImageBytes int64, purger CachePurger) *PromotionService {
	return &PromotionService{
		repo:   repo,
		images: &imageUploader{bucket: bucket, maxBytes: maxImageBytes, now: time.Now},
		purger: purger,
	}
}

// WithClock replaces the time source used for image names.
func (s *PromotionService) WithClock(now func() time.Time) *PromotionService {
	s.images.now = now
	return s
}

// List returns every promotion, newest first.
func (s *PromotionService) List(ctx context.Context) ([]*model.Promotion, error) {
	return s.repo.List(ctx)
}

// Latest returns the n newest promotions.
func (s *PromotionService) Latest(ctx context.Context, n int) ([]*model.Promotion, error) {
	return s.repo.Latest(ctx, n)
}

// UploadImage stores a picture and returns its public URL.  Oversized files
// are rejected before anything is written.
func (s *PromotionService) UploadImage(ctx context.Context, f *ImageFile) (string, error) {
	return s.images.upload(ctx, f)
}

// Create validates the form, uploads img when given and inserts the row.
// img takes precedence over in.Image.
func (s *PromotionService) Create(ctx context.Context, in PromotionInput, img *ImageFile) (*model.Promotion, error) {
	var (
		verrs ValidationErrors
		p     model.Promotion
	)
	p.Title = requiredText(&verrs, "title", in.Title, MinPromotionTextLen, MaxTitleLen)
	p.Description = requiredText(&verrs, "description", in.Description, MinPromotionTextLen, MaxDescriptionLen)
	p.ValidUntil = requiredDate(&verrs, "valid_until", in.ValidUntil)
	if img == nil {
		p.Image = requiredURL(&verrs, "image", in.Image)
	}
	if err := verrs.err(); err != nil {
		return nil, err
	}

	if img != nil {
		u, err := s.images.upload(ctx, img)
		if err != nil {
			return nil, err
		}
		p.Image = u
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		if img != nil {
			s.images.discard(ctx, p.Image)
		}
		return nil, err
	}
	s.purge(ctx)
	return &p, nil
}

// Update changes only the supplied fields.  An unknown id is not an error:
// nothing is written and the returned promotion is nil.
func (s *PromotionService) Update(ctx context.Context, id string, in PromotionInput, img *ImageFile) (*model.Promotion, error) {
	var (
		verrs ValidationErrors
		patch model.PromotionPatch
	)
	if in.Title != nil {
		v := requiredText(&verrs, "title", in.Title, MinPromotionTextLen, MaxTitleLen)
		patch.Title = &v
	}
	if in.Description != nil {
		v := requiredText(&verrs, "description", in.Description, MinPromotionTextLen, MaxDescriptionLen)
		patch.Description = &v
	}
	if in.ValidUntil != nil {
		v := requiredDate(&verrs, "valid_until", in.ValidUntil)
		patch.ValidUntil = &v
	}
	if in.Image != nil && img == nil {
		v := requiredURL(&verrs, "image", in.Image)
		patch.Image = &v
	}
	if err := verrs.err(); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrPromotionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if img != nil {
		u, err := s.images.upload(ctx, img)
		if err != nil {
			return nil, err
		}
		patch.Image = &u
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if img != nil {
			s.images.discard(ctx, *patch.Image)
		}
		if errors.Is(err, repository.ErrPromotionNotFound) {
			// deleted concurrently
			return nil, nil
		}
		return nil, err
	}
	if patch.Image != nil && current.Image != "" && current.Image != updated.Image {
		s.images.discard(ctx, current.Image)
	}
	s.purge(ctx)
	return updated, nil
}

// Delete removes a promotion and its uploaded picture.  Deleting an unknown
// id succeeds.
func (s *PromotionService) Delete(ctx context.Context, id string) error {
	current, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrPromotionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if current.Image != "" {
		s.images.discard(ctx, current.Image)
	}
	s.purge(ctx)
	return nil
}

func (s *PromotionService) purge(ctx context.Context) {
	if s.purger == nil {
		return
	}
	if err := s.purger.Purge(ctx); err != nil {
		slog.Warn("promotion cache purge failed", "error", err)
	}
}

func requiredText(verrs *ValidationErrors, field string, v *string, minLen, maxLen int) string {
	if v == nil {
		verrs.add(field, MsgRequired)
		return ""
	}
	s := plainText(*v)
	n := utf8.RuneCountInString(s)
	switch {
	case s == "":
		verrs.add(field, MsgRequired)
	case n < minLen:
		verrs.add(field, MsgTooShort)
	case n > maxLen:
		verrs.add(field, MsgTooLong)
	}
	return s
}

func requiredDate(verrs *ValidationErrors, field string, v *string) *time.Time {
	if v == nil || strings.TrimSpace(*v) == "" {
		verrs.add(field, MsgRequired)
		return nil
	}
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(*v))
	if err != nil {
		verrs.add(field, MsgInvalidDate)
		return nil
	}
	return &d
}

func requiredURL(verrs *ValidationErrors, field string, v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		verrs.add(field, MsgRequired)
		return ""
	}
	s := strings.TrimSpace(*v)
	if len(s) > MaxImageURLLen {
		verrs.add(field, MsgTooLong)
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		verrs.add(field, MsgInvalidURL)
		return ""
	}
	return s
}
