package model

import "time"

// DateLayout is the wire and storage format of calendar dates (valid_until).
const DateLayout = "2006-01-02"

// Promotion is a marketing offer shown on the public site and managed from
// the admin area.  It corresponds to a row in the `promotions` table.
//
// Fields:
//
//	ID          – uuid assigned by the server on insert.
//	Title       – headline, required.
//	Description – body text, required; stored sanitised.
//	Image       – public URL of the picture, empty when none.
//	ValidUntil  – last day the offer applies, nil when open-ended.
//	CreatedAt   – insert timestamp (UTC); list order key.
type Promotion struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Image       string     `json:"image,omitempty"`
	ValidUntil  *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ValidUntilString formats ValidUntil as YYYY-MM-DD, or "" when unset.
func (p Promotion) ValidUntilString() string {
	if p.ValidUntil == nil {
		return ""
	}
	return p.ValidUntil.Format(DateLayout)
}

// PromotionPatch lists the columns of a partial update.  Nil pointers leave
// the column untouched.  Every promotion field is required, so a patch never
// clears a column.
type PromotionPatch struct {
	Title       *string
	Description *string
	Image       *string
	ValidUntil  **time.Time
}

// Empty reports whether the patch changes nothing.
func (p PromotionPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Image == nil && p.ValidUntil == nil
}
