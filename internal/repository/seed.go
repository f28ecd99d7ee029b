package repository

import (
	"context"
	"time"

	"github.com/guesthairspa/salon/internal/model"
)

// DefaultPromotions are the two offers the site shipped with before any admin
// edit, oldest first so the hammam offer lists on top after seeding.
func DefaultPromotions() []model.Promotion {
	validUntil := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	return []model.Promotion{
		{
			Title:       "Coupe Enfant Gratuite",
			Description: "Pour chaque coupe adulte réalisée, la coupe enfant est gratuite. Profitez de ce moment pour faire plaisir à toute la famille.",
			Image:       "https://images.pexels.com/photos/1813272/pexels-photo-1813272.jpeg?auto=compress&cs=tinysrgb&w=800",
			ValidUntil:  &validUntil,
		},
		{
			Title:       "Hammam Enfant Gratuit",
			Description: "Pour chaque Hammam adulte réalisé, le Hammam enfant est offert. Une occasion parfaite pour partager un moment de détente en famille.",
			Image:       "https://images.pexels.com/photos/3757988/pexels-photo-3757988.jpeg?auto=compress&cs=tinysrgb&w=800",
			ValidUntil:  &validUntil,
		},
	}
}

// SeedDefaultPromotions inserts DefaultPromotions when the promotions table
// is empty and returns how many rows were written.
func SeedDefaultPromotions(ctx context.Context, repo *PromotionRepo) (int, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	inserted := 0
	for _, p := range DefaultPromotions() {
		p := p
		if err := repo.Create(ctx, &p); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
