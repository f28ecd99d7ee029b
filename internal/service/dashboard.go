package service

import (
	"context"

	"github.com/guesthairspa/salon/internal/model"
	"github.com/guesthairspa/salon/internal/repository"
)

// ServicesOffered is the number of services on the public catalogue
// (coiffure, hammam, soins, barbe).  The catalogue itself is static content.
const ServicesOffered = 4

// LatestPromotionsShown is how many promotions the dashboard previews.
const LatestPromotionsShown = 3

// DashboardStats are the counters of the admin overview.
type DashboardStats struct {
	ActivePromotions int `json:"active_promotions"`
	Clients          int `json:"clients"`
	Requests         int `json:"requests"`
	Unread           int `json:"unread"`
	Services         int `json:"services"`
}

// Dashboard is the admin landing page payload.
type Dashboard struct {
	Stats            DashboardStats
	LatestPromotions []*model.Promotion
	Contacts         []*model.Contact
}

// DashboardService aggregates promotions and contacts for the admin overview.
type DashboardService struct {
	promotions *repository.PromotionRepo
	contacts   *repository.ContactRepo
}

// NewDashboardService wires both repositories.
func NewDashboardService(promotions *repository.PromotionRepo, contacts *repository.ContactRepo) *DashboardService {
	return &DashboardService{promotions: promotions, contacts: contacts}
}

// Get builds the dashboard.  Every promotion counts as active; expiry is
// informational only.
func (s *DashboardService) Get(ctx context.Context) (*Dashboard, error) {
	promoCount, err := s.promotions.Count(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.promotions.Latest(ctx, LatestPromotionsShown)
	if err != nil {
		return nil, err
	}
	contacts, err := s.contacts.List(ctx)
	if err != nil {
		return nil, err
	}
	unread, err := s.contacts.CountUnread(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Stats: DashboardStats{
			ActivePromotions: promoCount,
			Clients:          len(contacts),
			Requests:         len(contacts),
			Unread:           unread,
			Services:         ServicesOffered,
		},
		LatestPromotions: latest,
		Contacts:         contacts,
	}, nil
}
