package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/guesthairspa/salon/internal/model"
	"github.com/guesthairspa/salon/internal/service"
)

// DashboardHandler serves the admin overview.
type DashboardHandler struct {
	Svc *service.DashboardService
}

// NewDashboardHandler wires the service.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{Svc: svc}
}

type dashboardResp struct {
	Stats            service.DashboardStats `json:"stats"`
	LatestPromotions []PromotionDTO         `json:"latest_promotions"`
	Contacts         []*model.Contact       `json:"contacts"`
}

// Get returns counters, the latest promotions and all contacts.
func (h *DashboardHandler) Get(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	d, err := h.Svc.Get(ctx)
	if err != nil {
		return writeError(c, err, "load dashboard failed")
	}
	return c.JSON(http.StatusOK, dashboardResp{
		Stats:            d.Stats,
		LatestPromotions: toPromotionDTOs(d.LatestPromotions),
		Contacts:         d.Contacts,
	})
}
