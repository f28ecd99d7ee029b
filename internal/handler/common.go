// Package handler exposes HTTP handlers for both the admin area and the
// public site.  Handlers translate JSON or multipart requests into service
// calls and map service errors to status codes.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/guesthairspa/salon/internal/model"
	"github.com/guesthairspa/salon/internal/service"
)

// requestTimeout bounds every storage call made on behalf of a request.
const requestTimeout = 5 * time.Second

// msgRequired is the form-level message when a mandatory field is empty.
const msgRequired = "Tous les champs sont obligatoires."

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// PromotionDTO is the wire form of a promotion.  valid_until is a calendar
// date, never a timestamp.
type PromotionDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	ValidUntil  string    `json:"valid_until"`
	CreatedAt   time.Time `json:"created_at"`
}

func toPromotionDTO(p *model.Promotion) PromotionDTO {
	return PromotionDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Image:       p.Image,
		ValidUntil:  p.ValidUntilString(),
		CreatedAt:   p.CreatedAt,
	}
}

func toPromotionDTOs(ps []*model.Promotion) []PromotionDTO {
	out := make([]PromotionDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPromotionDTO(p))
	}
	return out
}

// writeError maps service errors to responses.  Anything unexpected is
// logged with msg and attrs and answered with a generic 500.
func writeError(c echo.Context, err error, msg string, attrs ...any) error {
	var verrs service.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		text := "données invalides"
		for _, e := range verrs {
			if e.Message == service.MsgRequired {
				text = msgRequired
				break
			}
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": text, "fields": verrs.Fields()})
	case errors.Is(err, service.ErrImageTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrUnsupportedImage):
		return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn(msg, append([]any{"error", err}, attrs...)...)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msg})
	default:
		slog.Error(msg, append([]any{"error", err}, attrs...)...)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
	}
}
