package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/guesthairspa/salon/internal/service"
)

// ContactHandler serves the public contact form and its moderation.
type ContactHandler struct {
	Svc *service.ContactService
}

// NewContactHandler wires the service.
func NewContactHandler(svc *service.ContactService) *ContactHandler {
	return &ContactHandler{Svc: svc}
}

type contactReq struct {
	Nom       string `json:"nom" form:"nom"`
	Email     string `json:"email" form:"email"`
	Telephone string `json:"telephone" form:"telephone"`
	Message   string `json:"message" form:"message"`
}

// Submit stores a contact message.  201 with the created row.
func (h *ContactHandler) Submit(c echo.Context) error {
	var req contactReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	contact, err := h.Svc.Submit(ctx, service.ContactInput{
		Nom:       req.Nom,
		Email:     req.Email,
		Telephone: req.Telephone,
		Message:   req.Message,
	})
	if err != nil {
		return writeError(c, err, "Erreur lors de l'envoi du message.")
	}
	return c.JSON(http.StatusCreated, contact)
}

// List returns every submission newest first, read flag included.
func (h *ContactHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	items, err := h.Svc.List(ctx)
	if err != nil {
		return writeError(c, err, "list contacts failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// MarkRead flags a submission as read.  204, also for unknown ids.
func (h *ContactHandler) MarkRead(c echo.Context) error {
	id := c.Param("id")
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Svc.MarkRead(ctx, id); err != nil {
		return writeError(c, err, "mark contact read failed", "id", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a submission.  204, also for unknown ids.
func (h *ContactHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Svc.Delete(ctx, id); err != nil {
		return writeError(c, err, "delete contact failed", "id", id)
	}
	return c.NoContent(http.StatusNoContent)
}
