package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/guesthairspa/salon/internal/model"
	"github.com/guesthairspa/salon/internal/service"
)

// maxListLimit caps ?limit on the public list.
const maxListLimit = 100

// PromotionHandler serves the public promotion list and the admin CRUD.
type PromotionHandler struct {
	Svc *service.PromotionService
}

// NewPromotionHandler wires the service.
func NewPromotionHandler(svc *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{Svc: svc}
}

type promotionReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	ValidUntil  *string `json:"valid_until"`
}

func (r promotionReq) input() service.PromotionInput {
	return service.PromotionInput{
		Title:       r.Title,
		Description: r.Description,
		Image:       r.Image,
		ValidUntil:  r.ValidUntil,
	}
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formValue returns a pointer to a multipart field, nil when absent.
func formValue(form *multipart.Form, key string) *string {
	vs, ok := form.Value[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}

// readPromotionForm accepts JSON or multipart.  A multipart request may
// carry the picture in the "image" file field; the caller must close it.
func readPromotionForm(c echo.Context) (service.PromotionInput, *service.ImageFile, func(), error) {
	noop := func() {}
	if !isMultipart(c) {
		var req promotionReq
		if err := c.Bind(&req); err != nil {
			return service.PromotionInput{}, nil, noop, err
		}
		return req.input(), nil, noop, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return service.PromotionInput{}, nil, noop, err
	}
	in := service.PromotionInput{
		Title:       formValue(form, "title"),
		Description: formValue(form, "description"),
		Image:       formValue(form, "image"),
		ValidUntil:  formValue(form, "valid_until"),
	}
	img, closeFn, err := openImage(form)
	if err != nil {
		return service.PromotionInput{}, nil, noop, err
	}
	return in, img, closeFn, nil
}

// openImage opens the "image" file part if present.
func openImage(form *multipart.Form) (*service.ImageFile, func(), error) {
	files := form.File["image"]
	if len(files) == 0 {
		return nil, func() {}, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &service.ImageFile{Filename: fh.Filename, Size: fh.Size, Body: f}, func() { _ = f.Close() }, nil
}

// List returns every promotion newest first.  ?limit=n trims the list for
// the home page teaser.
func (h *PromotionHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		limit = min(n, maxListLimit)
	}

	var (
		ps  []*model.Promotion
		err error
	)
	if limit > 0 {
		ps, err = h.Svc.Latest(ctx, limit)
	} else {
		ps, err = h.Svc.List(ctx)
	}
	if err != nil {
		return writeError(c, err, "list promotions failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toPromotionDTOs(ps)})
}

// Create inserts a promotion from JSON or multipart.  201 with the row.
func (h *PromotionHandler) Create(c echo.Context) error {
	in, img, closeImg, err := readPromotionForm(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	defer closeImg()

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Svc.Create(ctx, in, img)
	if err != nil {
		return writeError(c, err, "create promotion failed")
	}
	return c.JSON(http.StatusCreated, toPromotionDTO(p))
}

// Update applies a partial update.  An unknown id is not an error: the
// answer is 200 with a null item.
func (h *PromotionHandler) Update(c echo.Context) error {
	id := c.Param("id")
	in, img, closeImg, err := readPromotionForm(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	defer closeImg()

	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Svc.Update(ctx, id, in, img)
	if err != nil {
		return writeError(c, err, "update promotion failed", "id", id)
	}
	if p == nil {
		return c.JSON(http.StatusOK, echo.Map{"item": nil})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toPromotionDTO(p)})
}

// Delete removes a promotion.  Always 204 unless storage fails.
func (h *PromotionHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Svc.Delete(ctx, id); err != nil {
		return writeError(c, err, "delete promotion failed", "id", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadImage stores a picture sent as multipart field "image" and returns
// its public URL.
func (h *PromotionHandler) UploadImage(c echo.Context) error {
	if !isMultipart(c) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart form with an image file expected"})
	}
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	img, closeImg, err := openImage(form)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	defer closeImg()
	if img == nil {
		return writeError(c, service.ValidationErrors{{Field: "image", Message: service.MsgRequired}}, "")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Svc.UploadImage(ctx, img)
	if err != nil {
		return writeError(c, err, "Erreur lors du téléchargement de l'image.")
	}
	return c.JSON(http.StatusCreated, echo.Map{"url": u})
}
