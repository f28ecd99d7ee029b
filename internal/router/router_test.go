package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/guesthairspa/salon/internal/auth"
	"github.com/guesthairspa/salon/internal/config"
	"github.com/guesthairspa/salon/internal/handler"
	"github.com/guesthairspa/salon/internal/queue"
	"github.com/guesthairspa/salon/internal/repository"
	"github.com/guesthairspa/salon/internal/service"
	"github.com/guesthairspa/salon/internal/storage"
	"github.com/guesthairspa/salon/internal/testutil"
)

const (
	adminPassword = "guest2025"
	baseURL       = "http://salon.test"
	maxImage      = 64
)

type notifyFunc func(queue.ContactSubmittedEvent)

func (f notifyFunc) HandleContactSubmitted(_ context.Context, ev queue.ContactSubmittedEvent) error {
	f(ev)
	return nil
}

type app struct {
	e        *echo.Echo
	notified *notifications
}

type notifications struct{ events []queue.ContactSubmittedEvent }

func newApp(t *testing.T, rl config.RateLimitConfig) *app {
	t.Helper()
	return newAppBehind(t, rl, nil)
}

func newAppBehind(t *testing.T, rl config.RateLimitConfig, trusted []*net.IPNet) *app {
	t.Helper()
	db := testutil.TestDB(t)
	clock := testutil.NewClock()
	tick := func() time.Time { return clock.Advance(time.Second) }

	promos := repository.NewPromotionRepo(db).WithClock(tick)
	contacts := repository.NewContactRepo(db).WithClock(tick)
	sessions := repository.NewSessionRepo(db)

	bucket, err := storage.NewLocalBucket(t.TempDir(), storage.PromotionsBucket, baseURL)
	require.NoError(t, err)

	gate, err := auth.NewGate(auth.Options{
		Password:   adminPassword,
		BcryptCost: bcrypt.MinCost,
		JWTSecret:  "0123456789abcdef0123456789abcdef",
		SessionTTL: time.Hour,
	}, sessions)
	require.NoError(t, err)

	n := &notifications{}
	pub := queue.NewInlinePublisher(notifyFunc(func(ev queue.ContactSubmittedEvent) { n.events = append(n.events, ev) }))

	e := echo.New()
	Register(e, Deps{
		DB:         db,
		Cache:      config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, Prefix: "t"},
		RateLimit:  rl,
		Gate:       gate,
		Promotions: handler.NewPromotionHandler(service.NewPromotionService(promos, bucket, maxImage, nil)),
		Contacts:   handler.NewContactHandler(service.NewContactService(contacts, pub)),
		Dashboard:  handler.NewDashboardHandler(service.NewDashboardService(promos, contacts)),
		Auth:       handler.NewAuthHandler(gate),
		Bucket:     bucket,

		TrustedProxies: trusted,
	})
	return &app{e: e, notified: n}
}

func relaxedLimits() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       1000,
		RefillTokens:   1,
		RefillInterval: time.Millisecond,
		TTL:            time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "t:rl",
	}
}

func (a *app) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) multipart(t *testing.T, method, target, token string, fields map[string]string, filename string, file []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *app) login(t *testing.T) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"password": adminPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[struct {
		Token   string    `json:"token"`
		Expires time.Time `json:"expires"`
	}](t, rec)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

type promotionList struct {
	Items []handler.PromotionDTO `json:"items"`
}

func TestHealth(t *testing.T) {
	a := newApp(t, relaxedLimits())
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuthGate(t *testing.T) {
	a := newApp(t, relaxedLimits())

	rec := a.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"mot de passe incorrect"}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/admin/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := a.login(t)
	rec = a.do(t, http.MethodGet, "/v1/admin/session", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)

	rec = a.do(t, http.MethodPost, "/v1/admin/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/admin/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(t, http.MethodGet, "/v1/admin/promotions", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPromotionLifecycle(t *testing.T) {
	a := newApp(t, relaxedLimits())
	token := a.login(t)

	rec := a.do(t, http.MethodGet, "/v1/promotions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/v1/admin/promotions", token, map[string]string{
		"title":       "Hammam Enfant Gratuit",
		"description": "Pour chaque Hammam adulte réalisé, le Hammam enfant est offert.",
		"image":       "https://images.pexels.com/photos/3757988/pexels-photo-3757988.jpeg",
		"valid_until": "2025-06-30",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[handler.PromotionDTO](t, rec)
	assert.Equal(t, "2025-06-30", created.ValidUntil)

	rec = a.do(t, http.MethodPost, "/v1/admin/promotions", token, map[string]string{
		"title":       "Coupe Enfant Gratuite",
		"description": "Pour chaque coupe adulte réalisée, la coupe enfant est gratuite.",
		"image":       "https://images.pexels.com/photos/1813272/pexels-photo-1813272.jpeg",
		"valid_until": "2025-07-31",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	list := decode[promotionList](t, a.do(t, http.MethodGet, "/v1/promotions", "", nil))
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Coupe Enfant Gratuite", list.Items[0].Title)

	list = decode[promotionList](t, a.do(t, http.MethodGet, "/v1/promotions?limit=1", "", nil))
	require.Len(t, list.Items, 1)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/v1/promotions?limit=zero", "", nil).Code)

	rec = a.do(t, http.MethodPatch, "/v1/admin/promotions/"+created.ID, token, map[string]string{"title": "Hammam Offert"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[struct {
		Item handler.PromotionDTO `json:"item"`
	}](t, rec)
	assert.Equal(t, "Hammam Offert", updated.Item.Title)
	assert.Equal(t, created.Description, updated.Item.Description)
	assert.Equal(t, created.Image, updated.Item.Image)
	assert.Equal(t, "2025-06-30", updated.Item.ValidUntil)

	rec = a.do(t, http.MethodPut, "/v1/admin/promotions/missing", token, map[string]string{"title": "Offre"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"item":null}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/v1/admin/promotions/"+created.ID, token, nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/v1/admin/promotions/"+created.ID, token, nil).Code)

	list = decode[promotionList](t, a.do(t, http.MethodGet, "/v1/admin/promotions", token, nil))
	require.Len(t, list.Items, 1)
	for _, p := range list.Items {
		assert.NotEqual(t, created.ID, p.ID)
	}
}

func TestPromotionValidation(t *testing.T) {
	a := newApp(t, relaxedLimits())
	token := a.login(t)

	rec := a.do(t, http.MethodPost, "/v1/admin/promotions", token, map[string]string{"title": "  ", "valid_until": "2025-06-30"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Equal(t, "Tous les champs sont obligatoires.", resp.Error)
	assert.Contains(t, resp.Fields, "title")
	assert.Contains(t, resp.Fields, "description")
	assert.Contains(t, resp.Fields, "image")

	rec = a.do(t, http.MethodPost, "/v1/admin/promotions", token, map[string]string{
		"title":       "A",
		"description": "Offre",
		"image":       "https://images.pexels.com/photos/1.jpeg",
		"valid_until": "2025-06-30",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"2 caractères minimum"`)

	list := decode[promotionList](t, a.do(t, http.MethodGet, "/v1/promotions", "", nil))
	assert.Empty(t, list.Items)
}

func TestPromotionMultipartUpload(t *testing.T) {
	a := newApp(t, relaxedLimits())
	token := a.login(t)

	rec := a.multipart(t, http.MethodPost, "/v1/admin/promotions", token, map[string]string{
		"title":       "Soin visage",
		"description": "Un soin offert",
		"valid_until": "2025-08-01",
	}, "photo.jpg", []byte("jpeg-bytes"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[handler.PromotionDTO](t, rec)
	require.True(t, strings.HasPrefix(p.Image, baseURL+"/media/promotions/"), p.Image)

	media := a.do(t, http.MethodGet, strings.TrimPrefix(p.Image, baseURL), "", nil)
	assert.Equal(t, http.StatusOK, media.Code)
	assert.Equal(t, "jpeg-bytes", media.Body.String())

	rec = a.multipart(t, http.MethodPost, "/v1/admin/promotions/images", token, nil, "big.png", bytes.Repeat([]byte("x"), maxImage+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = a.multipart(t, http.MethodPost, "/v1/admin/promotions/images", token, nil, "doc.pdf", []byte("pdf"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = a.multipart(t, http.MethodPost, "/v1/admin/promotions/images", token, nil, "ok.webp", []byte("webp"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Regexp(t, `/media/promotions/\d+-[0-9a-z]{6}\.webp"`, rec.Body.String())
}

func TestContactFlow(t *testing.T) {
	a := newApp(t, relaxedLimits())

	rec := a.do(t, http.MethodPost, "/v1/contacts", "", map[string]string{"nom": "", "email": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/contacts", "", map[string]string{
		"nom":       "Amina",
		"email":     "amina@example.com",
		"telephone": "+212600000000",
		"message":   "Je voudrais un rendez-vous",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"read":false`)
	require.Len(t, a.notified.events, 1)
	assert.Equal(t, "Amina", a.notified.events[0].Nom)

	token := a.login(t)
	type contactList struct {
		Items []struct {
			ID   string `json:"id"`
			Read bool   `json:"read"`
		} `json:"items"`
	}
	list := decode[contactList](t, a.do(t, http.MethodGet, "/v1/admin/contacts", token, nil))
	require.Len(t, list.Items, 1)
	assert.False(t, list.Items[0].Read)
	id := list.Items[0].ID

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodPatch, "/v1/admin/contacts/"+id+"/read", token, nil).Code)
	list = decode[contactList](t, a.do(t, http.MethodGet, "/v1/admin/contacts", token, nil))
	assert.True(t, list.Items[0].Read)

	rec = a.do(t, http.MethodGet, "/v1/admin/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[struct {
		Stats service.DashboardStats `json:"stats"`
	}](t, rec)
	assert.Equal(t, service.DashboardStats{Clients: 1, Requests: 1, Services: 4}, dash.Stats)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/v1/admin/contacts/"+id, token, nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/v1/admin/contacts/"+id, token, nil).Code)
	list = decode[contactList](t, a.do(t, http.MethodGet, "/v1/admin/contacts", token, nil))
	assert.Empty(t, list.Items)
}

func TestLoginRateLimited(t *testing.T) {
	rl := relaxedLimits()
	rl.Capacity = 3
	rl.RefillInterval = time.Hour
	a := newApp(t, rl)

	for i := 0; i < 3; i++ {
		rec := a.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := a.do(t, http.MethodPost, "/v1/admin/login", "", map[string]string{"password": adminPassword})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func (a *app) loginVia(t *testing.T, forwardedFor, password string) int {
	t.Helper()
	bs, err := json.Marshal(map[string]string{"password": password})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/login", bytes.NewReader(bs))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
	req.Header.Set(echo.HeaderXRealIP, forwardedFor)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec.Code
}

func TestLoginRateLimitIgnoresForwardedFor(t *testing.T) {
	rl := relaxedLimits()
	rl.Capacity = 3
	rl.RefillInterval = time.Hour
	a := newApp(t, rl)

	var codes []int
	for i := 0; i < 6; i++ {
		codes = append(codes, a.loginVia(t, fmt.Sprintf("203.0.113.%d", i+1), "wrong"))
	}
	assert.Equal(t, []int{401, 401, 401, 429, 429, 429}, codes)
}

func TestLoginRateLimitTrustedProxy(t *testing.T) {
	// httptest requests come from 192.0.2.1
	_, proxies, err := net.ParseCIDR("192.0.2.0/24")
	require.NoError(t, err)

	rl := relaxedLimits()
	rl.Capacity = 3
	rl.RefillInterval = time.Hour
	a := newAppBehind(t, rl, []*net.IPNet{proxies})

	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusUnauthorized, a.loginVia(t, fmt.Sprintf("203.0.113.%d", i+1), "wrong"))
	}
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, a.loginVia(t, "203.0.113.1", "wrong"))
	}
	assert.Equal(t, http.StatusTooManyRequests, a.loginVia(t, "203.0.113.1", "wrong"))
}
