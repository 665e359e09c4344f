package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/client"
	"github.com/billslocker/backend/internal/handlers"
	"github.com/billslocker/backend/internal/models"
	"github.com/billslocker/backend/internal/services"
)

type webEnv struct {
	pages http.Handler
	items services.ItemStore
}

func newWebEnv(t *testing.T) *webEnv {
	t.Helper()
	items, err := services.NewMemoryItemService("", zap.NewNop())
	require.NoError(t, err)
	receipts, err := services.NewReceiptService(filepath.Join(t.TempDir(), "uploads"), 0)
	require.NoError(t, err)

	api := httptest.NewServer(handlers.NewRouter(handlers.RouterConfig{
		Items:    items,
		Receipts: receipts,
		Logger:   zap.NewNop(),
	}))
	t.Cleanup(api.Close)

	return &webEnv{pages: newPages(t, api.URL), items: items}
}

func newPages(t *testing.T, apiURL string) http.Handler {
	t.Helper()
	c, err := client.New(client.Config{BaseURL: apiURL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	pages, err := NewHandler(Options{Client: c, Logger: zap.NewNop()})
	require.NoError(t, err)
	return pages
}

func (e *webEnv) seed(t *testing.T, title, description string, category models.Category) *models.Item {
	t.Helper()
	item, err := e.items.Create(context.Background(), &models.Item{
		Title:        title,
		Description:  description,
		PurchaseDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Category:     category,
	})
	require.NoError(t, err)
	return item
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func formRequest(t *testing.T, path string, fields url.Values, file *client.Upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="receipt"; filename=%q`, file.Filename))
		h.Set("Content-Type", file.ContentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.Copy(part, file.Body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestListPage_Filters(t *testing.T) {
	env := newWebEnv(t)
	env.seed(t, "Fridge", "kitchen", models.CategoryAppliances)
	env.seed(t, "Sofa", "living room", models.CategoryFurniture)

	rec := serve(env.pages, httptest.NewRequest(http.MethodGet, "/?q=kit&category=all", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fridge")
	assert.NotContains(t, rec.Body.String(), "Sofa")

	rec = serve(env.pages, httptest.NewRequest(http.MethodGet, "/?category=furniture", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sofa")
	assert.NotContains(t, rec.Body.String(), "Fridge")
}

func TestDetailPage(t *testing.T) {
	env := newWebEnv(t)
	item := env.seed(t, "Toaster", "two slots", models.CategoryAppliances)

	rec := serve(env.pages, httptest.NewRequest(http.MethodGet, "/item/"+item.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Toaster")
	assert.Contains(t, rec.Body.String(), "2024-01-02")
}

func TestDetailAndEdit_RedirectOnFetchFailure(t *testing.T) {
	env := newWebEnv(t)

	for _, path := range []string{
		"/item/" + models.NewID(),
		"/item/not-an-id",
		"/edit/" + models.NewID(),
	} {
		rec := serve(env.pages, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/", rec.Header().Get("Location"), path)
	}
}

func TestRedirectWhenAPIUnreachable(t *testing.T) {
	api := httptest.NewServer(http.NotFoundHandler())
	apiURL := api.URL
	api.Close()

	pages := newPages(t, apiURL)
	rec := serve(pages, httptest.NewRequest(http.MethodGet, "/item/"+models.NewID(), nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = serve(pages, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not load items.")
}

func TestAddSubmit(t *testing.T) {
	env := newWebEnv(t)

	req := formRequest(t, "/add", url.Values{
		"title":        {"Blender"},
		"description":  {""},
		"purchaseDate": {"2024-09-09"},
		"expiryDate":   {""},
		"category":     {"appliances"},
		"price":        {"59.90"},
	}, nil)
	rec := serve(env.pages, req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	all, err := env.items.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Blender", all[0].Title)
	assert.Equal(t, "/item/"+all[0].ID, rec.Header().Get("Location"))
}

func TestAddSubmit_ValidationErrorsRerenderForm(t *testing.T) {
	env := newWebEnv(t)

	req := formRequest(t, "/add", url.Values{
		"title":        {""},
		"purchaseDate": {"2024-09-09"},
		"category":     {"appliances"},
	}, nil)
	rec := serve(env.pages, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Title is required")

	all, err := env.items.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAddSubmit_ShowsServerMessage(t *testing.T) {
	env := newWebEnv(t)

	req := formRequest(t, "/add", url.Values{
		"title":        {"Gift card"},
		"purchaseDate": {"2024-09-09"},
		"category":     {"other"},
	}, &client.Upload{Filename: "card.gif", ContentType: "image/gif", Body: strings.NewReader("GIF89a")})
	rec := serve(env.pages, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Only images (jpeg, jpg, png) and PDFs are allowed")
}

func TestEditSubmit(t *testing.T) {
	env := newWebEnv(t)
	item := env.seed(t, "Lamp", "desk", models.CategoryFurniture)

	rec := serve(env.pages, httptest.NewRequest(http.MethodGet, "/edit/"+item.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Lamp"`)

	req := formRequest(t, "/edit/"+item.ID, url.Values{
		"title":        {"Floor lamp"},
		"description":  {""},
		"purchaseDate": {"2024-01-02"},
		"category":     {"furniture"},
		"receiptPath":  {""},
	}, nil)
	rec = serve(env.pages, req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/item/"+item.ID, rec.Header().Get("Location"))

	got, err := env.items.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Floor lamp", got.Title)
	assert.Equal(t, "", got.Description)
}

func TestDeleteSubmit(t *testing.T) {
	env := newWebEnv(t)
	item := env.seed(t, "Rug", "", models.CategoryFurniture)

	rec := serve(env.pages, httptest.NewRequest(http.MethodPost, "/item/"+item.ID+"/delete", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	_, err := env.items.GetByID(context.Background(), item.ID)
	assert.ErrorIs(t, err, services.ErrItemNotFound)
}
