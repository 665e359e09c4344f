package web

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/client"
	"github.com/billslocker/backend/internal/models"
)

const genericSubmitError = "Something went wrong while saving the item. Please try again."

type listPage struct {
	PageData
	Items      []models.Item
	Search     string
	Category   string
	Categories []models.Category
}

type detailPage struct {
	PageData
	Item *models.Item
}

type formPage struct {
	PageData
	Action      string
	Cancel      string
	Form        formValues
	FieldErrors map[string]string
	Categories  []models.Category
}

// formValues is what the form inputs display.
type formValues struct {
	Title        string
	Description  string
	PurchaseDate string
	ExpiryDate   string
	Category     string
	Price        string
	ReceiptPath  string
}

// ListPage handles GET /.
func (s *Server) ListPage(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	if category == "" {
		category = models.CategoryAll
	}

	page := listPage{
		PageData:   PageData{Title: "Items"},
		Search:     search,
		Category:   category,
		Categories: models.ItemCategories,
	}

	items, err := s.api.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list items", zap.Error(err))
		page.Error = "Could not load items."
	}
	page.Items = models.FilterItems(items, search, category)

	s.templates.Render(w, http.StatusOK, "list.html", &page)
}

// DetailPage handles GET /item/{id}. Any fetch failure sends the user back
// to the list.
func (s *Server) DetailPage(w http.ResponseWriter, r *http.Request) {
	item, err := s.api.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Warn("failed to fetch item", zap.String("id", chi.URLParam(r, "id")), zap.Error(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.templates.Render(w, http.StatusOK, "detail.html", &detailPage{
		PageData: PageData{Title: item.Title},
		Item:     item,
	})
}

// DeleteSubmit handles POST /item/{id}/delete.
func (s *Server) DeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.api.Delete(r.Context(), id); err != nil {
		s.logger.Error("failed to delete item", zap.String("id", id), zap.Error(err))
	} else {
		s.logger.Info("item deleted", zap.String("id", id))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// AddPage handles GET /add.
func (s *Server) AddPage(w http.ResponseWriter, r *http.Request) {
	s.renderForm(w, http.StatusOK, "Add item", "/add", "/", formValues{
		Category:     string(models.CategoryElectronics),
		PurchaseDate: time.Now().Format("2006-01-02"),
	}, "", nil)
}

// AddSubmit handles POST /add.
func (s *Server) AddSubmit(w http.ResponseWriter, r *http.Request) {
	values, upload, cleanup, err := readPageForm(w, r)
	if err != nil {
		s.renderForm(w, http.StatusBadRequest, "Add item", "/add", "/", formValues{}, "Could not read the submitted form.", nil)
		return
	}
	defer cleanup()

	patch, perr := models.ParseItemForm(values)
	verr := &models.ValidationError{}
	verr.Merge(perr)
	verr.Merge(models.ValidateNew(patch))
	if v := verr.OrNil(); v != nil {
		s.renderForm(w, http.StatusBadRequest, "Add item", "/add", "/", valuesFromForm(values, ""), "", fieldErrors(v.Fields))
		return
	}

	item, err := s.api.Create(r.Context(), patch, upload)
	if err != nil {
		msg, fields := submitError(err)
		s.logger.Warn("failed to create item", zap.Error(err))
		s.renderForm(w, http.StatusBadRequest, "Add item", "/add", "/", valuesFromForm(values, ""), msg, fields)
		return
	}

	s.logger.Info("item created", zap.String("id", item.ID))
	http.Redirect(w, r, "/item/"+item.ID, http.StatusSeeOther)
}

// EditPage handles GET /edit/{id}. A fetch failure redirects to the list.
func (s *Server) EditPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.api.Get(r.Context(), id)
	if err != nil {
		s.logger.Warn("failed to fetch item for edit", zap.String("id", id), zap.Error(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.renderForm(w, http.StatusOK, "Edit item", "/edit/"+id, "/item/"+id, valuesFromItem(item), "", nil)
}

// EditSubmit handles POST /edit/{id}.
func (s *Server) EditSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action, cancel := "/edit/"+id, "/item/"+id

	values, upload, cleanup, err := readPageForm(w, r)
	if err != nil {
		s.renderForm(w, http.StatusBadRequest, "Edit item", action, cancel, formValues{}, "Could not read the submitted form.", nil)
		return
	}
	defer cleanup()

	receiptPath := values.Get("receiptPath")
	patch, verr := models.ParseItemForm(values)
	if verr != nil {
		s.renderForm(w, http.StatusBadRequest, "Edit item", action, cancel, valuesFromForm(values, receiptPath), "", fieldErrors(verr.Fields))
		return
	}

	if _, err := s.api.Update(r.Context(), id, patch, upload); err != nil {
		if client.IsNotFound(err) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		msg, fields := submitError(err)
		s.logger.Warn("failed to update item", zap.String("id", id), zap.Error(err))
		s.renderForm(w, http.StatusBadRequest, "Edit item", action, cancel, valuesFromForm(values, receiptPath), msg, fields)
		return
	}

	s.logger.Info("item updated", zap.String("id", id))
	http.Redirect(w, r, "/item/"+id, http.StatusSeeOther)
}

func (s *Server) renderForm(w http.ResponseWriter, status int, title, action, cancel string, form formValues, msg string, fields map[string]string) {
	if fields == nil {
		fields = map[string]string{}
	}
	s.templates.Render(w, status, "form.html", &formPage{
		PageData:    PageData{Title: title, Error: msg},
		Action:      action,
		Cancel:      cancel,
		Form:        form,
		FieldErrors: fields,
		Categories:  models.ItemCategories,
	})
}

// readPageForm parses the browser's multipart form. The returned upload is
// nil when no file was chosen.
func readPageForm(w http.ResponseWriter, r *http.Request) (url.Values, *client.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	noop := func() {}

	err := r.ParseMultipartForm(1 << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			return nil, nil, noop, err
		}
		return r.PostForm, nil, noop, nil
	}
	if err != nil {
		return nil, nil, noop, err
	}

	values := url.Values(r.MultipartForm.Value)
	cleanup := func() { r.MultipartForm.RemoveAll() }

	var header *multipart.FileHeader
	if files := r.MultipartForm.File[models.FieldReceipt]; len(files) > 0 && files[0].Filename != "" {
		header = files[0]
	}
	if header == nil {
		return values, nil, cleanup, nil
	}

	f, err := header.Open()
	if err != nil {
		cleanup()
		return nil, nil, noop, err
	}
	upload := &client.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        f,
	}
	return values, upload, func() {
		f.Close()
		cleanup()
	}, nil
}

// submitError picks the message to show for a failed save. The API's own
// message is preferred; anything else gets a generic notice.
func submitError(err error) (string, map[string]string) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Msg != "" {
		return apiErr.Msg, fieldErrors(apiErr.Errors)
	}
	return genericSubmitError, nil
}

func fieldErrors(fields []models.FieldError) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if _, seen := out[f.Param]; !seen {
			out[f.Param] = f.Msg
		}
	}
	return out
}

func valuesFromForm(values url.Values, receiptPath string) formValues {
	return formValues{
		Title:        values.Get(models.FieldTitle),
		Description:  values.Get(models.FieldDescription),
		PurchaseDate: values.Get(models.FieldPurchaseDate),
		ExpiryDate:   values.Get(models.FieldExpiryDate),
		Category:     values.Get(models.FieldCategory),
		Price:        values.Get(models.FieldPrice),
		ReceiptPath:  receiptPath,
	}
}

func valuesFromItem(item *models.Item) formValues {
	fv := formValues{
		Title:        item.Title,
		Description:  item.Description,
		PurchaseDate: item.PurchaseDate.UTC().Format("2006-01-02"),
		Category:     string(item.Category),
		ReceiptPath:  item.ReceiptPath,
	}
	if item.ExpiryDate != nil {
		fv.ExpiryDate = item.ExpiryDate.UTC().Format("2006-01-02")
	}
	if item.Price != nil {
		fv.Price = item.Price.String()
	}
	return fv
}
