package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/billslocker/backend/internal/models"
	"github.com/billslocker/backend/internal/services"
)

const (
	// multipartOverhead is allowed on top of the receipt limit for the other
	// form fields and part headers.
	multipartOverhead = 1 << 20
	multipartMemory   = 1 << 20
	maxJSONBody       = 1 << 20
)

// itemForm is a decoded item request body.
type itemForm struct {
	values  url.Values
	receipt *multipart.FileHeader
	cleanup func()
}

// readItemForm accepts multipart/form-data, application/json and
// application/x-www-form-urlencoded bodies. Only multipart bodies can carry a
// receipt file.
func readItemForm(w http.ResponseWriter, r *http.Request, maxReceiptBytes int64) (*itemForm, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType := ""
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, &formError{msg: "Malformed Content-Type header"}
		}
		mediaType = mt
	}

	switch mediaType {
	case "multipart/form-data":
		return readMultipart(w, r, maxReceiptBytes)
	case "application/json":
		return readJSON(w, r)
	case "application/x-www-form-urlencoded", "":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			return nil, &formError{msg: "Could not parse form data"}
		}
		return &itemForm{values: r.PostForm, cleanup: func() {}}, nil
	default:
		return nil, &formError{msg: fmt.Sprintf("Unsupported content type %q", mediaType)}
	}
}

func readMultipart(w http.ResponseWriter, r *http.Request, maxReceiptBytes int64) (*itemForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, services.ErrFileTooLarge
		}
		return nil, &formError{msg: "Could not parse multipart form"}
	}

	form := &itemForm{
		values:  url.Values(r.MultipartForm.Value),
		cleanup: func() { r.MultipartForm.RemoveAll() },
	}
	if files := r.MultipartForm.File[models.FieldReceipt]; len(files) > 0 && files[0].Filename != "" {
		form.receipt = files[0]
	}
	return form, nil
}

func readJSON(w http.ResponseWriter, r *http.Request) (*itemForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, &formError{msg: "Request body must be a JSON object"}
	}

	values := url.Values{}
	for key, raw := range body {
		switch v := raw.(type) {
		case nil:
			values.Set(key, "")
		case string:
			values.Set(key, v)
		case json.Number:
			values.Set(key, v.String())
		case bool:
			values.Set(key, fmt.Sprint(v))
		default:
			return nil, &formError{msg: fmt.Sprintf("Field %q must be a scalar", key)}
		}
	}
	return &itemForm{values: values, cleanup: func() {}}, nil
}

// saveReceipt checks the declared type and size before streaming the file
// to the receipt store.
func saveReceipt(store *services.ReceiptService, fh *multipart.FileHeader) (*services.StoredReceipt, error) {
	contentType := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if err := services.CheckType(fh.Filename, contentType); err != nil {
		return nil, err
	}
	if fh.Size > store.MaxBytes() {
		return nil, services.ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, &formError{msg: "Could not read receipt file"}
	}
	defer f.Close()

	return store.Save(fh.Filename, contentType, f)
}
