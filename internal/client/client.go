// Package client is a typed HTTP client for the item API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/billslocker/backend/internal/models"
)

const defaultTimeout = 15 * time.Second

// Config is everything a Client needs. There are no package-level defaults
// besides the timeout.
type Config struct {
	// BaseURL is the API origin, e.g. http://localhost:5000.
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
}

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

// Upload is a receipt file attached to a create or update.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status int
	Code   string
	Msg    string
	Errors []models.FieldError
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Msg)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "client: parse BaseURL")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "billslocker-client"
	}
	return &Client{baseURL: base, http: httpClient, userAgent: ua}, nil
}

func (c *Client) List(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := c.do(ctx, http.MethodGet, "/api/items", nil, "", &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) Get(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := c.do(ctx, http.MethodGet, itemPath(id), nil, "", &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) Create(ctx context.Context, form *models.ItemPatch, receipt *Upload) (*models.Item, error) {
	body, contentType, err := encodeMultipart(form, receipt)
	if err != nil {
		return nil, err
	}
	var item models.Item
	if err := c.do(ctx, http.MethodPost, "/api/items", body, contentType, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Update sends only the fields form sets. A nil receipt keeps the stored one.
func (c *Client) Update(ctx context.Context, id string, form *models.ItemPatch, receipt *Upload) (*models.Item, error) {
	body, contentType, err := encodeMultipart(form, receipt)
	if err != nil {
		return nil, err
	}
	var item models.Item
	if err := c.do(ctx, http.MethodPut, itemPath(id), body, contentType, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	var resp models.MessageResponse
	return c.do(ctx, http.MethodDelete, itemPath(id), nil, "", &resp)
}

func itemPath(id string) string {
	return "/api/items/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return errors.Wrap(err, "client: build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "client: %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "client: decode response")
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Msg    string              `json:"msg"`
		Code   string              `json:"code"`
		Errors []models.FieldError `json:"errors"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if json.Unmarshal(data, &body) == nil {
		apiErr.Msg = body.Msg
		apiErr.Code = body.Code
		apiErr.Errors = body.Errors
	}
	return apiErr
}

func encodeMultipart(form *models.ItemPatch, receipt *Upload) (io.Reader, string, error) {
	if form == nil {
		form = &models.ItemPatch{}
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for key, vals := range models.EncodeItemForm(form) {
		for _, v := range vals {
			if err := mw.WriteField(key, v); err != nil {
				return nil, "", errors.Wrap(err, "client: write field")
			}
		}
	}

	if receipt != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`,
			models.FieldReceipt, receipt.Filename))
		ct := receipt.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", errors.Wrap(err, "client: create receipt part")
		}
		if _, err := io.Copy(part, receipt.Body); err != nil {
			return nil, "", errors.Wrap(err, "client: copy receipt")
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", errors.Wrap(err, "client: close multipart")
	}
	return &buf, mw.FormDataContentType(), nil
}
