// Package web renders the HTML item pages on top of the API client.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/client"
	webembed "github.com/billslocker/backend/web"
)

const maxFormBytes = 6 << 20

type Options struct {
	Client *client.Client
	Logger *zap.Logger
	// ReceiptBase is prefixed to receiptPath links. Empty when the API and the
	// pages share an origin.
	ReceiptBase string
}

// Server holds the page handlers' dependencies.
type Server struct {
	api       *client.Client
	templates *Templates
	logger    *zap.Logger
}

// NewHandler returns the page router.
func NewHandler(opts Options) (http.Handler, error) {
	templates, err := LoadTemplates(opts.ReceiptBase, opts.Logger)
	if err != nil {
		return nil, err
	}
	s := &Server{api: opts.Client, templates: templates, logger: opts.Logger}

	r := chi.NewRouter()
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	r.Get("/", s.ListPage)
	r.Get("/item/{id}", s.DetailPage)
	r.Post("/item/{id}/delete", s.DeleteSubmit)
	r.Get("/add", s.AddPage)
	r.Post("/add", s.AddSubmit)
	r.Get("/edit/{id}", s.EditPage)
	r.Post("/edit/{id}", s.EditSubmit)

	return r, nil
}
