package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appMiddleware "github.com/billslocker/backend/internal/middleware"
	"github.com/billslocker/backend/internal/services"
)

type RouterConfig struct {
	Items          services.ItemStore
	Receipts       *services.ReceiptService
	Logger         *zap.Logger
	AllowedOrigins []string
	// UI, when set, is mounted at the root for every path the API does not
	// claim.
	UI http.Handler
}

func NewRouter(cfg RouterConfig) chi.Router {
	itemHandler := NewItemHandler(cfg.Items, cfg.Receipts, cfg.Logger)
	maintenanceHandler := NewMaintenanceHandler(cfg.Items, cfg.Receipts, cfg.Logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(appMiddleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.ListItems)
			r.Post("/", itemHandler.CreateItem)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", itemHandler.GetItem)
				r.Put("/", itemHandler.UpdateItem)
				r.Delete("/", itemHandler.DeleteItem)
			})
		})

		r.Get("/maintenance/orphans", maintenanceHandler.ScanOrphans)
	})

	// Serve uploaded receipts
	files := http.StripPrefix(services.UploadsPrefix, http.FileServer(http.Dir(cfg.Receipts.Dir())))
	r.Handle(services.UploadsPrefix+"*", noDirListing(files))

	if cfg.UI != nil {
		r.Mount("/", cfg.UI)
	}

	return r
}

// noDirListing answers 404 for directory paths instead of an index page.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
