package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/metrics"
	"github.com/billslocker/backend/internal/models"
	"github.com/billslocker/backend/internal/services"
)

type ItemHandler struct {
	items    services.ItemStore
	receipts *services.ReceiptService
	logger   *zap.Logger
}

func NewItemHandler(items services.ItemStore, receipts *services.ReceiptService, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{
		items:    items,
		receipts: receipts,
		logger:   logger,
	}
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.ListAll(r.Context())
	h.observe("list", err)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.GetByID(r.Context(), chi.URLParam(r, "id"))
	h.observe("get", err)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateItem validates every field before anything is written. The receipt,
// when present, is stored first and its path recorded on the new item.
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	form, err := readItemForm(w, r, h.receipts.MaxBytes())
	if err != nil {
		h.observe("create", err)
		writeError(w, h.logger, err)
		return
	}
	defer form.cleanup()

	patch, perr := models.ParseItemForm(form.values)
	verr := &models.ValidationError{}
	verr.Merge(perr)
	verr.Merge(models.ValidateNew(patch))
	if v := verr.OrNil(); v != nil {
		h.observe("create", v)
		writeError(w, h.logger, v)
		return
	}

	stored, err := h.storeReceipt(form)
	if err != nil {
		h.observe("create", err)
		writeError(w, h.logger, err)
		return
	}
	if stored != nil {
		patch.ReceiptPath = &stored.Path
	}

	item := patch.Apply(models.Item{})
	created, err := h.items.Create(r.Context(), &item)
	h.observe("create", err)
	if err != nil {
		h.orphaned(stored, err)
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateItem merges the supplied fields into the stored item. A new receipt
// replaces receiptPath; the previous file stays on disk.
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !models.ValidID(id) {
		h.observe("update", services.ErrInvalidID)
		writeError(w, h.logger, services.ErrInvalidID)
		return
	}

	form, err := readItemForm(w, r, h.receipts.MaxBytes())
	if err != nil {
		h.observe("update", err)
		writeError(w, h.logger, err)
		return
	}
	defer form.cleanup()

	patch, verr := models.ParseItemForm(form.values)
	if verr != nil {
		h.observe("update", verr)
		writeError(w, h.logger, verr)
		return
	}

	// No file is written for an item that does not exist.
	if _, err := h.items.GetByID(r.Context(), id); err != nil {
		h.observe("update", err)
		writeError(w, h.logger, err)
		return
	}

	stored, err := h.storeReceipt(form)
	if err != nil {
		h.observe("update", err)
		writeError(w, h.logger, err)
		return
	}
	if stored != nil {
		patch.ReceiptPath = &stored.Path
	}

	updated, err := h.items.UpdateByID(r.Context(), id, patch)
	h.observe("update", err)
	if err != nil {
		h.orphaned(stored, err)
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteItem removes the record only. The receipt file is left for the
// orphan scan.
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	err := h.items.DeleteByID(r.Context(), chi.URLParam(r, "id"))
	h.observe("delete", err)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("Item removed"))
}

func (h *ItemHandler) storeReceipt(form *itemForm) (*services.StoredReceipt, error) {
	if form.receipt == nil {
		return nil, nil
	}
	stored, err := saveReceipt(h.receipts, form.receipt)
	if err != nil {
		metrics.ReceiptUploads.WithLabelValues(resultOf(err)).Inc()
		return nil, err
	}
	metrics.ReceiptUploads.WithLabelValues(metrics.ResultOK).Inc()
	h.logger.Info("receipt stored",
		zap.String("path", stored.Path),
		zap.Int64("size", stored.Size),
		zap.String("sha256", stored.Checksum))
	return stored, nil
}

// orphaned records a receipt whose item write failed after the file was
// stored.
func (h *ItemHandler) orphaned(stored *services.StoredReceipt, cause error) {
	if stored == nil {
		return
	}
	metrics.OrphanedReceiptsTotal.Inc()
	h.logger.Warn("receipt orphaned by failed item write",
		zap.String("path", stored.Path),
		zap.Error(cause))
}

func (h *ItemHandler) observe(op string, err error) {
	metrics.ItemOperations.WithLabelValues(op, resultOf(err)).Inc()
}

func resultOf(err error) string {
	var (
		verr *models.ValidationError
		ferr *formError
	)
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, services.ErrItemNotFound):
		return metrics.ResultNotFound
	case errors.As(err, &verr), errors.As(err, &ferr),
		errors.Is(err, services.ErrInvalidID),
		errors.Is(err, services.ErrUnsupportedFileType),
		errors.Is(err, services.ErrFileTooLarge):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
