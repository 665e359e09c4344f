package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/models"
	"github.com/billslocker/backend/internal/services"
)

type MaintenanceHandler struct {
	items    services.ItemStore
	receipts *services.ReceiptService
	logger   *zap.Logger
}

func NewMaintenanceHandler(items services.ItemStore, receipts *services.ReceiptService, logger *zap.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{items: items, receipts: receipts, logger: logger}
}

// ScanOrphans reports receipt files that no item references. Nothing is
// deleted; pruning is done with lockerctl. ?minAge=1h skips younger files.
func (h *MaintenanceHandler) ScanOrphans(w http.ResponseWriter, r *http.Request) {
	var minAge time.Duration
	if raw := r.URL.Query().Get("minAge"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(models.CodeInvalidForm,
				"minAge must be a duration such as 30m or 1h"))
			return
		}
		minAge = d
	}

	report, err := services.NewOrphanScanner(h.items, h.receipts, h.logger).WithMinAge(minAge).Scan(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
