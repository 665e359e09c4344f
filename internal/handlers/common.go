package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/models"
	"github.com/billslocker/backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// formError is a request body that could not be read as a form.
type formError struct {
	msg string
}

func (e *formError) Error() string {
	return e.msg
}

// writeError maps service and validation errors onto status codes and the
// {msg, code} body.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		verr *models.ValidationError
		ferr *formError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr))
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(models.CodeInvalidForm, ferr.msg))
	case errors.Is(err, services.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(models.CodeInvalidID, "Invalid item ID"))
	case errors.Is(err, services.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse(models.CodeNotFound, "Item not found"))
	case errors.Is(err, services.ErrUnsupportedFileType):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(models.CodeUnsupportedFileType,
			"Only images (jpeg, jpg, png) and PDFs are allowed"))
	case errors.Is(err, services.ErrFileTooLarge):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(models.CodeFileTooLarge,
			"Receipt file is too large"))
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse(models.CodeInternalError, "Server Error"))
	}
}
