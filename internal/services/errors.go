package services

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrItemNotFound        = errors.New("item not found")
	ErrInvalidID           = errors.New("invalid item id")
	ErrUnsupportedFileType = errors.New("unsupported receipt file type: images (jpeg, jpg, png) and PDFs only")
	ErrFileTooLarge        = errors.New("receipt file too large")
)

// StorageError is an unexpected persistence failure. It is never retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: errors.WithStack(err)}
}
