package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/models"
)

// ItemStore persists Item records. Every backend validates documents with
// models.Item.Validate before writing and returns ErrInvalidID for malformed
// identifiers before looking anything up.
type ItemStore interface {
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	GetByID(ctx context.Context, id string) (*models.Item, error)
	// ListAll returns every item, newest createdAt first.
	ListAll(ctx context.Context) ([]models.Item, error)
	UpdateByID(ctx context.Context, id string, patch *models.ItemPatch) (*models.Item, error)
	DeleteByID(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

// Store drivers accepted by OpenItemStore.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// StoreOptions selects and configures a backend.
type StoreOptions struct {
	Driver        string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string
	DataDir       string
}

// OpenItemStore connects the configured backend.
func OpenItemStore(ctx context.Context, opts StoreOptions, logger *zap.Logger) (ItemStore, error) {
	var (
		store ItemStore
		err   error
	)
	switch opts.Driver {
	case DriverMongo:
		store, err = NewMongoItemService(ctx, opts.MongoURI, opts.MongoDatabase, logger)
	case DriverSQLite:
		store, err = NewSQLiteItemService(ctx, opts.SQLitePath, logger)
	case DriverMemory:
		store, err = NewMemoryItemService(opts.DataDir, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// prepareNew stamps identity fields and validates a document about to be
// inserted.
func prepareNew(item *models.Item) (models.Item, error) {
	doc := *item
	doc.ID = models.NewID()
	doc.CreatedAt = models.Now()
	doc.Title = strings.TrimSpace(doc.Title)
	doc.Description = strings.TrimSpace(doc.Description)
	doc.PurchaseDate = doc.PurchaseDate.UTC()
	if doc.ExpiryDate != nil {
		exp := doc.ExpiryDate.UTC()
		doc.ExpiryDate = &exp
	}
	if verr := doc.Validate(); verr != nil {
		return models.Item{}, verr
	}
	return doc, nil
}
