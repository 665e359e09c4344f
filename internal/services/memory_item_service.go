package services

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/models"
	"github.com/billslocker/backend/internal/storage"
)

const snapshotFile = "items.json"

// MemoryItemService keeps items in a map. With a data dir it snapshots the
// whole map to JSON after every write and reloads it on start.
type MemoryItemService struct {
	mu       sync.RWMutex
	items    map[string]*models.Item
	snapshot *storage.JSONStore
	logger   *zap.Logger
}

// NewMemoryItemService returns a volatile store when dataDir is empty.
func NewMemoryItemService(dataDir string, logger *zap.Logger) (*MemoryItemService, error) {
	s := &MemoryItemService{
		items:  make(map[string]*models.Item),
		logger: logger,
	}
	if dataDir == "" {
		return s, nil
	}

	snap, err := storage.NewJSONStore(dataDir, snapshotFile)
	if err != nil {
		return nil, storageErr("open snapshot", err)
	}
	s.snapshot = snap
	found := snap.Exists()

	var loaded []models.Item
	if err := snap.Load(&loaded); err != nil {
		return nil, storageErr("load snapshot", err)
	}
	for i := range loaded {
		item := loaded[i]
		s.items[item.ID] = &item
	}
	logger.Info("memory item store loaded",
		zap.String("snapshot", snap.Path()),
		zap.Bool("found", found),
		zap.Int("items", len(s.items)))
	return s, nil
}

func (s *MemoryItemService) Create(_ context.Context, item *models.Item) (*models.Item, error) {
	doc, err := prepareNew(item)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[doc.ID] = &doc
	if err := s.persistLocked(); err != nil {
		delete(s.items, doc.ID)
		return nil, err
	}

	out := doc
	return &out, nil
}

func (s *MemoryItemService) GetByID(_ context.Context, id string) (*models.Item, error) {
	if !models.ValidID(id) {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, ErrItemNotFound
	}
	out := *item
	return &out, nil
}

func (s *MemoryItemService) ListAll(_ context.Context) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		results = append(results, *item)
	}
	sortNewestFirst(results)
	return results, nil
}

func (s *MemoryItemService) UpdateByID(_ context.Context, id string, patch *models.ItemPatch) (*models.Item, error) {
	if !models.ValidID(id) {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.items[id]
	if !exists {
		return nil, ErrItemNotFound
	}

	updated := patch.Apply(*current)
	if verr := updated.Validate(); verr != nil {
		return nil, verr
	}

	previous := *current
	s.items[id] = &updated
	if err := s.persistLocked(); err != nil {
		s.items[id] = &previous
		return nil, err
	}

	out := updated
	return &out, nil
}

func (s *MemoryItemService) DeleteByID(_ context.Context, id string) error {
	if !models.ValidID(id) {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return ErrItemNotFound
	}

	delete(s.items, id)
	if err := s.persistLocked(); err != nil {
		s.items[id] = item
		return err
	}
	return nil
}

func (s *MemoryItemService) Close(_ context.Context) error {
	return nil
}

// persistLocked writes the snapshot. Caller holds s.mu.
func (s *MemoryItemService) persistLocked() error {
	if s.snapshot == nil {
		return nil
	}
	all := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		all = append(all, *item)
	}
	sortNewestFirst(all)
	return storageErr("save snapshot", s.snapshot.Save(all))
}

// sortNewestFirst orders by createdAt descending. ObjectIDs grow with time, so
// the id breaks ties between items created in the same millisecond.
func sortNewestFirst(items []models.Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
}
