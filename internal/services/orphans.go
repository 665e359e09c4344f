package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/metrics"
	"github.com/billslocker/backend/internal/models"
)

// DefaultOrphanMinAge is how old an unreferenced file must be before
// lockerctl treats it as orphaned. Uploads are written before their item, so
// a younger file may belong to a request still in flight.
const DefaultOrphanMinAge = time.Hour

// OrphanScanner finds receipt files that no item references. A file becomes
// orphaned when its item record fails to save after the upload, when an item
// is deleted, or when an update replaces the receipt.
type OrphanScanner struct {
	items    ItemStore
	receipts *ReceiptService
	logger   *zap.Logger
	minAge   time.Duration
	now      func() time.Time
}

func NewOrphanScanner(items ItemStore, receipts *ReceiptService, logger *zap.Logger) *OrphanScanner {
	return &OrphanScanner{items: items, receipts: receipts, logger: logger, now: time.Now}
}

// WithMinAge makes the scanner ignore files modified less than d ago.
func (s *OrphanScanner) WithMinAge(d time.Duration) *OrphanScanner {
	if d < 0 {
		d = 0
	}
	s.minAge = d
	return s
}

// Scan lists the orphans without touching them. Files are listed before the
// items so an upload finishing mid-scan is either unseen or already
// referenced.
func (s *OrphanScanner) Scan(ctx context.Context) (*models.OrphanReport, error) {
	files, err := s.receipts.List()
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-s.minAge)

	referenced := make(map[string]bool, len(items))
	for _, item := range items {
		if name := ReceiptName(item.ReceiptPath); name != "" {
			referenced[name] = true
		}
	}

	report := &models.OrphanReport{
		Scanned: len(files),
		Orphans: make([]models.OrphanFile, 0),
	}
	for _, f := range files {
		if referenced[f.Name] {
			continue
		}
		if s.minAge > 0 && f.ModTime.After(cutoff) {
			report.Recent++
			continue
		}
		report.Orphans = append(report.Orphans, models.OrphanFile{
			Name:    f.Name,
			Path:    f.Path,
			Size:    f.Size,
			ModTime: f.ModTime.Format(time.RFC3339),
		})
	}

	metrics.OrphanedReceipts.Set(float64(len(report.Orphans)))
	s.logger.Info("orphan scan finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("orphans", len(report.Orphans)),
		zap.Int("recent", report.Recent),
		zap.Duration("min_age", s.minAge))
	return report, nil
}

// Prune scans and deletes every orphan found. With dryRun set it only
// reports. The returned report lists the files that were (or would be)
// removed.
func (s *OrphanScanner) Prune(ctx context.Context, dryRun bool) (*models.OrphanReport, error) {
	report, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return report, nil
	}

	for _, o := range report.Orphans {
		if err := s.receipts.Delete(o.Path); err != nil {
			return nil, err
		}
		s.logger.Info("orphaned receipt removed", zap.String("file", o.Name), zap.Int64("size", o.Size))
	}
	metrics.OrphanedReceipts.Set(0)
	return report, nil
}
