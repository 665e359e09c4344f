package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/models"
	"github.com/billslocker/backend/internal/services"
)

type fixture struct {
	dataDir   string
	uploadDir string
	items     *services.MemoryItemService
	receipts  *services.ReceiptService
}

// newFixture points lockerctl at a snapshot-backed memory store and an upload
// dir, both under a temp dir.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		dataDir:   filepath.Join(root, "data"),
		uploadDir: filepath.Join(root, "uploads"),
	}

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DATA_DIR", f.dataDir)
	t.Setenv("UPLOAD_DIR", f.uploadDir)
	t.Setenv("LOG_LEVEL", "error")

	var err error
	f.items, err = services.NewMemoryItemService(f.dataDir, zap.NewNop())
	require.NoError(t, err)
	f.receipts, err = services.NewReceiptService(f.uploadDir, 0)
	require.NoError(t, err)
	return f
}

func (f *fixture) addItem(t *testing.T, title string, category models.Category, receiptPath string) {
	t.Helper()
	_, err := f.items.Create(context.Background(), &models.Item{
		Title:        title,
		Description:  strings.ToLower(title) + " receipt",
		PurchaseDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Category:     category,
		ReceiptPath:  receiptPath,
	})
	require.NoError(t, err)
}

// addReceipt stores a file and backdates it by age.
func (f *fixture) addReceipt(t *testing.T, name string, age time.Duration) *services.StoredReceipt {
	t.Helper()
	stored, err := f.receipts.Save(name, "application/pdf", strings.NewReader(name))
	require.NoError(t, err)
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(f.uploadDir, stored.Name), mtime, mtime))
	return stored
}

func (f *fixture) exists(name string) bool {
	_, err := os.Stat(filepath.Join(f.uploadDir, name))
	return err == nil
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	envFile := filepath.Join(t.TempDir(), "none.env")
	cmd.SetArgs(append([]string{"--env", envFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestOrphansScan(t *testing.T) {
	f := newFixture(t)
	kept := f.addReceipt(t, "kept.pdf", 2*time.Hour)
	f.addItem(t, "Television", models.CategoryElectronics, kept.Path)
	stale := f.addReceipt(t, "stale.pdf", 2*time.Hour)
	fresh := f.addReceipt(t, "fresh.pdf", time.Minute)

	out, err := run(t, "orphans", "scan")
	require.NoError(t, err)
	assert.Contains(t, out, stale.Name)
	assert.NotContains(t, out, fresh.Name)
	assert.NotContains(t, out, kept.Name)
	assert.Contains(t, out, "1 of 3 receipt files orphaned")
	assert.Contains(t, out, "1 unreferenced files skipped as too recent")

	assert.True(t, f.exists(stale.Name), "scan never deletes")
}

func TestOrphansPrune(t *testing.T) {
	f := newFixture(t)
	kept := f.addReceipt(t, "kept.pdf", 2*time.Hour)
	f.addItem(t, "Television", models.CategoryElectronics, kept.Path)
	stale := f.addReceipt(t, "stale.pdf", 2*time.Hour)
	fresh := f.addReceipt(t, "fresh.pdf", time.Minute)

	out, err := run(t, "orphans", "prune", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 3 receipt files would remove")
	assert.True(t, f.exists(stale.Name))

	out, err = run(t, "orphans", "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 3 receipt files removed")
	assert.False(t, f.exists(stale.Name))
	assert.True(t, f.exists(kept.Name))
	assert.True(t, f.exists(fresh.Name))

	_, err = run(t, "orphans", "prune", "--min-age", "0s")
	require.NoError(t, err)
	assert.False(t, f.exists(fresh.Name))
	assert.True(t, f.exists(kept.Name))
}

func TestOrphans_RefuseVolatileMemoryStore(t *testing.T) {
	f := newFixture(t)
	t.Setenv("DATA_DIR", "")
	old := f.addReceipt(t, "old.pdf", 2*time.Hour)

	for _, args := range [][]string{
		{"orphans", "scan"},
		{"orphans", "prune"},
		{"orphans", "prune", "--min-age", "0s"},
	} {
		_, err := run(t, args...)
		assert.ErrorIs(t, err, errVolatileStore, strings.Join(args, " "))
	}
	assert.True(t, f.exists(old.Name))
}

func TestItemsList(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "Fridge", models.CategoryAppliances, "")
	f.addItem(t, "Sofa", models.CategoryFurniture, "")
	f.addItem(t, "Freezer", models.CategoryAppliances, "")

	out, err := run(t, "items", "list")
	require.NoError(t, err)
	for _, title := range []string{"Fridge", "Sofa", "Freezer"} {
		assert.Contains(t, out, title)
	}

	out, err = run(t, "items", "list", "--q", "FRI")
	require.NoError(t, err)
	assert.Contains(t, out, "Fridge")
	assert.NotContains(t, out, "Sofa")
	assert.NotContains(t, out, "Freezer")

	out, err = run(t, "items", "list", "--category", "appliances")
	require.NoError(t, err)
	assert.Contains(t, out, "Fridge")
	assert.Contains(t, out, "Freezer")
	assert.NotContains(t, out, "Sofa")
}
