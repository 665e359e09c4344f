package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billslocker/backend/internal/models"
)

func strPtr(s string) *string { return &s }

func newItem(title string, category models.Category) *models.Item {
	return &models.Item{
		Title:        title,
		Description:  "bought at the corner shop",
		PurchaseDate: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		Category:     category,
	}
}

// runItemStoreSuite checks the behaviour every ItemStore backend shares.
func runItemStoreSuite(t *testing.T, open func(t *testing.T) ItemStore) {
	ctx := context.Background()

	t.Run("create assigns identity", func(t *testing.T) {
		store := open(t)
		before := time.Now().UTC().Add(-time.Second)

		created, err := store.Create(ctx, newItem("Kettle", models.CategoryAppliances))
		require.NoError(t, err)
		assert.True(t, models.ValidID(created.ID))
		assert.Empty(t, created.ReceiptPath)
		assert.True(t, created.CreatedAt.After(before))
		assert.False(t, created.CreatedAt.After(time.Now().UTC()))

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Kettle", got.Title)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, created.PurchaseDate.Equal(got.PurchaseDate))
		assert.Nil(t, got.ExpiryDate)
		assert.Nil(t, got.Price)
	})

	t.Run("create keeps optional fields", func(t *testing.T) {
		store := open(t)
		item := newItem("Washer", models.CategoryAppliances)
		exp := time.Date(2027, 2, 10, 0, 0, 0, 0, time.UTC)
		price := decimal.RequireFromString("649.99")
		item.ExpiryDate = &exp
		item.Price = &price
		item.ReceiptPath = "/uploads/1700000000000-abcd1234.pdf"

		created, err := store.Create(ctx, item)
		require.NoError(t, err)

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ExpiryDate)
		assert.True(t, exp.Equal(*got.ExpiryDate))
		require.NotNil(t, got.Price)
		assert.True(t, price.Equal(*got.Price), "price %s", got.Price)
		assert.Equal(t, item.ReceiptPath, got.ReceiptPath)
	})

	t.Run("create rejects missing title without writing", func(t *testing.T) {
		store := open(t)
		_, err := store.Create(ctx, newItem("", models.CategoryOther))

		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.True(t, verr.Has("title"))

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("create rejects unknown category", func(t *testing.T) {
		store := open(t)
		_, err := store.Create(ctx, newItem("Car", "vehicles"))

		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.True(t, verr.Has("category"))
	})

	t.Run("list is newest first", func(t *testing.T) {
		store := open(t)
		var ids []string
		for _, title := range []string{"first", "second", "third"} {
			created, err := store.Create(ctx, newItem(title, models.CategoryOther))
			require.NoError(t, err)
			ids = append(ids, created.ID)
			time.Sleep(2 * time.Millisecond)
		}

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})
		for i := 1; i < len(all); i++ {
			assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
		}
	})

	t.Run("list on empty store", func(t *testing.T) {
		store := open(t)
		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)
	})

	t.Run("get distinguishes bad and unknown ids", func(t *testing.T) {
		store := open(t)
		_, err := store.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, ErrInvalidID)

		_, err = store.GetByID(ctx, models.NewID())
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("update merges supplied fields only", func(t *testing.T) {
		store := open(t)
		item := newItem("Phone", models.CategoryElectronics)
		item.ReceiptPath = "/uploads/old.png"
		created, err := store.Create(ctx, item)
		require.NoError(t, err)

		updated, err := store.UpdateByID(ctx, created.ID, &models.ItemPatch{Title: strPtr("Phone 2")})
		require.NoError(t, err)
		assert.Equal(t, "Phone 2", updated.Title)
		assert.Equal(t, "/uploads/old.png", updated.ReceiptPath)
		assert.Equal(t, created.Description, updated.Description)
		assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Phone 2", got.Title)
		assert.Equal(t, "/uploads/old.png", got.ReceiptPath)
	})

	t.Run("update replaces receipt path", func(t *testing.T) {
		store := open(t)
		item := newItem("Tablet", models.CategoryElectronics)
		item.ReceiptPath = "/uploads/old.png"
		created, err := store.Create(ctx, item)
		require.NoError(t, err)

		updated, err := store.UpdateByID(ctx, created.ID, &models.ItemPatch{ReceiptPath: strPtr("/uploads/new.pdf")})
		require.NoError(t, err)
		assert.Equal(t, "/uploads/new.pdf", updated.ReceiptPath)
	})

	t.Run("update clears optional fields", func(t *testing.T) {
		store := open(t)
		item := newItem("Chair", models.CategoryFurniture)
		price := decimal.RequireFromString("80")
		exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		item.Price = &price
		item.ExpiryDate = &exp
		created, err := store.Create(ctx, item)
		require.NoError(t, err)

		updated, err := store.UpdateByID(ctx, created.ID, &models.ItemPatch{ClearPrice: true, ClearExpiryDate: true})
		require.NoError(t, err)
		assert.Nil(t, updated.Price)
		assert.Nil(t, updated.ExpiryDate)

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Price)
		assert.Nil(t, got.ExpiryDate)
	})

	t.Run("update validates merged document", func(t *testing.T) {
		store := open(t)
		created, err := store.Create(ctx, newItem("Lamp", models.CategoryFurniture))
		require.NoError(t, err)

		bad := models.Category("vehicles")
		_, err = store.UpdateByID(ctx, created.ID, &models.ItemPatch{Category: &bad})
		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr))

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CategoryFurniture, got.Category)
	})

	t.Run("update unknown and bad ids", func(t *testing.T) {
		store := open(t)
		_, err := store.UpdateByID(ctx, models.NewID(), &models.ItemPatch{Title: strPtr("x")})
		assert.ErrorIs(t, err, ErrItemNotFound)

		_, err = store.UpdateByID(ctx, "123", &models.ItemPatch{Title: strPtr("x")})
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("delete", func(t *testing.T) {
		store := open(t)
		created, err := store.Create(ctx, newItem("Desk", models.CategoryFurniture))
		require.NoError(t, err)

		require.NoError(t, store.DeleteByID(ctx, created.ID))
		_, err = store.GetByID(ctx, created.ID)
		assert.ErrorIs(t, err, ErrItemNotFound)

		assert.ErrorIs(t, store.DeleteByID(ctx, created.ID), ErrItemNotFound)
		assert.ErrorIs(t, store.DeleteByID(ctx, "zzz"), ErrInvalidID)
	})
}
