package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/db"
	"github.com/billslocker/backend/internal/models"
)

// sqliteTime is fixed width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000Z"

const itemColumns = `id, title, description, purchase_date, expiry_date, category, price, receipt_path, created_at`

type SQLiteItemService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteItemService(ctx context.Context, path string, logger *zap.Logger) (*SQLiteItemService, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, storageErr("open sqlite", err)
	}
	if err := db.EnsureSchema(ctx, database); err != nil {
		database.Close()
		return nil, storageErr("sqlite schema", err)
	}
	logger.Info("SQLite opened", zap.String("path", path))
	return NewSQLiteItemServiceFromDB(database, logger), nil
}

// NewSQLiteItemServiceFromDB wraps an open database whose schema is in place.
func NewSQLiteItemServiceFromDB(database *sql.DB, logger *zap.Logger) *SQLiteItemService {
	return &SQLiteItemService{db: database, logger: logger}
}

func (s *SQLiteItemService) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *SQLiteItemService) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	doc, err := prepareNew(item)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Description,
		formatTime(doc.PurchaseDate), nullTime(doc.ExpiryDate),
		string(doc.Category), nullPrice(doc.Price), nullString(doc.ReceiptPath),
		formatTime(doc.CreatedAt),
	)
	if err != nil {
		return nil, storageErr("insert item", err)
	}
	return &doc, nil
}

func (s *SQLiteItemService) GetByID(ctx context.Context, id string) (*models.Item, error) {
	if !models.ValidID(id) {
		return nil, ErrInvalidID
	}
	return s.get(ctx, s.db, id)
}

func (s *SQLiteItemService) ListAll(ctx context.Context) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storageErr("list items", err)
	}
	defer rows.Close()

	items := make([]models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scan item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list items", err)
	}
	return items, nil
}

func (s *SQLiteItemService) UpdateByID(ctx context.Context, id string, patch *models.ItemPatch) (*models.Item, error) {
	if !models.ValidID(id) {
		return nil, ErrInvalidID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin update", err)
	}
	defer tx.Rollback()

	current, err := s.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	merged := patch.Apply(*current)
	if verr := merged.Validate(); verr != nil {
		return nil, verr
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET title = ?, description = ?, purchase_date = ?, expiry_date = ?,
		 category = ?, price = ?, receipt_path = ? WHERE id = ?`,
		merged.Title, merged.Description,
		formatTime(merged.PurchaseDate), nullTime(merged.ExpiryDate),
		string(merged.Category), nullPrice(merged.Price), nullString(merged.ReceiptPath),
		id,
	)
	if err != nil {
		return nil, storageErr("update item", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit update", err)
	}
	return &merged, nil
}

func (s *SQLiteItemService) DeleteByID(ctx context.Context, id string) error {
	if !models.ValidID(id) {
		return ErrInvalidID
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete item", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete item", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteItemService) get(ctx context.Context, q queryer, id string) (*models.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, storageErr("get item", err)
	}
	return item, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (*models.Item, error) {
	var (
		item                 models.Item
		category             string
		purchase, created    string
		expiry, price, recpt sql.NullString
	)
	if err := sc.Scan(&item.ID, &item.Title, &item.Description, &purchase, &expiry,
		&category, &price, &recpt, &created); err != nil {
		return nil, err
	}

	var err error
	if item.PurchaseDate, err = time.Parse(sqliteTime, purchase); err != nil {
		return nil, err
	}
	if item.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
		return nil, err
	}
	if expiry.Valid {
		t, err := time.Parse(sqliteTime, expiry.String)
		if err != nil {
			return nil, err
		}
		item.ExpiryDate = &t
	}
	if price.Valid {
		d, err := decimal.NewFromString(price.String)
		if err != nil {
			return nil, err
		}
		item.Price = &d
	}
	item.Category = models.Category(category)
	item.ReceiptPath = recpt.String
	return &item, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullPrice(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
