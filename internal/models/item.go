package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryFurniture   Category = "furniture"
	CategoryAppliances  Category = "appliances"
	CategoryOther       Category = "other"
)

// ItemCategories is the closed set of categories an item may carry.
var ItemCategories = []Category{
	CategoryElectronics,
	CategoryFurniture,
	CategoryAppliances,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range ItemCategories {
		if c == known {
			return true
		}
	}
	return false
}

type Item struct {
	ID           string           `json:"_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	PurchaseDate time.Time        `json:"purchaseDate"`
	ExpiryDate   *time.Time       `json:"expiryDate,omitempty"`
	Category     Category         `json:"category"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	ReceiptPath  string           `json:"receiptPath,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Validate checks a complete document. Stores call it before every write.
func (i *Item) Validate() *ValidationError {
	verr := &ValidationError{}

	if strings.TrimSpace(i.Title) == "" {
		verr.Add("title", "Title is required")
	}
	if i.PurchaseDate.IsZero() {
		verr.Add("purchaseDate", "Purchase date is required")
	}
	switch {
	case i.Category == "":
		verr.Add("category", "Category is required")
	case !i.Category.Valid():
		verr.Add("category", "Category must be one of electronics, furniture, appliances, other")
	}
	if i.Price != nil && i.Price.IsNegative() {
		verr.Add("price", "Price cannot be negative")
	}

	return verr.OrNil()
}

// ItemPatch is a partial update. A nil field leaves the stored value unchanged;
// the Clear flags remove an optional value.
type ItemPatch struct {
	Title           *string
	Description     *string
	PurchaseDate    *time.Time
	ExpiryDate      *time.Time
	ClearExpiryDate bool
	Category        *Category
	Price           *decimal.Decimal
	ClearPrice      bool
	ReceiptPath     *string
}

// IsEmpty reports whether applying the patch would change nothing.
func (p *ItemPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.PurchaseDate == nil &&
		p.ExpiryDate == nil && !p.ClearExpiryDate && p.Category == nil &&
		p.Price == nil && !p.ClearPrice && p.ReceiptPath == nil
}

// Apply returns a copy of item with the patch merged in. ID and CreatedAt are
// never touched.
func (p *ItemPatch) Apply(item Item) Item {
	if p.Title != nil {
		item.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		item.Description = strings.TrimSpace(*p.Description)
	}
	if p.PurchaseDate != nil {
		item.PurchaseDate = p.PurchaseDate.UTC()
	}
	if p.ClearExpiryDate {
		item.ExpiryDate = nil
	} else if p.ExpiryDate != nil {
		exp := p.ExpiryDate.UTC()
		item.ExpiryDate = &exp
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.ClearPrice {
		item.Price = nil
	} else if p.Price != nil {
		price := *p.Price
		item.Price = &price
	}
	if p.ReceiptPath != nil {
		item.ReceiptPath = *p.ReceiptPath
	}
	return item
}

// ValidateNew checks a create payload. Unlike an update, the required fields
// must all be supplied.
func ValidateNew(p *ItemPatch) *ValidationError {
	item := p.Apply(Item{})
	return item.Validate()
}

// ValidatePatch checks only the fields a patch supplies, so an update request
// can be rejected before the stored document is read.
func ValidatePatch(p *ItemPatch) *ValidationError {
	verr := &ValidationError{}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		verr.Add("title", "Title is required")
	}
	if p.PurchaseDate != nil && p.PurchaseDate.IsZero() {
		verr.Add("purchaseDate", "Purchase date is required")
	}
	if p.Category != nil {
		switch {
		case *p.Category == "":
			verr.Add("category", "Category is required")
		case !p.Category.Valid():
			verr.Add("category", "Category must be one of electronics, furniture, appliances, other")
		}
	}
	if p.Price != nil && p.Price.IsNegative() {
		verr.Add("price", "Price cannot be negative")
	}
	return verr.OrNil()
}

// NewID returns a fresh item identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id is a well-formed item identifier.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// Now returns the current time truncated to the millisecond precision every
// backend can round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
