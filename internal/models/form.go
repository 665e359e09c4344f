package models

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Form field names shared by the API and the client.
const (
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldPurchaseDate = "purchaseDate"
	FieldExpiryDate   = "expiryDate"
	FieldCategory     = "category"
	FieldPrice        = "price"
	FieldReceipt      = "receipt"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	// Date.prototype.toString() output, once the zone name is stripped.
	"Mon Jan 02 2006 15:04:05 GMT-0700",
}

// ParseDate accepts the date shapes browsers and API callers send.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, " ("); i > 0 {
		raw = raw[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseItemForm turns submitted form values into a patch.
//
// A field that is absent leaves the stored value alone. An optional field that
// is present but blank clears it. A required field that is present but blank
// is a validation error.
func ParseItemForm(values url.Values) (*ItemPatch, *ValidationError) {
	patch := &ItemPatch{}
	verr := &ValidationError{}

	if raw, ok := lookup(values, FieldTitle); ok {
		title := strings.TrimSpace(raw)
		if title == "" {
			verr.Add(FieldTitle, "Title is required")
		}
		patch.Title = &title
	}

	if raw, ok := lookup(values, FieldDescription); ok {
		desc := strings.TrimSpace(raw)
		patch.Description = &desc
	}

	if raw, ok := lookup(values, FieldPurchaseDate); ok {
		if strings.TrimSpace(raw) == "" {
			verr.Add(FieldPurchaseDate, "Purchase date is required")
		} else if t, ok := ParseDate(raw); ok {
			patch.PurchaseDate = &t
		} else {
			verr.Add(FieldPurchaseDate, "Purchase date is not a valid date")
		}
	}

	if raw, ok := lookup(values, FieldExpiryDate); ok {
		if isBlank(raw) {
			patch.ClearExpiryDate = true
		} else if t, ok := ParseDate(raw); ok {
			patch.ExpiryDate = &t
		} else {
			verr.Add(FieldExpiryDate, "Expiry date is not a valid date")
		}
	}

	if raw, ok := lookup(values, FieldCategory); ok {
		// Form input is case-folded here; stored items only ever carry the
		// lower-case names, which Item.Validate checks exactly.
		cat := Category(strings.ToLower(strings.TrimSpace(raw)))
		patch.Category = &cat
	}

	if raw, ok := lookup(values, FieldPrice); ok {
		if isBlank(raw) {
			patch.ClearPrice = true
		} else if price, err := decimal.NewFromString(strings.TrimSpace(raw)); err == nil {
			patch.Price = &price
		} else {
			verr.Add(FieldPrice, "Price must be a number")
		}
	}

	verr.Merge(ValidatePatch(patch))
	return patch, verr.OrNil()
}

// EncodeItemForm is the inverse of ParseItemForm for the fields a patch sets.
func EncodeItemForm(p *ItemPatch) url.Values {
	values := url.Values{}
	if p.Title != nil {
		values.Set(FieldTitle, *p.Title)
	}
	if p.Description != nil {
		values.Set(FieldDescription, *p.Description)
	}
	if p.PurchaseDate != nil {
		values.Set(FieldPurchaseDate, p.PurchaseDate.UTC().Format(time.RFC3339))
	}
	if p.ClearExpiryDate {
		values.Set(FieldExpiryDate, "")
	} else if p.ExpiryDate != nil {
		values.Set(FieldExpiryDate, p.ExpiryDate.UTC().Format(time.RFC3339))
	}
	if p.Category != nil {
		values.Set(FieldCategory, string(*p.Category))
	}
	if p.ClearPrice {
		values.Set(FieldPrice, "")
	} else if p.Price != nil {
		values.Set(FieldPrice, p.Price.String())
	}
	return values
}

func lookup(values url.Values, key string) (string, bool) {
	v, ok := values[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// isBlank treats the strings a browser sends for an unset value as empty.
func isBlank(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "", "null", "undefined":
		return true
	}
	return false
}
