package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// LineItem is a product snapshot held by carts, checkouts and orders.
type LineItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Quantity  int             `json:"quantity"`
}

// Matches reports whether the line carries the (product, size, color) key.
func (l LineItem) Matches(productID uuid.UUID, size, color string) bool {
	return l.ProductID == productID && l.Size == size && l.Color == color
}

// Subtotal is price times quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineItems is a slice marshaled as JSONB.
type LineItems []LineItem

// Value serializes the items to JSON.
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSONB into the items slice.
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded LineItems
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*l = decoded
	return nil
}

// Find returns the index of the matching line, or -1.
func (l LineItems) Find(productID uuid.UUID, size, color string) int {
	for i, item := range l {
		if item.Matches(productID, size, color) {
			return i
		}
	}
	return -1
}

// Total sums every line subtotal.
func (l LineItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range l {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Quantity sums every line quantity.
func (l LineItems) Quantity() int {
	n := 0
	for _, item := range l {
		n += item.Quantity
	}
	return n
}

// Clone returns an independent copy so snapshots never alias their source.
func (l LineItems) Clone() LineItems {
	if l == nil {
		return nil
	}
	out := make(LineItems, len(l))
	copy(out, l)
	return out
}
