package product

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
)

// SortBy names the supported catalog orderings.
type SortBy string

const (
	SortNone       SortBy = ""
	SortPriceAsc   SortBy = "priceAsc"
	SortPriceDesc  SortBy = "priceDesc"
	SortPopularity SortBy = "popularity"
)

// MaxListLimit caps a single catalog page.
const MaxListLimit = 100

// NewArrivalsLimit is the size of the new-arrivals shelf.
const NewArrivalsLimit = 8

// ParseSortBy validates a sortBy query value.
func ParseSortBy(value string) (SortBy, error) {
	switch SortBy(strings.TrimSpace(value)) {
	case SortNone:
		return SortNone, nil
	case SortPriceAsc:
		return SortPriceAsc, nil
	case SortPriceDesc:
		return SortPriceDesc, nil
	case SortPopularity:
		return SortPopularity, nil
	}
	return SortNone, pkgerrors.New(pkgerrors.CodeValidation, "invalid sortBy").
		WithDetails(map[string]any{"field": "sortBy", "allowed": []SortBy{SortPriceAsc, SortPriceDesc, SortPopularity}})
}

// ListFilters describe the supported filter knobs for the catalog listing.
// Empty fields do not constrain the result.
type ListFilters struct {
	Collection string
	Category   string
	Materials  []string
	Brands     []string
	Sizes      []string
	Colors     []string
	Gender     enums.Gender
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Search     string
	SortBy     SortBy
	Limit      int
}

// Normalize drops the "all" wildcards and validates ranges.
func (f ListFilters) Normalize() (ListFilters, error) {
	if strings.EqualFold(strings.TrimSpace(f.Collection), "all") {
		f.Collection = ""
	}
	if strings.EqualFold(strings.TrimSpace(f.Category), "all") {
		f.Category = ""
	}
	f.Search = strings.TrimSpace(f.Search)
	if f.Limit < 0 || f.Limit > MaxListLimit {
		return f, pkgerrors.New(pkgerrors.CodeValidation, "limit out of range").
			WithDetails(map[string]any{"field": "limit", "min": 0, "max": MaxListLimit})
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return f, pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot exceed maxPrice")
	}
	if f.Gender != "" && !f.Gender.IsValid() {
		return f, pkgerrors.New(pkgerrors.CodeValidation, "invalid gender")
	}
	if _, err := ParseSortBy(string(f.SortBy)); err != nil {
		return f, err
	}
	return f, nil
}

// SplitList turns a comma separated query value into trimmed, non-empty entries.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
