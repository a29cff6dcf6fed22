package catalog

import (
	"context"
	"net/url"
	"strings"
)

// Backend is the slice of the API client the catalog needs.
type Backend interface {
	Get(ctx context.Context, path string, out any) error
}

// Service fetches and shapes catalog data. It holds no state; every
// call produces a fresh snapshot.
type Service struct {
	api Backend
}

func NewService(api Backend) *Service {
	return &Service{api: api}
}

// Parts fetches the catalog and returns both the decoded parts and the
// price lookup built from the same payload, so the two can never drift
// within one render cycle.
func (s *Service) Parts(ctx context.Context) ([]Part, PriceLookup, error) {
	var payload any
	if err := s.api.Get(ctx, "/parts", &payload); err != nil {
		return nil, nil, err
	}
	return PartsFromPayload(payload), BuildPriceLookup(payload), nil
}

// Lookup fetches the catalog and returns only the price table.
func (s *Service) Lookup(ctx context.Context) (PriceLookup, error) {
	var payload any
	if err := s.api.Get(ctx, "/parts", &payload); err != nil {
		return nil, err
	}
	return BuildPriceLookup(payload), nil
}

// Filter applies the storefront's search box semantics: term matches
// name or SKU case-insensitively, category matches the joined label.
// An empty term or the category "all" matches everything.
func Filter(parts []Part, term, category string) []Part {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.SKU), term) {
			continue
		}
		if category != "" && category != "all" && p.CategoryLabel() != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Inventory is the stock record for one SKU.
type Inventory struct {
	SKU         string `json:"sku"`
	QtyOnHand   int    `json:"qtyOnHand"`
	QtyReserved int    `json:"qtyReserved"`
}

// Available is on-hand minus reserved, floored at zero.
func (inv Inventory) Available() int {
	if n := inv.QtyOnHand - inv.QtyReserved; n > 0 {
		return n
	}
	return 0
}

// Inventory fetches the stock record for one SKU.
func (s *Service) Inventory(ctx context.Context, sku string) (Inventory, error) {
	var inv Inventory
	if err := s.api.Get(ctx, "/inventory/"+url.PathEscape(sku), &inv); err != nil {
		return Inventory{}, err
	}
	if inv.SKU == "" {
		inv.SKU = sku
	}
	return inv, nil
}

// LowRow is one row of the low-stock alert table.
type LowRow struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Available int    `json:"available"`
}

// ShapeLowStock applies the admin table's client-side shaping: either
// hide zero-availability rows entirely, or cap how many zero rows are
// shown so they don't drown out the actionable ones.
func ShapeLowStock(rows []LowRow, hideZero bool, zeroCap int) []LowRow {
	if hideZero {
		out := make([]LowRow, 0, len(rows))
		for _, r := range rows {
			if r.Available > 0 {
				out = append(out, r)
			}
		}
		return out
	}
	var zeros, nonZeros []LowRow
	for _, r := range rows {
		if r.Available <= 0 {
			zeros = append(zeros, r)
		} else {
			nonZeros = append(nonZeros, r)
		}
	}
	if zeroCap < 0 {
		zeroCap = 0
	}
	if len(zeros) > zeroCap {
		zeros = zeros[:zeroCap]
	}
	return append(zeros, nonZeros...)
}
