package catalog

import (
	"math"
	"strconv"
	"strings"
)

// Part represents one catalog entry as the marketplace API returns it.
// The API is inconsistent about field presence, so everything except
// SKU is optional in practice.
type Part struct {
	ID           string   `json:"id,omitempty"`
	SKU          string   `json:"sku"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand,omitempty"`
	Price        float64  `json:"price"`
	Category     string   `json:"category,omitempty"`
	CategoryPath []string `json:"categoryPath,omitempty"`
}

// CategoryLabel joins the category path with " / ", falling back to the
// flat category field, then "Other".
func (p Part) CategoryLabel() string {
	if len(p.CategoryPath) > 0 {
		return strings.Join(p.CategoryPath, " / ")
	}
	if p.Category != "" {
		return p.Category
	}
	return "Other"
}

// PriceEntry is the value side of the price lookup table.
type PriceEntry struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
}

// PriceLookup maps SKU to name and unit price. It is rebuilt from
// scratch on every catalog fetch and never mutated in place; consumers
// treat it as a read-only snapshot.
type PriceLookup map[string]PriceEntry

// BuildPriceLookup indexes a raw catalog payload by SKU. The backend
// sometimes returns a bare array and sometimes wraps it under one of a
// few conventional keys, so the payload is probed rather than decoded
// into a fixed shape. Malformed input yields an empty table, never an
// error; missing price data is a valid state the UI renders as a
// placeholder.
func BuildPriceLookup(payload any) PriceLookup {
	lookup := PriceLookup{}
	for _, rec := range extractRecords(payload) {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		sku := asString(m["sku"])
		if sku == "" {
			// cannot index a record without its join key
			continue
		}
		lookup[sku] = PriceEntry{
			Name:      asString(m["name"]),
			UnitPrice: asPrice(m["price"]),
		}
	}
	return lookup
}

// PartsFromPayload decodes the same variable-shape payload into Parts.
// Records without a SKU are skipped for the same indexing reason.
func PartsFromPayload(payload any) []Part {
	var parts []Part
	for _, rec := range extractRecords(payload) {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		sku := asString(m["sku"])
		if sku == "" {
			continue
		}
		p := Part{
			ID:       asString(m["id"]),
			SKU:      sku,
			Name:     asString(m["name"]),
			Brand:    asString(m["brand"]),
			Price:    asPrice(m["price"]),
			Category: asString(m["category"]),
		}
		if raw, ok := m["categoryPath"].([]any); ok {
			for _, seg := range raw {
				if s := asString(seg); s != "" {
					p.CategoryPath = append(p.CategoryPath, s)
				}
			}
		}
		parts = append(parts, p)
	}
	return parts
}

// wrapperKeys are probed in order when the payload is not a bare array.
var wrapperKeys = []string{"items", "data", "parts", "products"}

func extractRecords(payload any) []any {
	if arr, ok := payload.([]any); ok {
		return arr
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range wrapperKeys {
		if arr, ok := m[key].([]any); ok {
			return arr
		}
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asPrice coerces the price field to a finite number, defaulting to 0.
// The API has been seen returning both numbers and numeric strings.
func asPrice(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
