package cart

import (
	"parts-storefront/internal/catalog"
)

// LineItem is one canonical cart or order row. Quantity is always a
// positive integer; zero or negative quantities are removal operations,
// never valid line items.
type LineItem struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// PartRef is the priced sub-object some cart payloads embed per item.
type PartRef struct {
	ID    string   `json:"_id,omitempty"`
	SKU   string   `json:"sku,omitempty"`
	Name  string   `json:"name,omitempty"`
	Brand string   `json:"brand,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

// RawItem covers both item shapes the backend returns: a bare
// {sku, qty} pair, or an item embedding a priced part sub-object.
// UnitPriceOverride appears on historical order rows where the price at
// time of purchase must survive later catalog changes.
type RawItem struct {
	SKU               string   `json:"sku,omitempty"`
	Qty               int      `json:"qty"`
	UnitPriceOverride *float64 `json:"unitPriceOverride,omitempty"`
	Part              *PartRef `json:"partId,omitempty"`
}

// Normalize reconciles raw items into canonical line items, resolving
// unit price by precedence: explicit historical override, embedded part
// price, price lookup by SKU, zero. An item whose SKU is unknown to the
// lookup and has no embedded price is retained with price 0 rather than
// dropped; hiding it would understate what is physically in the cart.
// Rows without a positive quantity are not line items and are skipped.
func Normalize(raw []RawItem, lookup catalog.PriceLookup) []LineItem {
	items := make([]LineItem, 0, len(raw))
	for _, r := range raw {
		if r.Qty < 1 {
			continue
		}
		sku := r.SKU
		if sku == "" && r.Part != nil {
			sku = r.Part.SKU
			if sku == "" {
				sku = r.Part.ID
			}
		}

		item := LineItem{SKU: sku, Quantity: r.Qty}

		entry, found := lookup[sku]
		switch {
		case r.UnitPriceOverride != nil:
			item.UnitPrice = *r.UnitPriceOverride
		case r.Part != nil && r.Part.Price != nil:
			item.UnitPrice = *r.Part.Price
		case found:
			item.UnitPrice = entry.UnitPrice
		}

		if r.Part != nil && r.Part.Name != "" {
			item.Name = r.Part.Name
		} else if found {
			item.Name = entry.Name
		}

		items = append(items, item)
	}
	return items
}
