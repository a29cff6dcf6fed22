package order

import (
	"parts-storefront/internal/cart"
	"parts-storefront/internal/catalog"
)

// Statuses an order can carry. Transitions are issued by admin actions
// only; this service never invents one.
var AllowedStatuses = []string{"pending", "paid", "shipped", "delivered", "cancelled"}

// paidLike statuses count toward revenue.
var paidLike = map[string]bool{"paid": true, "shipped": true, "delivered": true}

// Order is an external entity, read-only here except for status
// transitions. Totals is the server's optional money block; when absent
// or partial the client computes a projection.
type Order struct {
	OrderID   string             `json:"orderId"`
	Status    string             `json:"status"`
	Items     []cart.RawItem     `json:"items"`
	Totals    *cart.ServerTotals `json:"totals,omitempty"`
	UserEmail string             `json:"userEmail,omitempty"`
	CreatedAt string             `json:"createdAt,omitempty"`
	UpdatedAt string             `json:"updatedAt,omitempty"`
}

// StatusAllowed reports whether s is a known order status.
func StatusAllowed(s string) bool {
	for _, allowed := range AllowedStatuses {
		if s == allowed {
			return true
		}
	}
	return false
}

// Projection is an order enriched with resolved line items and totals.
type Projection struct {
	Order
	Lines  []cart.LineItem `json:"lines"`
	Totals cart.Totals     `json:"totals"`
}

// Project normalizes the order's items (historical price overrides
// preserved) and resolves totals with server figures taking precedence
// over the client calculation.
func Project(o Order, lookup catalog.PriceLookup) Projection {
	lines := cart.Normalize(o.Items, lookup)
	return Projection{
		Order:  o,
		Lines:  lines,
		Totals: cart.ComputeTotals(lines, o.Totals),
	}
}
