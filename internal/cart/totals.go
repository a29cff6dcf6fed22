package cart

// Totals is the client-side projection of a cart or order's money
// fields. It is a display calculation only; whenever the server sends
// its own figures, those win.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Grand    float64 `json:"grand"`
}

// ServerTotals is the optional, possibly partial totals block the
// server may attach to an order. Nil fields mean "not supplied".
type ServerTotals struct {
	Subtotal *float64 `json:"subtotal,omitempty"`
	Tax      *float64 `json:"tax,omitempty"`
	Grand    *float64 `json:"grand,omitempty"`
}

// ComputeTotals derives {subtotal, tax, grand} from the line items,
// then lets any server-supplied figure take precedence verbatim. The
// client never computes tax itself; tax rules are a backend concern, so
// tax stays 0 unless the server says otherwise. Pure and total: the
// empty list yields all zeros.
func ComputeTotals(items []LineItem, server *ServerTotals) Totals {
	var t Totals
	for _, item := range items {
		t.Subtotal += item.UnitPrice * float64(item.Quantity)
	}
	if server != nil && server.Subtotal != nil {
		t.Subtotal = *server.Subtotal
	}
	if server != nil && server.Tax != nil {
		t.Tax = *server.Tax
	}
	t.Grand = t.Subtotal + t.Tax
	if server != nil && server.Grand != nil {
		t.Grand = *server.Grand
	}
	return t
}
