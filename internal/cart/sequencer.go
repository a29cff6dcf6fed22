package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"parts-storefront/internal/backend"
	"parts-storefront/internal/catalog"
)

var (
	// ErrInvalidQuantity rejects a non-positive add before any network
	// call. Adding must reflect explicit user intent exactly, so the
	// quantity is never silently clamped.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrBusy means a mutation for the same SKU is still in flight.
	ErrBusy = errors.New("another change to this item is still in progress")
)

// PartialMutationError marks the known inconsistency window of the
// delete-then-add decomposition: the delete succeeded but the add did
// not, so the line is gone. There is no compensating rollback; the
// mandatory post-mutation refetch shows the true state.
type PartialMutationError struct {
	SKU string
	Err error
}

func (e *PartialMutationError) Error() string {
	return fmt.Sprintf("cart line %s was removed but could not be re-added: %v", e.SKU, e.Err)
}

func (e *PartialMutationError) Unwrap() error { return e.Err }

// Contract selects which cart mutation primitives the deployed backend
// exposes.
type Contract int

const (
	// ContractUpsert: the backend accepts PUT with an absolute quantity.
	ContractUpsert Contract = iota
	// ContractDeleteThenAdd: only add/remove primitives exist, so
	// set-quantity decomposes into DELETE followed by POST.
	ContractDeleteThenAdd
)

// ParseContract maps the CART_CONTRACT config value to a Contract.
func ParseContract(s string) (Contract, error) {
	switch s {
	case "upsert":
		return ContractUpsert, nil
	case "delete-add":
		return ContractDeleteThenAdd, nil
	}
	return 0, fmt.Errorf("unknown cart contract %q", s)
}

// API is the slice of the backend client the sequencer uses.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, body, out any) error
}

// PriceSource provides the price lookup used to normalize the cart
// after each refetch. catalog.Service satisfies it.
type PriceSource interface {
	Lookup(ctx context.Context) (catalog.PriceLookup, error)
}

// CartState is the server-reconciled view of the cart after a fetch or
// mutation. Each fetch is the source of truth; it is never patched
// locally.
type CartState struct {
	Items  []LineItem `json:"items"`
	Totals Totals     `json:"totals"`
}

// Sequencer translates user cart intents into the minimal ordered
// backend calls the configured contract allows, guarding against
// concurrent mutations of the same SKU. Unrelated SKUs may mutate
// concurrently.
type Sequencer struct {
	api      API
	prices   PriceSource
	contract Contract

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSequencer(api API, prices PriceSource, contract Contract) *Sequencer {
	return &Sequencer{
		api:      api,
		prices:   prices,
		contract: contract,
		inFlight: make(map[string]struct{}),
	}
}

// cartEnvelope accepts both the wrapped and the bare cart payload.
type cartEnvelope struct {
	Cart *struct {
		Items []RawItem `json:"items"`
	} `json:"cart"`
	Items []RawItem `json:"items"`
}

// Cart fetches the authoritative cart and normalizes it against a
// fresh price lookup.
func (s *Sequencer) Cart(ctx context.Context) (CartState, error) {
	var envelope cartEnvelope
	if err := s.api.Get(ctx, "/cart", &envelope); err != nil {
		return CartState{}, err
	}
	raw := envelope.Items
	if envelope.Cart != nil {
		raw = envelope.Cart.Items
	}

	lookup, err := s.prices.Lookup(ctx)
	if err != nil {
		return CartState{}, err
	}

	items := Normalize(raw, lookup)
	return CartState{Items: items, Totals: ComputeTotals(items, nil)}, nil
}

type itemRequest struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty,omitempty"`
}

// SetQuantity sets the absolute quantity of a cart line. Quantities
// below 1 are a guarded no-op: removal is an explicit RemoveItem call,
// and a non-positive literal never reaches the wire. The returned state
// is always a fresh server fetch.
func (s *Sequencer) SetQuantity(ctx context.Context, sku string, qty int) (CartState, error) {
	if qty < 1 {
		return s.Cart(ctx)
	}
	if err := s.acquire(sku); err != nil {
		return CartState{}, err
	}
	defer s.release(sku)

	switch s.contract {
	case ContractDeleteThenAdd:
		// the add must wait for the delete's acknowledgment; firing it
		// concurrently risks the stale delete erasing the new line
		if err := s.api.Delete(ctx, "/cart/items", itemRequest{SKU: sku}, nil); err != nil {
			return CartState{}, err
		}
		if err := s.api.Post(ctx, "/cart/items", itemRequest{SKU: sku, Qty: qty}, nil); err != nil {
			return CartState{}, &PartialMutationError{SKU: sku, Err: err}
		}
	default:
		if err := s.api.Put(ctx, "/cart/items", itemRequest{SKU: sku, Qty: qty}, nil); err != nil {
			return CartState{}, err
		}
	}

	return s.Cart(ctx)
}

// AddToCart adds qty units of a SKU. The quantity must be positive.
func (s *Sequencer) AddToCart(ctx context.Context, sku string, qty int) (CartState, error) {
	if qty < 1 {
		return CartState{}, ErrInvalidQuantity
	}
	if err := s.acquire(sku); err != nil {
		return CartState{}, err
	}
	defer s.release(sku)

	if err := s.api.Post(ctx, "/cart/items", itemRequest{SKU: sku, Qty: qty}, nil); err != nil {
		return CartState{}, err
	}
	return s.Cart(ctx)
}

// RemoveItem deletes a cart line. Removing an absent SKU is not an
// error; the backend's 404 is absorbed.
func (s *Sequencer) RemoveItem(ctx context.Context, sku string) (CartState, error) {
	if err := s.acquire(sku); err != nil {
		return CartState{}, err
	}
	defer s.release(sku)

	if err := s.api.Delete(ctx, "/cart/items", itemRequest{SKU: sku}, nil); err != nil {
		var se *backend.ServerError
		if !errors.As(err, &se) || se.Status != 404 {
			return CartState{}, err
		}
	}
	return s.Cart(ctx)
}

// Checkout hands the cart off to the external payment gateway and
// returns the redirect URL. Payment processing itself is not this
// service's concern.
func (s *Sequencer) Checkout(ctx context.Context) (string, error) {
	var res struct {
		URL string `json:"url"`
	}
	if err := s.api.Post(ctx, "/payments/checkout", struct{}{}, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

func (s *Sequencer) acquire(sku string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[sku]; busy {
		return ErrBusy
	}
	s.inFlight[sku] = struct{}{}
	return nil
}

func (s *Sequencer) release(sku string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sku)
}
