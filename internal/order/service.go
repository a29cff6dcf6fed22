package order

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"parts-storefront/internal/catalog"
)

// Backend is the slice of the API client the order service needs.
type Backend interface {
	Get(ctx context.Context, path string, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

// Service reads orders from the marketplace API and projects totals
// where the server block is missing.
type Service struct {
	api    Backend
	prices interface {
		Lookup(ctx context.Context) (catalog.PriceLookup, error)
	}
}

func NewService(api Backend, prices *catalog.Service) *Service {
	return &Service{api: api, prices: prices}
}

type ordersEnvelope struct {
	Orders []Order `json:"orders"`
}

// List returns the caller's orders with projected totals.
func (s *Service) List(ctx context.Context) ([]Projection, error) {
	var envelope ordersEnvelope
	if err := s.api.Get(ctx, "/orders", &envelope); err != nil {
		return nil, err
	}
	lookup, err := s.prices.Lookup(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Projection, 0, len(envelope.Orders))
	for _, o := range envelope.Orders {
		out = append(out, Project(o, lookup))
	}
	return out, nil
}

// Get returns one order with projected totals.
func (s *Service) Get(ctx context.Context, orderID string) (Projection, error) {
	var o Order
	if err := s.api.Get(ctx, "/orders/"+url.PathEscape(orderID), &o); err != nil {
		return Projection{}, err
	}
	lookup, err := s.prices.Lookup(ctx)
	if err != nil {
		return Projection{}, err
	}
	return Project(o, lookup), nil
}

// UpdateStatus issues an admin status transition and returns the
// refreshed order. Unknown statuses never reach the backend.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (Projection, error) {
	if !StatusAllowed(status) {
		return Projection{}, fmt.Errorf("unknown order status %q", status)
	}
	err := s.api.Put(ctx, "/admin/orders/"+url.PathEscape(orderID),
		map[string]string{"status": status}, nil)
	if err != nil {
		return Projection{}, err
	}
	return s.Get(ctx, orderID)
}

// RevenuePoint is one bucket of the revenue series.
type RevenuePoint struct {
	Label string  `json:"label"`
	Total float64 `json:"total"`
}

// RevenueSeries buckets paid-like orders' grand totals by day (last 30
// days) or by month (last 12 months), zero-filling empty buckets so the
// chart has a continuous axis. Orders with unparsable timestamps are
// skipped.
func RevenueSeries(orders []Projection, granularity string, now time.Time) []RevenuePoint {
	type bucket struct {
		label string
		total float64
	}

	var buckets []bucket
	index := map[string]int{}

	switch granularity {
	case "month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
		for i := 0; i < 12; i++ {
			label := start.AddDate(0, i, 0).Format("2006-01")
			index[label] = len(buckets)
			buckets = append(buckets, bucket{label: label})
		}
	default: // day
		start := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -29)
		for i := 0; i < 30; i++ {
			label := start.AddDate(0, 0, i).Format("2006-01-02")
			index[label] = len(buckets)
			buckets = append(buckets, bucket{label: label})
		}
	}

	for _, o := range orders {
		if !paidLike[o.Status] {
			continue
		}
		ts, err := time.Parse(time.RFC3339, o.CreatedAt)
		if err != nil {
			continue
		}
		var label string
		if granularity == "month" {
			label = ts.UTC().Format("2006-01")
		} else {
			label = ts.UTC().Format("2006-01-02")
		}
		if i, ok := index[label]; ok {
			buckets[i].total += o.Totals.Grand
		}
	}

	out := make([]RevenuePoint, len(buckets))
	for i, b := range buckets {
		out[i] = RevenuePoint{Label: b.label, Total: b.total}
	}
	return out
}
