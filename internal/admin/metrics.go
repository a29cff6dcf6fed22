package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"parts-storefront/internal/catalog"
	"parts-storefront/internal/order"
)

// Backend is the slice of the API client the admin service needs.
type Backend interface {
	Get(ctx context.Context, path string, out any) error
}

// Service aggregates back-office metrics from the marketplace API.
// Nothing is cached; the dashboard's refresh button refetches.
type Service struct {
	api     Backend
	catalog *catalog.Service
	orders  *order.Service

	lowStockMin int
}

func NewService(api Backend, cat *catalog.Service, ord *order.Service, lowStockMin int) *Service {
	return &Service{api: api, catalog: cat, orders: ord, lowStockMin: lowStockMin}
}

// AdminUser is the trimmed user record the dashboard shows.
type AdminUser struct {
	ID        string `json:"_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// StatusCount is one orders-by-status bucket.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Metrics is the dashboard payload.
type Metrics struct {
	Counts struct {
		Users      int `json:"users"`
		Parts      int `json:"parts"`
		Orders     int `json:"orders"`
		PaidOrders int `json:"paidOrders"`
	} `json:"counts"`
	Revenue30d struct {
		Total float64 `json:"total"`
	} `json:"revenue30d"`
	OrdersByStatus []StatusCount      `json:"ordersByStatus"`
	RecentOrders   []order.Projection `json:"recentOrders"`
	RecentUsers    []AdminUser        `json:"recentUsers"`
}

const recentLimit = 5

// Metrics assembles counts, 30-day revenue, status buckets and recent
// rows from three backend fetches.
func (s *Service) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics

	users, err := s.users(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("fetching users: %w", err)
	}
	parts, _, err := s.catalog.Parts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("fetching parts: %w", err)
	}
	orders, err := s.orders.List(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("fetching orders: %w", err)
	}

	m.Counts.Users = len(users)
	m.Counts.Parts = len(parts)
	m.Counts.Orders = len(orders)

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	byStatus := map[string]int{}
	for _, o := range orders {
		byStatus[o.Status]++
		if o.Status == "paid" || o.Status == "shipped" || o.Status == "delivered" {
			m.Counts.PaidOrders++
			if ts, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil && ts.After(cutoff) {
				m.Revenue30d.Total += o.Totals.Grand
			}
		}
	}
	for status, count := range byStatus {
		m.OrdersByStatus = append(m.OrdersByStatus, StatusCount{Status: status, Count: count})
	}
	sort.Slice(m.OrdersByStatus, func(i, j int) bool {
		return m.OrdersByStatus[i].Status < m.OrdersByStatus[j].Status
	})

	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt > orders[j].CreatedAt })
	if len(orders) > recentLimit {
		orders = orders[:recentLimit]
	}
	m.RecentOrders = orders

	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt > users[j].CreatedAt })
	if len(users) > recentLimit {
		users = users[:recentLimit]
	}
	m.RecentUsers = users

	return m, nil
}

// RevenueSeries returns the chart data for the given granularity
// ("day" or "month").
func (s *Service) RevenueSeries(ctx context.Context, granularity string) ([]order.RevenuePoint, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	return order.RevenueSeries(orders, granularity, time.Now()), nil
}

// TopSeller is one row of the best-sellers table.
type TopSeller struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand,omitempty"`
	TotalQty     int     `json:"totalQty"`
	TotalRevenue float64 `json:"totalRevenue"`
}

// TopSelling aggregates units and revenue per SKU over the fetched
// orders in one pass. statuses filters which orders count (empty means
// the paid-like set), since drops orders placed before it when set,
// and limit caps the rows.
func (s *Service) TopSelling(ctx context.Context, limit int, statuses []string, since time.Time) ([]TopSeller, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = recentLimit
	}

	counted := map[string]bool{"paid": true, "shipped": true, "delivered": true}
	if len(statuses) > 0 {
		counted = map[string]bool{}
		for _, st := range statuses {
			counted[st] = true
		}
	}

	rows := []TopSeller{}
	index := map[string]int{}
	for _, o := range orders {
		if !counted[o.Status] {
			continue
		}
		if !since.IsZero() {
			ts, err := time.Parse(time.RFC3339, o.CreatedAt)
			if err != nil || ts.Before(since) {
				continue
			}
		}

		// brand only rides on the raw embedded part, not the line item
		brands := map[string]string{}
		for _, raw := range o.Items {
			if raw.Part == nil || raw.Part.Brand == "" {
				continue
			}
			sku := raw.SKU
			if sku == "" {
				sku = raw.Part.SKU
				if sku == "" {
					sku = raw.Part.ID
				}
			}
			brands[sku] = raw.Part.Brand
		}

		for _, line := range o.Lines {
			i, ok := index[line.SKU]
			if !ok {
				i = len(rows)
				index[line.SKU] = i
				rows = append(rows, TopSeller{SKU: line.SKU})
			}
			if rows[i].Name == "" {
				rows[i].Name = line.Name
			}
			if rows[i].Brand == "" {
				rows[i].Brand = brands[line.SKU]
			}
			rows[i].TotalQty += line.Quantity
			rows[i].TotalRevenue += line.UnitPrice * float64(line.Quantity)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalQty != rows[j].TotalQty {
			return rows[i].TotalQty > rows[j].TotalQty
		}
		return rows[i].TotalRevenue > rows[j].TotalRevenue
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// lowStockEnvelope is the alert feed shape.
type lowStockEnvelope struct {
	Items      []catalog.LowRow `json:"items"`
	DefaultMin int              `json:"defaultMin"`
}

// LowStock fetches the low-stock alert rows and applies the dashboard's
// client-side shaping.
func (s *Service) LowStock(ctx context.Context, min int, hideZero bool, zeroCap int) ([]catalog.LowRow, error) {
	if min <= 0 {
		min = s.lowStockMin
	}
	var envelope lowStockEnvelope
	if err := s.api.Get(ctx, fmt.Sprintf("/admin/alerts/low-stock?min=%d", min), &envelope); err != nil {
		return nil, err
	}
	return catalog.ShapeLowStock(envelope.Items, hideZero, zeroCap), nil
}

func (s *Service) users(ctx context.Context) ([]AdminUser, error) {
	var envelope struct {
		Users []AdminUser `json:"users"`
	}
	if err := s.api.Get(ctx, "/admin/users", &envelope); err != nil {
		return nil, err
	}
	return envelope.Users, nil
}
