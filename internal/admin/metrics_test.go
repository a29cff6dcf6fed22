package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"parts-storefront/internal/catalog"
	"parts-storefront/internal/order"
)

type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]string
}

func (f *fakeBackend) Get(ctx context.Context, path string, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, "GET "+path)
	raw, ok := f.responses[path]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("no canned response for %s", path)
	}
	return json.Unmarshal([]byte(raw), out)
}

func (f *fakeBackend) Put(ctx context.Context, path string, body, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, "PUT "+path)
	f.mu.Unlock()
	return nil
}

func newTestService(api *fakeBackend) *Service {
	cat := catalog.NewService(api)
	return NewService(api, cat, order.NewService(api, cat), 10)
}

func TestMetrics_AggregatesCountsAndRevenue(t *testing.T) {
	recent := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	stale := time.Now().UTC().AddDate(0, 0, -45).Format(time.RFC3339)

	api := &fakeBackend{responses: map[string]string{
		"/admin/users": `{"users":[
			{"_id":"u1","email":"a@x.test","role":"user","createdAt":"2026-01-01T00:00:00Z"},
			{"_id":"u2","email":"b@x.test","role":"admin","createdAt":"2026-02-01T00:00:00Z"}
		]}`,
		"/parts": `{"parts":[{"sku":"A1","name":"Widget","price":250}]}`,
		"/orders": fmt.Sprintf(`{"orders":[
			{"orderId":"o1","status":"paid","createdAt":%q,"items":[{"sku":"A1","qty":2}]},
			{"orderId":"o2","status":"paid","createdAt":%q,"items":[{"sku":"A1","qty":1}]},
			{"orderId":"o3","status":"pending","createdAt":%q,"items":[{"sku":"A1","qty":4}]}
		]}`, recent, stale, recent),
	}}

	m, err := newTestService(api).Metrics(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if m.Counts.Users != 2 || m.Counts.Parts != 1 || m.Counts.Orders != 3 {
		t.Fatalf("unexpected counts: %+v", m.Counts)
	}
	if m.Counts.PaidOrders != 2 {
		t.Fatalf("expected 2 paid-like orders, got %d", m.Counts.PaidOrders)
	}
	// only the recent paid order counts toward the 30-day window
	if m.Revenue30d.Total != 500 {
		t.Fatalf("expected revenue 500, got %v", m.Revenue30d.Total)
	}

	want := []StatusCount{{Status: "paid", Count: 2}, {Status: "pending", Count: 1}}
	if len(m.OrdersByStatus) != 2 || m.OrdersByStatus[0] != want[0] || m.OrdersByStatus[1] != want[1] {
		t.Fatalf("unexpected status buckets: %+v", m.OrdersByStatus)
	}

	// newest first
	if len(m.RecentUsers) != 2 || m.RecentUsers[0].ID != "u2" {
		t.Fatalf("recent users not sorted: %+v", m.RecentUsers)
	}
	if len(m.RecentOrders) != 3 {
		t.Fatalf("unexpected recent orders: %+v", m.RecentOrders)
	}
}

func TestMetrics_RecentRowsCapped(t *testing.T) {
	users := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		users = append(users, fmt.Sprintf(
			`{"_id":"u%d","email":"u%d@x.test","role":"user","createdAt":"2026-03-0%dT00:00:00Z"}`, i, i, i+1))
	}
	api := &fakeBackend{responses: map[string]string{
		"/admin/users": `{"users":[` + joinComma(users) + `]}`,
		"/parts":       `{"parts":[]}`,
		"/orders":      `{"orders":[]}`,
	}}

	m, err := newTestService(api).Metrics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(m.RecentUsers) != 5 {
		t.Fatalf("expected 5 recent users, got %d", len(m.RecentUsers))
	}
	if m.RecentUsers[0].ID != "u7" {
		t.Fatalf("expected newest user first, got %+v", m.RecentUsers[0])
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func TestLowStock_DefaultsMinAndShapes(t *testing.T) {
	api := &fakeBackend{responses: map[string]string{
		"/admin/alerts/low-stock?min=10": `{"items":[
			{"sku":"Z1","name":"Zero A","available":0},
			{"sku":"Z2","name":"Zero B","available":0},
			{"sku":"L1","name":"Low","available":4}
		],"defaultMin":10}`,
	}}
	svc := newTestService(api)

	// min<=0 falls back to the configured threshold
	rows, err := svc.LowStock(context.Background(), 0, false, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].SKU != "Z1" || rows[1].SKU != "L1" {
		t.Fatalf("zero cap not applied: %+v", rows)
	}

	rows, err = svc.LowStock(context.Background(), 0, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].SKU != "L1" {
		t.Fatalf("hideZero not applied: %+v", rows)
	}
}

func TestTopSelling_AggregatesUnitsAndRevenue(t *testing.T) {
	api := &fakeBackend{responses: map[string]string{
		"/parts": `{"parts":[{"sku":"A1","name":"Widget","price":250},{"sku":"B2","name":"Gasket","price":10}]}`,
		"/orders": `{"orders":[
			{"orderId":"o1","status":"paid","createdAt":"2026-08-10T10:00:00Z","items":[
				{"sku":"A1","qty":2,"partId":{"brand":"Acme"}},
				{"sku":"B2","qty":5}
			]},
			{"orderId":"o2","status":"delivered","createdAt":"2026-08-20T10:00:00Z","items":[{"sku":"B2","qty":3}]},
			{"orderId":"o3","status":"pending","createdAt":"2026-08-21T10:00:00Z","items":[{"sku":"A1","qty":99}]}
		]}`,
	}}
	svc := newTestService(api)

	rows, err := svc.TopSelling(context.Background(), 0, nil, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	// most units first: 8 gaskets over 2 widgets; the pending order's
	// 99 widgets never count
	if rows[0].SKU != "B2" || rows[0].TotalQty != 8 || rows[0].TotalRevenue != 80 {
		t.Fatalf("unexpected leader: %+v", rows[0])
	}
	if rows[1].SKU != "A1" || rows[1].TotalQty != 2 || rows[1].TotalRevenue != 500 {
		t.Fatalf("unexpected runner-up: %+v", rows[1])
	}
	if rows[1].Brand != "Acme" {
		t.Fatalf("brand not carried from the embedded part: %+v", rows[1])
	}
}

func TestTopSelling_FiltersAndLimit(t *testing.T) {
	api := &fakeBackend{responses: map[string]string{
		"/parts": `{"parts":[{"sku":"A1","name":"Widget","price":250},{"sku":"B2","name":"Gasket","price":10}]}`,
		"/orders": `{"orders":[
			{"orderId":"o1","status":"paid","createdAt":"2026-08-10T10:00:00Z","items":[{"sku":"A1","qty":1}]},
			{"orderId":"o2","status":"shipped","createdAt":"2026-05-01T10:00:00Z","items":[{"sku":"B2","qty":9}]}
		]}`,
	}}
	svc := newTestService(api)

	// the since cutoff drops the older order entirely
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rows, err := svc.TopSelling(context.Background(), 0, nil, since)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].SKU != "A1" {
		t.Fatalf("since filter failed: %+v", rows)
	}

	// an explicit status list replaces the paid-like default
	rows, err = svc.TopSelling(context.Background(), 0, []string{"shipped"}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].SKU != "B2" {
		t.Fatalf("status filter failed: %+v", rows)
	}

	// limit caps the table
	rows, err = svc.TopSelling(context.Background(), 1, nil, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].SKU != "B2" {
		t.Fatalf("limit failed: %+v", rows)
	}
}

func TestRevenueSeries_UsesOrderGranularity(t *testing.T) {
	api := &fakeBackend{responses: map[string]string{
		"/parts":  `{"parts":[]}`,
		"/orders": `{"orders":[]}`,
	}}
	svc := newTestService(api)

	day, err := svc.RevenueSeries(context.Background(), "day")
	if err != nil {
		t.Fatal(err)
	}
	if len(day) != 30 {
		t.Fatalf("expected 30 day points, got %d", len(day))
	}

	month, err := svc.RevenueSeries(context.Background(), "month")
	if err != nil {
		t.Fatal(err)
	}
	if len(month) != 12 {
		t.Fatalf("expected 12 month points, got %d", len(month))
	}
}
