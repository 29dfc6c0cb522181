package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/checkout"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/docstore"
	"github.com/yourbite/pos-api/internal/events"
)

// --- Mock implementations ---

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// failingStore wraps a real store and fails or delays selected calls.
type failingStore struct {
	OrderStore
	createErr   error
	getErr      error
	hideOrders  bool          // GetOrder always reports not found
	createDelay time.Duration // sleep before each CreateNextOrder
}

func (f *failingStore) GetOrder(ctx context.Context, id string) (database.Order, error) {
	if f.getErr != nil {
		return database.Order{}, f.getErr
	}
	if f.hideOrders {
		return database.Order{}, database.ErrNotFound
	}
	return f.OrderStore.GetOrder(ctx, id)
}

func (f *failingStore) CreateNextOrder(ctx context.Context, arg database.CreateOrderParams, number func(string) string) (database.Order, bool, error) {
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	if f.createErr != nil {
		return database.Order{}, false, f.createErr
	}
	return f.OrderStore.CreateNextOrder(ctx, arg, number)
}

// --- Helpers ---

func newTestService(t *testing.T) (*OrderService, *database.Queries, *mockPublisher) {
	t.Helper()
	mem := docstore.NewMemory()
	t.Cleanup(func() { mem.Close() })
	q := database.New(mem)
	pub := &mockPublisher{}
	return NewOrderService(q, pub), q, pub
}

func line(name string, price int64, qty int32) SubmitLine {
	return SubmitLine{Name: name, Price: decimal.NewFromInt(price), Quantity: qty}
}

// --- Validation tests ---

func TestSubmit_EmptyItems(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Submit(context.Background(), SubmitRequest{OrderID: "o1"})
	if !errors.Is(err, ErrEmptyItems) {
		t.Errorf("got %v, want ErrEmptyItems", err)
	}
}

func TestSubmit_MissingOrderID(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Submit(context.Background(), SubmitRequest{Lines: []SubmitLine{line("Cold Coffee", 140, 1)}})
	if !errors.Is(err, ErrMissingOrderID) {
		t.Errorf("got %v, want ErrMissingOrderID", err)
	}
}

func TestSubmit_InvalidLines(t *testing.T) {
	tests := []struct {
		name string
		line SubmitLine
		want error
	}{
		{"zero quantity", line("Fries", 150, 0), ErrInvalidQuantity},
		{"negative price", line("Fries", -1, 1), ErrInvalidPrice},
		{"blank name", line("  ", 150, 1), ErrMissingName},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, q, _ := newTestService(t)
			_, err := svc.Submit(context.Background(), SubmitRequest{OrderID: "o1", Lines: []SubmitLine{tc.line}})
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if !strings.Contains(err.Error(), "item[0]") {
				t.Errorf("error should name the item: %v", err)
			}
			orders, _ := q.ListOrders(context.Background())
			if len(orders) != 0 {
				t.Error("validation failure must not write")
			}
		})
	}
}

// --- Numbering tests ---

func TestSubmit_FirstOrderIs101(t *testing.T) {
	svc, _, _ := newTestService(t)
	res, err := svc.Submit(context.Background(), SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Cold Coffee", 140, 1)}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Order.OrderNumber != "#101" {
		t.Errorf("order number: got %s, want #101", res.Order.OrderNumber)
	}
}

func TestSubmit_NumberFollowsLatest(t *testing.T) {
	tests := []struct {
		latest string
		want   string
	}{
		{"#145", "#146"},
		{"#100", "#101"},
		{"garbled", "#101"},
		{"", "#101"},
	}
	for _, tc := range tests {
		t.Run(tc.latest, func(t *testing.T) {
			svc, q, _ := newTestService(t)
			ctx := context.Background()
			seed := database.CreateOrderParams{ID: "seed", Status: database.OrderStatusDelivered}
			if _, _, err := q.CreateNextOrder(ctx, seed, func(string) string { return tc.latest }); err != nil {
				t.Fatalf("seed: %v", err)
			}

			res, err := svc.Submit(ctx, SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Cold Coffee", 140, 1)}})
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if res.Order.OrderNumber != tc.want {
				t.Errorf("got %s, want %s", res.Order.OrderNumber, tc.want)
			}
		})
	}
}

func TestSubmit_NumberFollowsLatestAfterCancel(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()
	coffee := []SubmitLine{line("Cold Coffee", 140, 1)}

	for _, id := range []string{"a", "b"} {
		if _, err := svc.Submit(ctx, SubmitRequest{OrderID: id, Lines: coffee}); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}
	if err := q.DeleteOrder(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	res, err := svc.Submit(ctx, SubmitRequest{OrderID: "c", Lines: coffee})
	if err != nil {
		t.Fatalf("submit c: %v", err)
	}
	if res.Order.OrderNumber != "#102" {
		t.Errorf("after cancelling #102 the latest is #101: got %s, want #102", res.Order.OrderNumber)
	}
}

func TestNextOrderNumber(t *testing.T) {
	tests := map[string]string{
		"#145":    "#146",
		"#100":    "#101",
		"#101":    "#102",
		"":        "#101",
		"garbled": "#101",
	}
	for latest, want := range tests {
		if got := NextOrderNumber(latest); got != want {
			t.Errorf("NextOrderNumber(%q) = %s, want %s", latest, got, want)
		}
	}
}

func TestSubmit_ConcurrentSubmissionsGetDistinctNumbers(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Submit(ctx, SubmitRequest{
				OrderID: "order-" + string(rune('a'+i)),
				Lines:   []SubmitLine{line("Fudge Brownie", 200, 1)},
			})
			if err != nil {
				t.Errorf("submit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	orders, _ := q.ListOrders(ctx)
	seen := make(map[string]bool)
	for _, o := range orders {
		if seen[o.OrderNumber] {
			t.Errorf("duplicate order number %s", o.OrderNumber)
		}
		seen[o.OrderNumber] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct numbers, got %d", n, len(seen))
	}
}

// --- Idempotency tests ---

func TestSubmit_ReplayReturnsExistingOrder(t *testing.T) {
	svc, q, pub := newTestService(t)
	ctx := context.Background()
	req := SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Cold Coffee", 140, 2)}}

	first, err := svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if !second.Replayed {
		t.Error("expected replay")
	}
	if second.Order.OrderNumber != first.Order.OrderNumber {
		t.Errorf("replay renumbered: %s -> %s", first.Order.OrderNumber, second.Order.OrderNumber)
	}
	orders, _ := q.ListOrders(ctx)
	if len(orders) != 1 {
		t.Errorf("expected 1 order, got %d", len(orders))
	}
	if got := pub.types(); len(got) != 1 {
		t.Errorf("expected 1 event, got %v", got)
	}
}

func TestSubmit_ConcurrentSameOrderID(t *testing.T) {
	_, q, _ := newTestService(t)
	pub := &mockPublisher{}
	svc := NewOrderService(&failingStore{OrderStore: q, createDelay: 20 * time.Millisecond}, pub)
	ctx := context.Background()
	req := SubmitRequest{OrderID: "same", Lines: []SubmitLine{line("Zinger Burger", 420, 1)}}

	results := make([]*SubmitResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Submit(ctx, req)
			if err != nil {
				t.Errorf("submit %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()
	if results[0] == nil || results[1] == nil {
		t.FailNow()
	}

	if results[0].Order.OrderNumber != results[1].Order.OrderNumber {
		t.Errorf("one order got two numbers: %s and %s", results[0].Order.OrderNumber, results[1].Order.OrderNumber)
	}
	if results[0].Replayed == results[1].Replayed {
		t.Errorf("exactly one submission should be a replay: %v, %v", results[0].Replayed, results[1].Replayed)
	}
	orders, _ := q.ListOrders(ctx)
	if len(orders) != 1 || orders[0].OrderNumber != "#101" {
		t.Errorf("orders: %+v", orders)
	}
	if got := pub.types(); len(got) != 1 {
		t.Errorf("expected 1 event, got %v", got)
	}
}

func TestSubmit_InsertFindsExistingOrder(t *testing.T) {
	_, q, _ := newTestService(t)
	ctx := context.Background()
	req := SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Cold Coffee", 140, 1)}}

	first, err := NewOrderService(q, nil).Submit(ctx, req)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// The replay check misses the order, as when another server wrote it
	// after the check; the insert must still not overwrite it.
	pub := &mockPublisher{}
	svc := NewOrderService(&failingStore{OrderStore: q, hideOrders: true}, pub)
	second, err := svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if !second.Replayed || second.Order.OrderNumber != first.Order.OrderNumber {
		t.Errorf("second: replayed=%v number=%s, want replay of %s", second.Replayed, second.Order.OrderNumber, first.Order.OrderNumber)
	}
	if len(pub.types()) != 0 {
		t.Error("a replay must not publish")
	}
}

// --- Customer tests ---

func TestSubmit_WalkInCustomer(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, SubmitRequest{
		OrderID: "o1",
		Lines:   []SubmitLine{line("Classic Beef Burger", 400, 2), line("French Fries", 150, 1)},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	o := res.Order
	if !o.Total.Equal(decimal.NewFromInt(950)) {
		t.Errorf("total: got %s, want 950", o.Total)
	}
	if o.CustomerName != "Walk-in Customer" || o.CustomerPhone != "N/A" {
		t.Errorf("customer snapshot: %q / %q", o.CustomerName, o.CustomerPhone)
	}
	if o.Status != database.OrderStatusPending {
		t.Errorf("status: got %s, want Pending", o.Status)
	}
	if res.Customer != nil {
		t.Error("walk-in should not create a customer")
	}
	customers, _ := q.ListCustomers(ctx)
	if len(customers) != 0 {
		t.Errorf("expected no customers, got %d", len(customers))
	}
}

func TestSubmit_NameOnlyIsSnapshotted(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Mango Smoothie", 150, 1)}, CustomerName: "Bilal"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Order.CustomerName != "Bilal" || res.Order.CustomerPhone != "N/A" {
		t.Errorf("snapshot: %q / %q", res.Order.CustomerName, res.Order.CustomerPhone)
	}
	customers, _ := q.ListCustomers(ctx)
	if len(customers) != 0 {
		t.Errorf("name without phone must not create a customer, got %d", len(customers))
	}
}

func TestSubmit_SamePhoneTwiceUpsertsCustomer(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()
	clock := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	_, err := svc.Submit(ctx, SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Fries", 150, 1)}, CustomerName: "Ali", CustomerPhone: "03001112222"})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	clock = clock.Add(3 * time.Hour)
	res, err := svc.Submit(ctx, SubmitRequest{OrderID: "o2", Lines: []SubmitLine{line("Fries", 150, 1)}, CustomerName: "Ali Khan", CustomerPhone: "03001112222"})
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	customers, _ := q.ListCustomers(ctx)
	if len(customers) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(customers))
	}
	c := customers[0]
	if c.Name != "Ali Khan" {
		t.Errorf("name: got %q, want Ali Khan", c.Name)
	}
	if !c.LastOrderDate.After(c.FirstOrderDate) {
		t.Errorf("lastOrderDate %v should be after firstOrderDate %v", c.LastOrderDate, c.FirstOrderDate)
	}
	if res.Order.CustomerID != c.ID {
		t.Errorf("order customer id: got %q, want %q", res.Order.CustomerID, c.ID)
	}
}

func TestSubmit_PhoneOnlyKeepsStoredName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Submit(ctx, SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Fries", 150, 1)}, CustomerName: "Sana", CustomerPhone: "0333"})
	res, err := svc.Submit(ctx, SubmitRequest{OrderID: "o2", Lines: []SubmitLine{line("Fries", 150, 1)}, CustomerPhone: "0333"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Order.CustomerName != "Sana" {
		t.Errorf("customer name: got %q, want Sana", res.Order.CustomerName)
	}
}

// --- Failure tests ---

func TestSubmit_WriteFailureIsSurfaced(t *testing.T) {
	_, q, _ := newTestService(t)
	pub := &mockPublisher{}
	svc := NewOrderService(&failingStore{OrderStore: q, createErr: errors.New("unavailable")}, pub)

	_, err := svc.Submit(context.Background(), SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Fries", 150, 1)}})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(pub.types()) != 0 {
		t.Error("no event should be published for a failed write")
	}
}

func TestSubmit_ReplayCheckFailureStopsSubmission(t *testing.T) {
	_, q, _ := newTestService(t)
	svc := NewOrderService(&failingStore{OrderStore: q, getErr: errors.New("timeout")}, nil)

	_, err := svc.Submit(context.Background(), SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Fries", 150, 1)}, CustomerPhone: "0300"})
	if err == nil {
		t.Fatal("expected error")
	}
	orders, _ := q.ListOrders(context.Background())
	customers, _ := q.ListCustomers(context.Background())
	if len(orders) != 0 || len(customers) != 0 {
		t.Error("nothing should be written")
	}
}

func TestSubmit_PublishFailureDoesNotFailOrder(t *testing.T) {
	_, q, _ := newTestService(t)
	pub := &mockPublisher{err: errors.New("broker down")}
	svc := NewOrderService(q, pub)

	res, err := svc.Submit(context.Background(), SubmitRequest{OrderID: "o1", Lines: []SubmitLine{line("Fries", 150, 1)}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Order.OrderNumber != "#101" {
		t.Errorf("order number: got %s", res.Order.OrderNumber)
	}
}

// --- Checkout integration ---

func TestSubmitCart_EndToEnd(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()

	s := checkout.NewSession("till-1")
	s.AddDish(database.Dish{ID: "b", Name: "Classic Beef Burger", Price: decimal.NewFromInt(400), IsAvailable: true})
	s.AddDish(database.Dish{ID: "b", Name: "Classic Beef Burger", Price: decimal.NewFromInt(400), IsAvailable: true})
	s.AddDish(database.Dish{ID: "f", Name: "French Fries", Price: decimal.NewFromInt(150), IsAvailable: true})
	if _, err := s.PlaceOrder(); err != nil {
		t.Fatalf("place: %v", err)
	}

	v, err := s.Confirm(ctx, svc)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if v.State != checkout.StateSucceeded || len(v.Lines) != 0 {
		t.Errorf("session after success: %+v", v)
	}

	orders, _ := q.ListOrders(ctx)
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if !o.Total.Equal(decimal.NewFromInt(950)) || o.CustomerName != "Walk-in Customer" || o.OrderNumber != "#101" {
		t.Errorf("order: %+v", o)
	}
}

func TestParseOrderNumber(t *testing.T) {
	tests := map[string]int64{
		"#145": 145,
		"#100": 100,
		"145":  145,
		"#abc": 100,
		"":     100,
		"#0":   100,
	}
	for in, want := range tests {
		if got := ParseOrderNumber(in); got != want {
			t.Errorf("ParseOrderNumber(%q) = %d, want %d", in, got, want)
		}
	}
}
