package app

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cimillas/flash-sale/internal/domain"
	"github.com/cimillas/flash-sale/internal/events"
)

// fakeStore is an in-memory stand-in for every repository. Transactions are
// serialized and roll back all writes when fn fails.
type fakeStore struct {
	txMu sync.Mutex

	mu       sync.Mutex
	products map[string]domain.Product
	holds    map[string]domain.Hold
	orders   map[string]domain.Order
	records  map[string]domain.WebhookRecord

	// listErr is returned by ListExpiredHolds once afterID is non-empty.
	listErr   error
	listCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[string]domain.Product{},
		holds:    map[string]domain.Hold{},
		orders:   map[string]domain.Order{},
		records:  map[string]domain.WebhookRecord{},
	}
}

func (f *fakeStore) addProduct(id string, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[id] = domain.Product{ID: id, Name: "product " + id, TotalStock: stock}
}

func (f *fakeStore) addHold(h domain.Hold) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holds[h.ID] = h
}

func (f *fakeStore) addOrder(o domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
}

func (f *fakeStore) hold(id string) domain.Hold {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holds[id]
}

func (f *fakeStore) order(id string) domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	holds, orders, records := maps.Clone(f.holds), maps.Clone(f.orders), maps.Clone(f.records)
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.holds, f.orders, f.records = holds, orders, records
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeStore) GetProductForUpdate(ctx context.Context, id string) (domain.Product, error) {
	return f.GetProduct(ctx, id)
}

func (f *fakeStore) ListProducts(context.Context) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := slices.Sorted(maps.Keys(f.products))
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.products[id])
	}
	return out, nil
}

func (f *fakeStore) SumActiveHolds(_ context.Context, productID string, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, h := range f.holds {
		if h.ProductID == productID && h.Status == domain.HoldStatusActive && h.ExpiresAt.After(now) {
			total += h.Quantity
		}
	}
	return total, nil
}

func (f *fakeStore) SumPaidOrders(_ context.Context, productID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, o := range f.orders {
		if o.ProductID == productID && o.Status == domain.OrderStatusPaid {
			total += o.Quantity
		}
	}
	return total, nil
}

func (f *fakeStore) CreateHold(_ context.Context, h domain.Hold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[h.ProductID]; !ok {
		return domain.ErrProductNotFound
	}
	f.holds[h.ID] = h
	return nil
}

func (f *fakeStore) GetHoldForUpdate(_ context.Context, id string) (domain.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	return h, nil
}

func (f *fakeStore) UpdateHoldStatus(_ context.Context, id string, status domain.HoldStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok {
		return domain.ErrHoldNotFound
	}
	h.Status = status
	f.holds[id] = h
	return nil
}

func (f *fakeStore) ExpireHold(ctx context.Context, id string) error {
	return f.UpdateHoldStatus(ctx, id, domain.HoldStatusExpired)
}

func (f *fakeStore) MarkHoldUsed(_ context.Context, id string, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok {
		return domain.ErrHoldNotFound
	}
	h.Status = domain.HoldStatusUsed
	h.UsedAt = &usedAt
	f.holds[id] = h
	return nil
}

func (f *fakeStore) ListExpiredHolds(_ context.Context, now time.Time, afterID string, limit int) ([]domain.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if afterID != "" && f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Hold
	for _, id := range slices.Sorted(maps.Keys(f.holds)) {
		h := f.holds[id]
		if id <= afterID || h.Status != domain.HoldStatusActive || h.ExpiresAt.After(now) {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.orders {
		if existing.HoldID == o.HoldID {
			return domain.ErrHoldNotActive
		}
	}
	f.orders[o.ID] = o
	return nil
}

func (f *fakeStore) FindWebhookRecord(_ context.Context, key string) (*domain.WebhookRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStore) InsertWebhookRecord(_ context.Context, rec domain.WebhookRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.IdempotencyKey]; ok {
		return false, nil
	}
	f.records[rec.IdempotencyKey] = rec
	return true, nil
}

func (f *fakeStore) GetOrderForUpdate(_ context.Context, id string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeStore) UpdateOrderPayment(_ context.Context, id string, status domain.OrderStatus, meta map[string]any, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	o.PaymentMeta = meta
	o.UpdatedAt = updatedAt
	f.orders[id] = o
	return nil
}

type spyLedger struct {
	mu          sync.Mutex
	invalidated []string
}

func (s *spyLedger) Invalidate(_ context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, productID)
}

func (s *spyLedger) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.invalidated)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
