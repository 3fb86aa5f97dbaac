package service

import (
	"commerce_settlement/model"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

type memStore struct {
	mu       sync.Mutex
	nextId   uint
	payments map[uint]*model.Payment
	deleted  map[uint]bool
	writes   int
	onWrite  func()
}

func newMemStore() *memStore {
	return &memStore{payments: make(map[uint]*model.Payment), deleted: make(map[uint]bool)}
}

func (m *memStore) Create(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextId++
	p.ID = m.nextId
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uint) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || m.deleted[id] {
		return nil, model.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetByQRCode(_ context.Context, qr string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.payments {
		if p.QRCode == qr && !m.deleted[id] {
			cp := *p
			return &cp, nil
		}
	}
	return nil, model.ErrPaymentNotFound
}

func (m *memStore) list(match func(*model.Payment) bool) []model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Payment
	for id, p := range m.payments {
		if !m.deleted[id] && match(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memStore) ListByOrder(_ context.Context, orderId uint) ([]model.Payment, error) {
	return m.list(func(p *model.Payment) bool { return p.OrderId == orderId }), nil
}

func (m *memStore) ListByAnyOrder(_ context.Context, orderId uint) ([]model.Payment, error) {
	return m.list(func(p *model.Payment) bool {
		for _, o := range p.Orders {
			if o.OrderId == orderId {
				return true
			}
		}
		return false
	}), nil
}

func (m *memStore) ListByUser(_ context.Context, userId uint, filter model.FilterPaymentInput) ([]model.Payment, int64, error) {
	rows := m.list(func(p *model.Payment) bool {
		return p.UserId == userId && (filter.Status == "" || p.Status == filter.Status)
	})
	return rows, int64(len(rows)), nil
}

func (m *memStore) UpdateTransition(_ context.Context, p *model.Payment, from model.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.payments[p.ID]
	if !ok || cur.Status != from {
		return fmt.Errorf("%w: payment %d", model.ErrStaleWrite, p.ID)
	}
	m.writes++
	cp := *p
	m.payments[p.ID] = &cp
	if m.onWrite != nil {
		m.onWrite()
	}
	return nil
}

func (m *memStore) SoftDelete(_ context.Context, id uint, _ uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[id]; !ok || m.deleted[id] {
		return model.ErrPaymentNotFound
	}
	m.deleted[id] = true
	return nil
}

func (m *memStore) ListStalePending(_ context.Context, methods []model.PaymentMethod, before time.Time, limit int) ([]model.Payment, error) {
	rows := m.list(func(p *model.Payment) bool {
		return p.Status == model.PaymentPending && slices.Contains(methods, p.Method) && p.CreatedAt.Before(before)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// set overwrites a stored payment, bypassing the conditional update.
func (m *memStore) set(p model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = &p
}

type fakeUsers struct {
	accounts map[uint]model.AccountInfo
	err      error
}

func (f *fakeUsers) GetUser(_ context.Context, userId uint) (*model.AccountInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[userId]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &a, nil
}

type orderCall struct {
	OrderId uint
	Field   string
	Value   string
}

type fakeOrders struct {
	mu      sync.Mutex
	orders  map[uint]model.OrderInfo
	failing map[uint]bool
	calls   []orderCall
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[uint]model.OrderInfo), failing: make(map[uint]bool)}
}

func (f *fakeOrders) GetOrder(_ context.Context, orderId uint) (*model.OrderInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderId]
	if !ok {
		return nil, model.ErrInvalidOrder
	}
	return &o, nil
}

func (f *fakeOrders) SetPaymentStatus(ctx context.Context, orderId, _ uint, status string) error {
	return f.record(ctx, orderId, "paymentStatus", status)
}

func (f *fakeOrders) SetStatus(ctx context.Context, orderId uint, status string) error {
	return f.record(ctx, orderId, "status", status)
}

func (f *fakeOrders) record(ctx context.Context, orderId uint, field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[orderId] {
		return errors.New("order service unavailable")
	}
	f.calls = append(f.calls, orderCall{OrderId: orderId, Field: field, Value: value})
	return nil
}

func (f *fakeOrders) setFailing(orderId uint, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[orderId] = failing
}

func (f *fakeOrders) paymentStatusOf(orderId uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := ""
	for _, c := range f.calls {
		if c.OrderId == orderId && c.Field == "paymentStatus" {
			status = c.Value
		}
	}
	return status
}

func (f *fakeOrders) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.PaymentEvent
	err    error
	block  bool
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, event model.PaymentEvent) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	event.EventType = topic
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.EventType
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []model.StatusEvent
}

func (f *fakeNotifier) Broadcast(_ context.Context, evt model.StatusEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeNotifier) all() []model.StatusEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.StatusEvent(nil), f.events...)
}

type fakeCallbackLogs struct {
	mu      sync.Mutex
	entries map[uint]*model.CallbackLog
}

func newFakeCallbackLogs() *fakeCallbackLogs {
	return &fakeCallbackLogs{entries: make(map[uint]*model.CallbackLog)}
}

func (f *fakeCallbackLogs) Create(_ context.Context, entry *model.CallbackLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uint(len(f.entries) + 1)
	cp := *entry
	f.entries[entry.ID] = &cp
	return nil
}

func (f *fakeCallbackLogs) MarkResult(_ context.Context, id uint, status model.CallbackLogStatus, paymentId *uint, errText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[id]
	e.Status = status
	e.PaymentId = paymentId
	e.Error = errText
	return nil
}

func (f *fakeCallbackLogs) statuses() []model.CallbackLogStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.CallbackLogStatus, 0, len(f.entries))
	for i := uint(1); i <= uint(len(f.entries)); i++ {
		out = append(out, f.entries[i].Status)
	}
	return out
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*model.OrderSyncTask
}

func (f *fakeQueue) Enqueue(_ context.Context, task *model.OrderSyncTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.ID = uint(len(f.tasks) + 1)
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeQueue) Due(_ context.Context, now time.Time, maxAttempts, limit int) ([]model.OrderSyncTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.OrderSyncTask
	for _, t := range f.tasks {
		if t.DoneAt == nil && !t.NextRunAt.After(now) && t.Attempts < maxAttempts && len(out) < limit {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeQueue) MarkDone(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.tasks[id-1].DoneAt = &now
	return nil
}

func (f *fakeQueue) MarkFailed(_ context.Context, id uint, attempts int, errText string, next time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tasks[id-1]
	t.Attempts = attempts
	t.LastError = errText
	t.NextRunAt = next
	return nil
}

type staticQR struct{}

func (staticQR) Build(p *model.Payment, _ string) (string, error) {
	return "QR|" + p.PaymentCode + "|" + p.Description, nil
}
