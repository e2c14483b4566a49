package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"lavka/internal/domain"
)

// MemoryStore объединённое in-memory хранилище и простой генератор ID.
// Используется в тестах и как запасной режим без DATABASE_URL.
type MemoryStore struct {
	mu             sync.RWMutex
	nextProdID     int64
	nextCustomerID int64
	nextOrderID    int64
	nextLineID     int64
	nextPaymentID  int64
	nextShipmentID int64
	nextInvoiceID  int64
	nextInvLineID  int64
	nextCartID     int64

	productsByID  map[int64]domain.Product
	customersByID map[int64]domain.Customer
	ordersByID    map[int64]domain.Order
	lineItemsByID map[int64]domain.OrderLineItem
	paymentsByID  map[int64]domain.Payment
	shipmentsByID map[int64]domain.Shipment
	invoicesByID  map[int64]domain.Invoice
	invLinesByID  map[int64]domain.InvoiceLineItem
	cartByID      map[int64]domain.CartItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextProdID:     1,
		nextCustomerID: 1,
		nextOrderID:    1,
		nextLineID:     1,
		nextPaymentID:  1,
		nextShipmentID: 1,
		nextInvoiceID:  1,
		nextInvLineID:  1,
		nextCartID:     1,
		productsByID:   make(map[int64]domain.Product),
		customersByID:  make(map[int64]domain.Customer),
		ordersByID:     make(map[int64]domain.Order),
		lineItemsByID:  make(map[int64]domain.OrderLineItem),
		paymentsByID:   make(map[int64]domain.Payment),
		shipmentsByID:  make(map[int64]domain.Shipment),
		invoicesByID:   make(map[int64]domain.Invoice),
		invLinesByID:   make(map[int64]domain.InvoiceLineItem),
		cartByID:       make(map[int64]domain.CartItem),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var _ ProductRepository = (*MemoryStore)(nil)

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p.ID = m.nextProdID
	m.nextProdID++
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := p
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[p.ID]; !ok {
		return ErrNotFound
	}
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[id]; !ok {
		return ErrNotFound
	}
	delete(m.productsByID, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range m.productsByID {
		if !containsIgnoreCase(p.Name, f.NameSubstring) {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// DecrementStock условное списание: проверка и запись под одной блокировкой,
// нехватка остатка — ErrStockConflict, частичных списаний не бывает.
func (m *MemoryStore) DecrementStock(ctx context.Context, id int64, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Stock < qty {
		return ErrStockConflict
	}
	p.Stock -= qty
	m.productsByID[id] = p
	return nil
}

// CustomerRepository implementation on wrapper type
type MemoryCustomers struct{ store *MemoryStore }

func NewMemoryCustomers(store *MemoryStore) *MemoryCustomers { return &MemoryCustomers{store: store} }

var _ CustomerRepository = (*MemoryCustomers)(nil)

func (mc *MemoryCustomers) Create(ctx context.Context, c *domain.Customer) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	c.ID = mc.store.nextCustomerID
	mc.store.nextCustomerID++
	mc.store.customersByID[c.ID] = *c
	return nil
}

func (mc *MemoryCustomers) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	c, ok := mc.store.customersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := c
	return &cp, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o.ID = mo.store.nextOrderID
	mo.store.nextOrderID++
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	mo.store.ordersByID[o.ID] = *o
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (mo *MemoryOrders) Update(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[o.ID]; !ok {
		return ErrNotFound
	}
	mo.store.ordersByID[o.ID] = *o
	return nil
}

func (mo *MemoryOrders) CreateLineItem(ctx context.Context, li *domain.OrderLineItem) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	li.ID = mo.store.nextLineID
	mo.store.nextLineID++
	mo.store.lineItemsByID[li.ID] = *li
	return nil
}

func (mo *MemoryOrders) ListLineItems(ctx context.Context, orderID int64) ([]domain.OrderLineItem, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.OrderLineItem, 0)
	for _, li := range mo.store.lineItemsByID {
		if li.OrderID == orderID {
			out = append(out, li)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PaymentRepository implementation on wrapper type
type MemoryPayments struct{ store *MemoryStore }

func NewMemoryPayments(store *MemoryStore) *MemoryPayments { return &MemoryPayments{store: store} }

var _ PaymentRepository = (*MemoryPayments)(nil)

func (mp *MemoryPayments) Create(ctx context.Context, p *domain.Payment) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	p.ID = mp.store.nextPaymentID
	mp.store.nextPaymentID++
	mp.store.paymentsByID[p.ID] = *p
	return nil
}

func (mp *MemoryPayments) GetByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	for _, p := range mp.store.paymentsByID {
		if p.OrderID == orderID {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mp *MemoryPayments) Update(ctx context.Context, p *domain.Payment) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	if _, ok := mp.store.paymentsByID[p.ID]; !ok {
		return ErrNotFound
	}
	mp.store.paymentsByID[p.ID] = *p
	return nil
}

// ShipmentRepository implementation on wrapper type
type MemoryShipments struct{ store *MemoryStore }

func NewMemoryShipments(store *MemoryStore) *MemoryShipments { return &MemoryShipments{store: store} }

var _ ShipmentRepository = (*MemoryShipments)(nil)

func (ms *MemoryShipments) Create(ctx context.Context, s *domain.Shipment) error {
	ms.store.wlock(ctx)
	defer ms.store.wunlock(ctx)
	s.ID = ms.store.nextShipmentID
	ms.store.nextShipmentID++
	ms.store.shipmentsByID[s.ID] = *s
	return nil
}

func (ms *MemoryShipments) GetByOrderID(ctx context.Context, orderID int64) (*domain.Shipment, error) {
	ms.store.rlock(ctx)
	defer ms.store.runlock(ctx)
	for _, s := range ms.store.shipmentsByID {
		if s.OrderID == orderID {
			cp := s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (ms *MemoryShipments) Update(ctx context.Context, s *domain.Shipment) error {
	ms.store.wlock(ctx)
	defer ms.store.wunlock(ctx)
	if _, ok := ms.store.shipmentsByID[s.ID]; !ok {
		return ErrNotFound
	}
	ms.store.shipmentsByID[s.ID] = *s
	return nil
}

// InvoiceRepository implementation on wrapper type
type MemoryInvoices struct{ store *MemoryStore }

func NewMemoryInvoices(store *MemoryStore) *MemoryInvoices { return &MemoryInvoices{store: store} }

var _ InvoiceRepository = (*MemoryInvoices)(nil)

func (mi *MemoryInvoices) Create(ctx context.Context, inv *domain.Invoice) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	inv.ID = mi.store.nextInvoiceID
	mi.store.nextInvoiceID++
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = time.Now().UTC()
	}
	mi.store.invoicesByID[inv.ID] = *inv
	return nil
}

func (mi *MemoryInvoices) GetByOrderID(ctx context.Context, orderID int64) (*domain.Invoice, error) {
	mi.store.rlock(ctx)
	defer mi.store.runlock(ctx)
	for _, inv := range mi.store.invoicesByID {
		if inv.OrderID == orderID {
			cp := inv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mi *MemoryInvoices) CreateLineItem(ctx context.Context, li *domain.InvoiceLineItem) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	li.ID = mi.store.nextInvLineID
	mi.store.nextInvLineID++
	mi.store.invLinesByID[li.ID] = *li
	return nil
}

func (mi *MemoryInvoices) ListLineItems(ctx context.Context, invoiceID int64) ([]domain.InvoiceLineItem, error) {
	mi.store.rlock(ctx)
	defer mi.store.runlock(ctx)
	out := make([]domain.InvoiceLineItem, 0)
	for _, li := range mi.store.invLinesByID {
		if li.InvoiceID == invoiceID {
			out = append(out, li)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CartRepository implementation on wrapper type
type MemoryCarts struct{ store *MemoryStore }

func NewMemoryCarts(store *MemoryStore) *MemoryCarts { return &MemoryCarts{store: store} }

var _ CartRepository = (*MemoryCarts)(nil)

func (mc *MemoryCarts) Add(ctx context.Context, it *domain.CartItem) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	it.ID = mc.store.nextCartID
	mc.store.nextCartID++
	if it.AddedAt.IsZero() {
		it.AddedAt = time.Now().UTC()
	}
	mc.store.cartByID[it.ID] = *it
	return nil
}

// GetByIDs возвращает строки корзины только если все ids существуют
// и принадлежат customerID, иначе ErrNotFound.
func (mc *MemoryCarts) GetByIDs(ctx context.Context, customerID int64, ids []int64) ([]domain.CartItem, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	out := make([]domain.CartItem, 0, len(ids))
	for _, id := range ids {
		it, ok := mc.store.cartByID[id]
		if !ok || it.CustomerID != customerID {
			return nil, ErrNotFound
		}
		out = append(out, it)
	}
	return out, nil
}

func (mc *MemoryCarts) ListByCustomer(ctx context.Context, customerID int64) ([]domain.CartItem, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	out := make([]domain.CartItem, 0)
	for _, it := range mc.store.cartByID {
		if it.CustomerID == customerID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (mc *MemoryCarts) DeleteByIDs(ctx context.Context, ids []int64) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	for _, id := range ids {
		if _, ok := mc.store.cartByID[id]; !ok {
			return ErrNotFound
		}
	}
	for _, id := range ids {
		delete(mc.store.cartByID, id)
	}
	return nil
}

// snapshot полной копии состояния для отката; карты держат значения,
// поэтому достаточно поверхностного клона.
type memSnapshot struct {
	counters  [9]int64
	products  map[int64]domain.Product
	customers map[int64]domain.Customer
	orders    map[int64]domain.Order
	lineItems map[int64]domain.OrderLineItem
	payments  map[int64]domain.Payment
	shipments map[int64]domain.Shipment
	invoices  map[int64]domain.Invoice
	invLines  map[int64]domain.InvoiceLineItem
	cart      map[int64]domain.CartItem
}

func (m *MemoryStore) snapshot() memSnapshot {
	return memSnapshot{
		counters: [9]int64{
			m.nextProdID, m.nextCustomerID, m.nextOrderID, m.nextLineID, m.nextPaymentID,
			m.nextShipmentID, m.nextInvoiceID, m.nextInvLineID, m.nextCartID,
		},
		products:  maps.Clone(m.productsByID),
		customers: maps.Clone(m.customersByID),
		orders:    maps.Clone(m.ordersByID),
		lineItems: maps.Clone(m.lineItemsByID),
		payments:  maps.Clone(m.paymentsByID),
		shipments: maps.Clone(m.shipmentsByID),
		invoices:  maps.Clone(m.invoicesByID),
		invLines:  maps.Clone(m.invLinesByID),
		cart:      maps.Clone(m.cartByID),
	}
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.nextProdID, m.nextCustomerID, m.nextOrderID, m.nextLineID, m.nextPaymentID = s.counters[0], s.counters[1], s.counters[2], s.counters[3], s.counters[4]
	m.nextShipmentID, m.nextInvoiceID, m.nextInvLineID, m.nextCartID = s.counters[5], s.counters[6], s.counters[7], s.counters[8]
	m.productsByID = s.products
	m.customersByID = s.customers
	m.ordersByID = s.orders
	m.lineItemsByID = s.lineItems
	m.paymentsByID = s.payments
	m.shipmentsByID = s.shipments
	m.invoicesByID = s.invoices
	m.invLinesByID = s.invLines
	m.cartByID = s.cart
}

// Tx manager using write lock to emulate transaction boundary.
// Перед fn снимается снапшот, ошибка из fn возвращает состояние как было —
// все записи транзакции исчезают целиком.
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snap := tx.store.snapshot()
	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.restore(snap)
		return err
	}
	return nil
}
