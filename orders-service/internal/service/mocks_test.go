package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_backoffice/orders-service/internal/cache"
	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
)

// MockStore is an in-memory repository.Store. Transactions run one at a time and a failed
// transaction restores the state it started from, like a rollback would.
type MockStore struct {
	mu sync.Mutex

	Customers map[uuid.UUID]*domain.CustomerSummary
	Products  map[uuid.UUID]*domain.CatalogProduct
	Orders    map[uuid.UUID]*domain.Order
	Sequences map[string]int64
	Outbox    []*repository.OutboxEvent

	// FailOn makes the named Tx method return the error.
	FailOn map[string]error

	TxCount      int
	ReserveCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
	// StockOps records "reserve <id> <qty>" and "release <id> <qty>" in call order.
	StockOps []string

	// GetOrderGate, when set, holds GetOrderByID until it is closed.
	GetOrderGate    chan struct{}
	GetOrderHits    int
	getOrderWaiting int
}

func NewMockStore() *MockStore {
	return &MockStore{
		Customers: make(map[uuid.UUID]*domain.CustomerSummary),
		Products:  make(map[uuid.UUID]*domain.CatalogProduct),
		Orders:    make(map[uuid.UUID]*domain.Order),
		Sequences: make(map[string]int64),
		FailOn:    make(map[string]error),
	}
}

func (m *MockStore) AddCustomer() uuid.UUID {
	id := uuid.New()
	m.Customers[id] = &domain.CustomerSummary{ID: id, Name: "Jane Roe", Email: "jane@example.com"}
	return id
}

func (m *MockStore) AddProduct(p domain.CatalogProduct) uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Name == "" {
		p.Name = "Product " + p.ID.String()[:8]
		p.Slug = "product-" + p.ID.String()[:8]
	}
	m.Products[p.ID] = &p
	return p.ID
}

func (m *MockStore) Stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Products[id].StockQuantity
}

// GetOrderWaiting is the number of GetOrderByID calls that reached GetOrderGate.
func (m *MockStore) GetOrderWaiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrderWaiting
}

// SetStatus forces an order into status without going through the status machine.
func (m *MockStore) SetStatus(id uuid.UUID, status domain.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders[id].Status = status
}

type storeState struct {
	products  map[uuid.UUID]*domain.CatalogProduct
	orders    map[uuid.UUID]*domain.Order
	sequences map[string]int64
	outbox    []*repository.OutboxEvent
}

func (m *MockStore) save() storeState {
	st := storeState{
		products:  make(map[uuid.UUID]*domain.CatalogProduct, len(m.Products)),
		orders:    make(map[uuid.UUID]*domain.Order, len(m.Orders)),
		sequences: maps.Clone(m.Sequences),
		outbox:    slices.Clone(m.Outbox),
	}
	for id, p := range m.Products {
		cp := *p
		st.products[id] = &cp
	}
	for id, o := range m.Orders {
		st.orders[id] = copyOrder(o)
	}
	return st
}

func (m *MockStore) restore(st storeState) {
	m.Products = st.products
	m.Orders = st.orders
	m.Sequences = st.sequences
	m.Outbox = st.outbox
}

func (m *MockStore) WithinTx(_ context.Context, fn func(tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TxCount++

	saved := m.save()
	if err := fn(&mockTx{m: m}); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func (m *MockStore) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if m.GetOrderGate != nil {
		m.mu.Lock()
		m.getOrderWaiting++
		m.mu.Unlock()
		select {
		case <-m.GetOrderGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetOrderHits++
	o, ok := m.Orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return m.loaded(o), nil
}

func (m *MockStore) ListOrders(_ context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make([]*domain.Order, 0)
	for _, o := range m.Orders {
		if filter.CustomerID != nil && o.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		orders = append(orders, m.loaded(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderNumber > orders[j].OrderNumber })
	return orders, nil
}

func (m *MockStore) loaded(o *domain.Order) *domain.Order {
	cp := copyOrder(o)
	if c, ok := m.Customers[o.CustomerID]; ok {
		cc := *c
		cp.Customer = &cc
	}
	return cp
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	if cp.Items == nil {
		cp.Items = []domain.OrderItem{}
	}
	return &cp
}

type mockTx struct {
	m *MockStore
}

func (t *mockTx) fail(op string) error {
	return t.m.FailOn[op]
}

func (t *mockTx) GetCustomer(_ context.Context, id uuid.UUID) (*domain.CustomerSummary, error) {
	if err := t.fail("GetCustomer"); err != nil {
		return nil, err
	}
	c, ok := t.m.Customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (t *mockTx) GetCatalogProduct(_ context.Context, id uuid.UUID) (*domain.CatalogProduct, error) {
	if err := t.fail("GetCatalogProduct"); err != nil {
		return nil, err
	}
	p, ok := t.m.Products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (t *mockTx) ReserveStock(_ context.Context, productID uuid.UUID, quantity int) error {
	if err := t.fail("ReserveStock"); err != nil {
		return err
	}
	t.m.ReserveCalls = append(t.m.ReserveCalls, productID)
	t.m.StockOps = append(t.m.StockOps, fmt.Sprintf("reserve %s %d", productID, quantity))
	p, ok := t.m.Products[productID]
	switch {
	case !ok:
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	case !p.Purchasable():
		return fmt.Errorf("%w: %s", domain.ErrProductInactive, productID)
	case p.StockQuantity < quantity:
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, productID)
	}
	p.StockQuantity -= quantity
	return nil
}

func (t *mockTx) ReleaseStock(_ context.Context, productID uuid.UUID, quantity int) error {
	if err := t.fail("ReleaseStock"); err != nil {
		return err
	}
	t.m.ReleaseCalls = append(t.m.ReleaseCalls, productID)
	t.m.StockOps = append(t.m.StockOps, fmt.Sprintf("release %s %d", productID, quantity))
	if p, ok := t.m.Products[productID]; ok {
		p.StockQuantity += quantity
	}
	return nil
}

func (t *mockTx) AdjustStock(_ context.Context, productID uuid.UUID, op domain.StockAdjustment, quantity int) (int, error) {
	if err := t.fail("AdjustStock"); err != nil {
		return 0, err
	}
	p, ok := t.m.Products[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	switch op {
	case domain.StockSet:
		if quantity < 0 {
			return 0, repository.ErrInvalidAdjustment
		}
		p.StockQuantity = quantity
	case domain.StockAdd:
		if quantity <= 0 {
			return 0, repository.ErrInvalidAdjustment
		}
		p.StockQuantity += quantity
	case domain.StockSubtract:
		if quantity <= 0 {
			return 0, repository.ErrInvalidAdjustment
		}
		if p.StockQuantity < quantity {
			return 0, domain.ErrInsufficientStock
		}
		p.StockQuantity -= quantity
	default:
		return 0, repository.ErrInvalidAdjustment
	}
	return p.StockQuantity, nil
}

func (t *mockTx) NextOrderSequence(_ context.Context, day time.Time) (int64, error) {
	if err := t.fail("NextOrderSequence"); err != nil {
		return 0, err
	}
	key := day.Format(time.DateOnly)
	t.m.Sequences[key]++
	return t.m.Sequences[key], nil
}

func (t *mockTx) InsertOrder(_ context.Context, order *domain.Order) error {
	if err := t.fail("InsertOrder"); err != nil {
		return err
	}
	for _, o := range t.m.Orders {
		if o.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateOrderNumber
		}
	}
	cp := *order
	cp.Customer = nil
	cp.Items = []domain.OrderItem{}
	t.m.Orders[order.ID] = &cp
	return nil
}

func (t *mockTx) InsertOrderItems(_ context.Context, items []domain.OrderItem) error {
	if err := t.fail("InsertOrderItems"); err != nil {
		return err
	}
	for _, item := range items {
		o, ok := t.m.Orders[item.OrderID]
		if !ok {
			return fmt.Errorf("order %s missing for item", item.OrderID)
		}
		o.Items = append(o.Items, item)
	}
	return nil
}

func (t *mockTx) GetOrderForUpdate(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	if err := t.fail("GetOrderForUpdate"); err != nil {
		return nil, err
	}
	o, ok := t.m.Orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return t.m.loaded(o), nil
}

func (t *mockTx) UpdateOrder(_ context.Context, order *domain.Order) error {
	if err := t.fail("UpdateOrder"); err != nil {
		return err
	}
	stored, ok := t.m.Orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	items := stored.Items
	cp := *order
	cp.Customer = nil
	cp.Items = items
	t.m.Orders[order.ID] = &cp
	return nil
}

func (t *mockTx) DeleteOrderItems(_ context.Context, orderID uuid.UUID) error {
	if err := t.fail("DeleteOrderItems"); err != nil {
		return err
	}
	if o, ok := t.m.Orders[orderID]; ok {
		o.Items = []domain.OrderItem{}
	}
	return nil
}

func (t *mockTx) DeleteOrder(_ context.Context, orderID uuid.UUID) error {
	if err := t.fail("DeleteOrder"); err != nil {
		return err
	}
	if _, ok := t.m.Orders[orderID]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(t.m.Orders, orderID)
	return nil
}

func (t *mockTx) AppendOutboxEvent(_ context.Context, event *repository.OutboxEvent) error {
	if err := t.fail("AppendOutboxEvent"); err != nil {
		return err
	}
	t.m.Outbox = append(t.m.Outbox, event)
	return nil
}

// MockCache implements cache.OrderCache over a map.
type MockCache struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*domain.Order
	GetErr  error
	Gets    int
	Sets    int
	Deletes int
}

func NewMockCache() *MockCache {
	return &MockCache{orders: make(map[uuid.UUID]*domain.Order)}
}

func (c *MockCache) Get(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gets++
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	o, ok := c.orders[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return copyOrder(o), nil
}

func (c *MockCache) Set(_ context.Context, order *domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sets++
	c.orders[order.ID] = copyOrder(order)
	return nil
}

func (c *MockCache) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deletes++
	delete(c.orders, id)
	return nil
}

func (c *MockCache) Has(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.orders[id]
	return ok
}
