package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrDuplicateOrderNumber = errors.New("order number already taken")
	ErrInvalidAdjustment    = errors.New("invalid stock adjustment")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

// OrderFilter narrows ListOrders. Zero values mean "no filter".
type OrderFilter struct {
	CustomerID *uuid.UUID
	Status     *domain.OrderStatus
	Limit      int
	Offset     int
}

// OutboxEvent is an order event recorded in the same transaction as the change it describes.
type OutboxEvent struct {
	ID          string
	AggregateID uuid.UUID
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// Store is the order database. Every mutation runs through WithinTx.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
}

// Tx is the set of statements available inside one order transaction.
type Tx interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*domain.CustomerSummary, error)
	GetCatalogProduct(ctx context.Context, id uuid.UUID) (*domain.CatalogProduct, error)

	// Stock ledger. Reserve is a single guarded decrement, Release an unbounded increment.
	ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) error
	ReleaseStock(ctx context.Context, productID uuid.UUID, quantity int) error
	// AdjustStock is the administrative set/add/subtract operation. It returns the new stock.
	AdjustStock(ctx context.Context, productID uuid.UUID, op domain.StockAdjustment, quantity int) (int, error)

	NextOrderSequence(ctx context.Context, day time.Time) (int64, error)

	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderItems(ctx context.Context, items []domain.OrderItem) error
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order *domain.Order) error
	DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error

	AppendOutboxEvent(ctx context.Context, event *OutboxEvent) error
}

// OutboxReader feeds the outbox poller.
type OutboxReader interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}
