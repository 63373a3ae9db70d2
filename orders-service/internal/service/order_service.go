package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_backoffice/orders-service/internal/cache"
	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
	"github.com/fjod/go_backoffice/pkg/logger"
)

var tracer = otel.Tracer("github.com/fjod/go_backoffice/orders-service/internal/service")

// OrderServiceDeps groups the collaborators of OrderService.
type OrderServiceDeps struct {
	Store       repository.Store
	Cache       cache.OrderCache
	Clock       func() time.Time
	IDGenerator func() uuid.UUID
	EventID     func() string
	Logger      *zap.Logger
}

type OrderService struct {
	store     repository.Store
	cache     cache.OrderCache
	snapshots *SnapshotBuilder
	clock     func() time.Time
	newID     func() uuid.UUID
	eventID   func() string
	log       *zap.Logger
	sfg       singleflight.Group // collapses concurrent cache misses for one order
}

func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Store == nil {
		return nil, errors.New("order service: store is required")
	}

	orderCache := deps.Cache
	if orderCache == nil {
		orderCache = cache.NoopCache{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = uuid.New
	}

	eventID := deps.EventID
	if eventID == nil {
		eventID = func() string {
			return ulid.Make().String()
		}
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	utc := func() time.Time {
		return clock().UTC()
	}
	return &OrderService{
		store:     deps.Store,
		cache:     orderCache,
		snapshots: NewSnapshotBuilder(utc),
		clock:     utc,
		newID:     idGen,
		eventID:   eventID,
		log:       log,
	}, nil
}

func (s *OrderService) logger(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, s.log)
}

// orderLoadTimeout bounds the shared load behind GetOrder, which outlives any single caller.
const orderLoadTimeout = 5 * time.Second

// GetOrder reads through the cache. Concurrent misses for the same order share one query; each
// caller waits on its own context and receives its own copy of the order.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder",
		trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	ch := s.sfg.DoChan(orderID.String(), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), orderLoadTimeout)
		defer cancel()
		return s.loadOrder(loadCtx, orderID)
	})

	select {
	case <-ctx.Done():
		err := ctx.Err()
		recordError(span, err)
		return nil, err
	case res := <-ch:
		if res.Err != nil {
			recordError(span, res.Err)
			return nil, res.Err
		}
		return res.Val.(*domain.Order).Clone(), nil
	}
}

func (s *OrderService) loadOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.cache.Get(ctx, orderID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger(ctx).Warn("order cache get failed", zap.Error(err))
	}

	order, err = s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if errSet := s.cache.Set(ctx, order); errSet != nil {
		s.logger(ctx).Warn("order cache set failed", zap.Error(errSet))
	}
	return order, nil
}

// ListOrders bypasses the cache; listings are filtered and paged per request.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// invalidate drops the cached copy after a committed mutation. Failures are logged only.
func (s *OrderService) invalidate(ctx context.Context, orderID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, orderID); err != nil {
		s.logger(ctx).Warn("order cache invalidation failed",
			zap.String("order_id", orderID.String()),
			zap.Error(err))
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
