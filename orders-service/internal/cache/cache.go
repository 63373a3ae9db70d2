package cache

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
)

// OrderCache is a read-through cache for fully loaded orders. Writers invalidate, readers fill.
type OrderCache interface {
	Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	Set(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, orderID uuid.UUID) error
}

var ErrCacheMiss = errors.New("cache miss")

// NoopCache always misses. It is used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, uuid.UUID) (*domain.Order, error) {
	return nil, ErrCacheMiss
}

func (NoopCache) Set(context.Context, *domain.Order) error {
	return nil
}

func (NoopCache) Delete(context.Context, uuid.UUID) error {
	return nil
}
