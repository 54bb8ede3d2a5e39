package kitchen

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/model"
)

var ErrInvalidTarget = errors.New("status cannot be set by the kitchen")

type OrderStore interface {
	ListOrders(context.Context) ([]model.Order, error)
	UpdateOrderStatus(context.Context, string, model.Status) (model.Order, error)
	Health(context.Context) error
}

type IService interface {
	KitchenOrders(context.Context) ([]model.Order, error)
	DisplayOrders(context.Context) ([]model.Order, error)
	Advance(context.Context, string, model.Status) (model.Order, error)
	Health(context.Context) error
}

// Service holds no order state; every call goes to the store.
type Service struct {
	store  OrderStore
	logger *zap.SugaredLogger
}

func NewService(store OrderStore, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, logger: logger}
}

func (s Service) KitchenOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return model.Filter(orders, model.KitchenStatuses...), nil
}

func (s Service) DisplayOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return model.Filter(orders, model.DisplayStatuses...), nil
}

// Advance forwards the target status without looking at the current one;
// the store's transition policy has the final word.
func (s Service) Advance(ctx context.Context, number string, target model.Status) (model.Order, error) {
	switch target {
	case model.StatusPreparing, model.StatusReady, model.StatusServed:
	default:
		return model.Order{}, ErrInvalidTarget
	}

	return s.store.UpdateOrderStatus(ctx, number, target)
}

func (s Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}
