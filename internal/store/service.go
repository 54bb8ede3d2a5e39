package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/events"
	"github.com/cafelumiere/orderflow/internal/model"
)

const (
	numberAttempts = 3

	// column limits of the orders table
	maxNameLength = 100
	priceScale    = 2
)

// maxTotal is the first value DECIMAL(10, 2) cannot hold.
var maxTotal = decimal.New(1, 8)

type IService interface {
	CreateOrder(context.Context, model.OrderInput) (model.Order, error)
	GetOrders(context.Context, string) ([]model.Order, error)
	GetOrder(context.Context, string) (model.Order, error)
	UpdateOrderStatus(context.Context, string, string) (model.Order, error)
	Health(context.Context) error
}

type ServiceOption func(*Service)

// WithClock replaces time.Now for timestamps and order numbers.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithNumbers(next func() string) ServiceOption {
	return func(s *Service) { s.nextNumber = next }
}

type Service struct {
	repo       IRepository
	publisher  events.Publisher
	policy     model.TransitionPolicy
	now        func() time.Time
	nextNumber func() string
	logger     *zap.SugaredLogger
}

func NewService(repo IRepository, publisher events.Publisher, policy model.TransitionPolicy, logger *zap.SugaredLogger, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	if s.nextNumber == nil {
		s.nextNumber = NewNumberGenerator(s.now).Next
	}
	return s
}

func (s Service) CreateOrder(ctx context.Context, in model.OrderInput) (model.Order, error) {
	if strings.TrimSpace(in.CustomerName) == "" || len(in.Items) == 0 {
		return model.Order{}, validationError("Customer name and items are required")
	}
	if utf8.RuneCountInString(in.CustomerName) > maxNameLength {
		return model.Order{}, validationError(fmt.Sprintf("Customer name must be at most %d characters", maxNameLength))
	}
	switch {
	case in.TotalPrice.IsNegative():
		return model.Order{}, validationError("Total price must not be negative")
	case in.TotalPrice.GreaterThanOrEqual(maxTotal):
		return model.Order{}, validationError("Total price is too large")
	case !in.TotalPrice.Equal(in.TotalPrice.Truncate(priceScale)):
		return model.Order{}, validationError("Total price must have at most 2 decimal places")
	}

	// postgres keeps microseconds; truncating here keeps created_at == updated_at exact
	now := s.now().UTC().Truncate(time.Microsecond)
	o := model.Order{
		CustomerName: in.CustomerName,
		Items:        in.Items,
		TotalPrice:   in.TotalPrice,
		Status:       model.StatusOrdered,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for i := 0; i < numberAttempts; i++ {
		o.Number = s.nextNumber()
		created, err := s.repo.CreateOrder(ctx, o)
		if errors.Is(err, errNumberTaken) {
			s.logger.Warnf("Order number %s already taken, drawing another", o.Number)
			continue
		}
		if err != nil {
			return model.Order{}, err
		}

		s.publish(ctx, events.TypeOrderCreated, created)
		return created, nil
	}

	return model.Order{}, fmt.Errorf("no free order number after %d attempts", numberAttempts)
}

// GetOrders lists every order, or those in status when it is set. A status
// no order can have matches nothing.
func (s Service) GetOrders(ctx context.Context, status string) ([]model.Order, error) {
	var filter model.Status
	if status != "" {
		st, ok := model.ParseStatus(status)
		if !ok {
			return []model.Order{}, nil
		}
		filter = st
	}

	return s.repo.GetOrders(ctx, filter)
}

func (s Service) GetOrder(ctx context.Context, number string) (model.Order, error) {
	if !ValidNumber(number) {
		return model.Order{}, ErrOrderNotFound
	}
	return s.repo.GetOrderByNumber(ctx, number)
}

func (s Service) UpdateOrderStatus(ctx context.Context, number, status string) (model.Order, error) {
	st, ok := model.ParseStatus(status)
	if !ok {
		return model.Order{}, validationError("Invalid status")
	}
	if !ValidNumber(number) {
		return model.Order{}, ErrOrderNotFound
	}

	o, err := s.repo.UpdateOrderStatus(ctx, StatusUpdate{
		Number: number,
		Status: st,
		From:   s.policy.Sources(st),
		At:     s.now().UTC(),
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(ctx, events.TypeStatusChanged, o)
	return o, nil
}

func (s Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// publish is best effort: the order is already committed.
func (s Service) publish(ctx context.Context, typ string, o model.Order) {
	if err := s.publisher.Publish(ctx, events.FromOrder(typ, o)); err != nil {
		s.logger.Errorf("Publish %s for %s: %s", typ, o.Number, err.Error())
	}
}
