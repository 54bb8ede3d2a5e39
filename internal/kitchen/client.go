package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cafelumiere/orderflow/internal/model"
	"github.com/cafelumiere/orderflow/internal/resilient"
)

// UpstreamError is a non-2xx answer of the order store, kept verbatim so it
// can be forwarded as is.
type UpstreamError struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("order store answered %d: %s", e.StatusCode, e.Body)
}

func upstreamError(res *resilient.Response) error {
	return &UpstreamError{
		StatusCode:  res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Body:        res.Body,
	}
}

// StoreClient talks to the order store's HTTP API. Transport failures come
// back as *resilient.TransportError.
type StoreClient struct {
	base          string
	client        *resilient.Client
	healthTimeout time.Duration
}

const defaultHealthTimeout = 2 * time.Second

type StoreClientOption func(*StoreClient)

// WithHealthTimeout bounds Health as a whole, retries included.
func WithHealthTimeout(d time.Duration) StoreClientOption {
	return func(s *StoreClient) { s.healthTimeout = d }
}

func NewStoreClient(baseURL string, client *resilient.Client, opts ...StoreClientOption) *StoreClient {
	s := &StoreClient{base: baseURL, client: client, healthTimeout: defaultHealthTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *StoreClient) ListOrders(ctx context.Context) ([]model.Order, error) {
	res, err := s.client.Do(ctx, http.MethodGet, s.base+"/orders", nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, upstreamError(res)
	}

	var orders []model.Order
	if err = json.Unmarshal(res.Body, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func (s *StoreClient) UpdateOrderStatus(ctx context.Context, number string, status model.Status) (model.Order, error) {
	res, err := s.client.Do(ctx, http.MethodPut, s.base+"/orders/"+url.PathEscape(number), model.StatusInput{Status: string(status)})
	if err != nil {
		return model.Order{}, err
	}
	if res.StatusCode != http.StatusOK {
		return model.Order{}, upstreamError(res)
	}

	var o model.Order
	if err = json.Unmarshal(res.Body, &o); err != nil {
		return model.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return o, nil
}

func (s *StoreClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()

	res, err := s.client.Do(ctx, http.MethodGet, s.base+"/health", nil)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return upstreamError(res)
	}
	return nil
}
