package resilient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	OutcomeOK              = "ok"
	OutcomeRetryableStatus = "retryable_status"
	OutcomeTransportError  = "transport_error"
)

type Config struct {
	// MaxAttempts counts the first attempt.
	MaxAttempts       int
	BaseDelay         time.Duration
	AttemptTimeout    time.Duration
	RetryableStatuses []int
	// BreakerThreshold is the number of consecutive failed calls that opens
	// the circuit. Zero disables the breaker.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		BaseDelay:         300 * time.Millisecond,
		AttemptTimeout:    5 * time.Second,
		RetryableStatuses: []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout},
		BreakerCooldown:   30 * time.Second,
	}
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Observer is told the outcome of every single attempt.
type Observer func(outcome string)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

// Client retries transient failures of outbound HTTP calls with exponential
// backoff. It is safe for concurrent use.
type Client struct {
	http      *http.Client
	cfg       Config
	retryable map[int]struct{}
	breaker   *gobreaker.CircuitBreaker[*Response]
	observe   Observer
	logger    *zap.SugaredLogger
}

func New(cfg Config, logger *zap.SugaredLogger, opts ...Option) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Millisecond
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultConfig().AttemptTimeout
	}

	c := &Client{
		http:      &http.Client{},
		cfg:       cfg,
		retryable: make(map[int]struct{}, len(cfg.RetryableStatuses)),
		observe:   func(string) {},
		logger:    logger,
	}
	for _, s := range cfg.RetryableStatuses {
		c.retryable[s] = struct{}{}
	}
	for _, o := range opts {
		o(c)
	}

	if cfg.BreakerThreshold > 0 {
		c.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
			Name:    "upstream",
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			},
		})
	}
	return c
}

// Do sends method to url with body encoded as JSON (nil means no body).
//
// A response is returned for every status the upstream answered with,
// including a retryable one if it was still failing on the last attempt.
// When no attempt produced a response the error is a *TransportError.
func (c *Client) Do(ctx context.Context, method, url string, body interface{}) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	if c.breaker == nil {
		return c.do(ctx, method, url, payload)
	}

	res, err := c.breaker.Execute(func() (*Response, error) {
		return c.do(ctx, method, url, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &TransportError{Kind: ErrUnavailable, Err: err}
	}
	return res, err
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("retryable status %d", e.code)
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) (*Response, error) {
	var (
		res      *Response
		attempts int
		buildErr error
	)

	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1), retry.NewExponential(c.cfg.BaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := c.newRequest(ctx, method, url, payload)
		if err != nil {
			buildErr = err
			return err
		}
		attempts++

		r, err := c.attempt(req)
		if err != nil {
			res = nil
			c.observe(OutcomeTransportError)
			c.logger.Warnf("%s %s attempt %d/%d failed: %s", method, url, attempts, c.cfg.MaxAttempts, err.Error())
			return retry.RetryableError(err)
		}

		res = r
		if _, ok := c.retryable[r.StatusCode]; ok {
			c.observe(OutcomeRetryableStatus)
			c.logger.Warnf("%s %s attempt %d/%d returned %d", method, url, attempts, c.cfg.MaxAttempts, r.StatusCode)
			return retry.RetryableError(&statusError{code: r.StatusCode})
		}

		c.observe(OutcomeOK)
		return nil
	})

	var se *statusError
	switch {
	case buildErr != nil:
		// nothing was sent
		return nil, buildErr
	case err == nil:
		return res, nil
	case errors.As(err, &se) && res != nil:
		return res, nil
	default:
		return nil, &TransportError{Kind: classify(err), Attempts: attempts, Err: err}
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id := RequestID(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
	return req, nil
}

// attempt bounds a single round trip, body read included, by AttemptTimeout.
func (c *Client) attempt(req *http.Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), c.cfg.AttemptTimeout)
	defer cancel()

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
