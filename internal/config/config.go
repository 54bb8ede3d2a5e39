package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cafelumiere/orderflow/internal/model"
	"github.com/cafelumiere/orderflow/internal/resilient"
)

const (
	RunAddress        = "RUN_ADDRESS"
	DatabaseURI       = "DATABASE_URI"
	ConnectAttempts   = "DB_CONNECT_ATTEMPTS"
	ConnectBackoff    = "DB_CONNECT_BACKOFF"
	TransitionPolicy  = "TRANSITION_POLICY"
	KafkaBrokers      = "KAFKA_BROKERS"
	KafkaTopic        = "KAFKA_TOPIC"
	OrderServiceURL   = "ORDER_SERVICE_URL"
	KitchenServiceURL = "KITCHEN_SERVICE_URL"
	RetryMaxAttempts  = "RETRY_MAX_ATTEMPTS"
	RetryBaseDelay    = "RETRY_BASE_DELAY"
	RetryStatuses     = "RETRY_STATUSES"
	AttemptTimeout    = "ATTEMPT_TIMEOUT"
	BreakerThreshold  = "BREAKER_THRESHOLD"
	ForwardTimeout    = "FORWARD_TIMEOUT"
)

const (
	defaultStoreAddress    = ":5001"
	defaultKitchenAddress  = ":5002"
	defaultFrontendAddress = ":5000"

	defaultOrderServiceURL   = "http://localhost:5001"
	defaultKitchenServiceURL = "http://localhost:5002"
)

type Store struct {
	RunAddress      string
	DatabaseURI     string
	ConnectAttempts int
	ConnectBackoff  time.Duration
	Policy          model.TransitionPolicy
	KafkaBrokers    []string
	KafkaTopic      string
}

type Kitchen struct {
	RunAddress      string
	OrderServiceURL string
	Client          resilient.Config
}

type Frontend struct {
	RunAddress        string
	OrderServiceURL   string
	KitchenServiceURL string
	ForwardTimeout    time.Duration
}

func NewStore(args []string) (*Store, error) {
	fs := flag.NewFlagSet("orderstore", flag.ContinueOnError)
	c := new(Store)

	var attempts, backoff, policy, brokers string
	fs.StringVar(&c.RunAddress, "a", setEnvOrDefault(RunAddress, defaultStoreAddress), "host to listen on")
	fs.StringVar(&c.DatabaseURI, "d", setEnvOrDefault(DatabaseURI, defaultDatabaseURI()), "postgres connection string")
	fs.StringVar(&attempts, "connect-attempts", setEnvOrDefault(ConnectAttempts, "10"), "database connect attempts at startup")
	fs.StringVar(&backoff, "connect-backoff", setEnvOrDefault(ConnectBackoff, "3s"), "pause between database connect attempts")
	fs.StringVar(&policy, "policy", setEnvOrDefault(TransitionPolicy, string(model.PolicyUnrestricted)), "status transition policy: unrestricted or forward")
	fs.StringVar(&brokers, "kafka-brokers", setEnvOrDefault(KafkaBrokers, ""), "comma separated kafka brokers, empty disables events")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", setEnvOrDefault(KafkaTopic, "order-events"), "kafka topic for order events")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.ConnectAttempts, err = positiveInt("connect-attempts", attempts); err != nil {
		return nil, err
	}
	if c.ConnectBackoff, err = duration("connect-backoff", backoff); err != nil {
		return nil, err
	}
	if c.Policy, err = model.ParseTransitionPolicy(policy); err != nil {
		return nil, err
	}
	c.KafkaBrokers = splitList(brokers)
	return c, nil
}

func NewKitchen(args []string) (*Kitchen, error) {
	fs := flag.NewFlagSet("kitchen", flag.ContinueOnError)
	c := &Kitchen{Client: resilient.DefaultConfig()}

	var attempts, base, statuses, timeout, breaker string
	fs.StringVar(&c.RunAddress, "a", setEnvOrDefault(RunAddress, defaultKitchenAddress), "host to listen on")
	fs.StringVar(&c.OrderServiceURL, "s", setEnvOrDefault(OrderServiceURL, defaultOrderServiceURL), "order store base url")
	fs.StringVar(&attempts, "retry-attempts", setEnvOrDefault(RetryMaxAttempts, "3"), "attempts per upstream call, first included")
	fs.StringVar(&base, "retry-base", setEnvOrDefault(RetryBaseDelay, "300ms"), "first backoff delay, doubled on every retry")
	fs.StringVar(&statuses, "retry-statuses", setEnvOrDefault(RetryStatuses, "500,502,504"), "upstream statuses worth a retry")
	fs.StringVar(&timeout, "attempt-timeout", setEnvOrDefault(AttemptTimeout, "5s"), "timeout of a single upstream attempt")
	fs.StringVar(&breaker, "breaker", setEnvOrDefault(BreakerThreshold, "0"), "failed calls that open the circuit, 0 disables it")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.Client.MaxAttempts, err = positiveInt("retry-attempts", attempts); err != nil {
		return nil, err
	}
	if c.Client.BaseDelay, err = duration("retry-base", base); err != nil {
		return nil, err
	}
	if c.Client.AttemptTimeout, err = duration("attempt-timeout", timeout); err != nil {
		return nil, err
	}
	if c.Client.RetryableStatuses, err = statusList(statuses); err != nil {
		return nil, err
	}
	threshold, err := strconv.ParseUint(breaker, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("breaker: %w", err)
	}
	c.Client.BreakerThreshold = uint32(threshold)
	c.OrderServiceURL = strings.TrimRight(c.OrderServiceURL, "/")
	return c, nil
}

func NewFrontend(args []string) (*Frontend, error) {
	fs := flag.NewFlagSet("frontend", flag.ContinueOnError)
	c := new(Frontend)

	var timeout string
	fs.StringVar(&c.RunAddress, "a", setEnvOrDefault(RunAddress, defaultFrontendAddress), "host to listen on")
	fs.StringVar(&c.OrderServiceURL, "s", setEnvOrDefault(OrderServiceURL, defaultOrderServiceURL), "order store base url")
	fs.StringVar(&c.KitchenServiceURL, "k", setEnvOrDefault(KitchenServiceURL, defaultKitchenServiceURL), "kitchen gateway base url")
	fs.StringVar(&timeout, "timeout", setEnvOrDefault(ForwardTimeout, "10s"), "timeout of a forwarded request")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.ForwardTimeout, err = duration("timeout", timeout); err != nil {
		return nil, err
	}
	c.OrderServiceURL = strings.TrimRight(c.OrderServiceURL, "/")
	c.KitchenServiceURL = strings.TrimRight(c.KitchenServiceURL, "/")
	return c, nil
}

func defaultDatabaseURI() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		setEnvOrDefault("DB_HOST", "localhost"),
		setEnvOrDefault("DB_PORT", "5432"),
		setEnvOrDefault("DB_NAME", "cafe_lumiere"),
		setEnvOrDefault("DB_USER", "postgres"),
		setEnvOrDefault("DB_PASSWORD", "postgres"))
}

func setEnvOrDefault(env, def string) string {
	res, e := os.LookupEnv(env)
	if !e {
		res = def
	}
	return res
}

func positiveInt(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be at least 1, got %d", name, n)
	}
	return n, nil
}

func duration(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, s)
	}
	return d, nil
}

func statusList(s string) ([]int, error) {
	var res []int
	for _, p := range splitList(s) {
		code, err := strconv.Atoi(p)
		if err != nil || code < 100 || code > 599 {
			return nil, fmt.Errorf("retry-statuses: invalid status %q", p)
		}
		res = append(res, code)
	}
	return res, nil
}

func splitList(s string) []string {
	var res []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
