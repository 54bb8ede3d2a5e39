package frontend

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/resilient"
	"github.com/cafelumiere/orderflow/internal/server"
)

// Gateway forwards the customer UI's API calls to the order store and the
// kitchen. Upstream answers are passed through untouched and nothing is
// retried.
type Gateway struct {
	orderURL   string
	kitchenURL string
	timeout    time.Duration
	client     *fasthttp.Client
	logger     *zap.SugaredLogger
}

func NewGateway(orderURL, kitchenURL string, timeout time.Duration, logger *zap.SugaredLogger) *Gateway {
	return &Gateway{
		orderURL:   orderURL,
		kitchenURL: kitchenURL,
		timeout:    timeout,
		client: &fasthttp.Client{
			NoDefaultUserAgentHeader: true,
			DisablePathNormalizing:   true,
		},
		logger: logger,
	}
}

func (g *Gateway) Register(app *fiber.App) {
	app.Get("/health", g.Health)

	api := app.Group("/api")
	api.Post("/orders", g.forward(g.orderURL, "/orders"))
	api.Get("/orders", g.forward(g.orderURL, "/orders"))
	api.Get("/orders/:number", g.forwardParam(g.orderURL, "/orders/", ""))

	api.Get("/kitchen/orders", g.forward(g.kitchenURL, "/kitchen/orders"))
	for _, action := range []string{"start", "ready", "serve"} {
		api.Post("/kitchen/orders/:number/"+action, g.forwardParam(g.kitchenURL, "/kitchen/orders/", "/"+action))
	}
	api.Get("/display/orders", g.forward(g.kitchenURL, "/display/orders"))
}

func (g *Gateway) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy", "service": "frontend"})
}

func (g *Gateway) forward(base, path string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return g.do(c, base+path)
	}
}

func (g *Gateway) forwardParam(base, prefix, suffix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return g.do(c, base+prefix+c.Params("number")+suffix)
	}
}

func (g *Gateway) do(c *fiber.Ctx, target string) error {
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		target += "?" + string(q)
	}
	if id := resilient.RequestID(server.Context(c)); id != "" {
		c.Request().Header.Set(resilient.RequestIDHeader, id)
	}

	err := proxy.DoTimeout(c, target, g.timeout, g.client)
	if err == nil {
		return nil
	}

	g.logger.Errorf("Forward %s %s: %s", c.Method(), target, err.Error())
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return server.Error(c, fiber.StatusGatewayTimeout, "Request timeout")
	}
	return server.Error(c, fiber.StatusServiceUnavailable, "Service unavailable")
}
