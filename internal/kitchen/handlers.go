package kitchen

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/model"
	"github.com/cafelumiere/orderflow/internal/resilient"
	"github.com/cafelumiere/orderflow/internal/server"
)

var actions = []struct {
	path   string
	status model.Status
}{
	{"prepare", model.StatusPreparing},
	{"start", model.StatusPreparing},
	{"ready", model.StatusReady},
	{"serve", model.StatusServed},
}

type Handlers struct {
	Service IService
	logger  *zap.SugaredLogger
}

func NewHandlers(service IService, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{Service: service, logger: logger}
}

func (h *Handlers) Register(app *fiber.App) {
	app.Get("/health", h.Health)

	app.Get("/kitchen/orders", h.KitchenOrders)
	for _, a := range actions {
		handler := h.Advance(a.status)
		app.Put("/kitchen/orders/:number/"+a.path, handler)
		app.Post("/kitchen/orders/:number/"+a.path, handler)
	}

	app.Get("/display/orders", h.DisplayOrders)
}

func (h *Handlers) KitchenOrders(c *fiber.Ctx) error {
	orders, err := h.Service.KitchenOrders(server.Context(c))
	if err != nil {
		return h.fail(c, "fetch orders", err)
	}
	return c.Status(fiber.StatusOK).JSON(orders)
}

func (h *Handlers) DisplayOrders(c *fiber.Ctx) error {
	orders, err := h.Service.DisplayOrders(server.Context(c))
	if err != nil {
		return h.fail(c, "fetch orders", err)
	}
	return c.Status(fiber.StatusOK).JSON(orders)
}

func (h *Handlers) Advance(status model.Status) fiber.Handler {
	return func(c *fiber.Ctx) error {
		o, err := h.Service.Advance(server.Context(c), c.Params("number"), status)
		if err != nil {
			return h.fail(c, "update order", err)
		}
		return c.Status(fiber.StatusOK).JSON(o)
	}
}

// Health never fails the probe: an unreachable store only degrades it.
func (h *Handlers) Health(c *fiber.Ctx) error {
	if err := h.Service.Health(server.Context(c)); err != nil {
		h.logger.Warnf("Order store health check failed: %s", err.Error())
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "degraded", "order_service": "unreachable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy", "order_service": "connected"})
}

func (h *Handlers) fail(c *fiber.Ctx, action string, err error) error {
	var ue *UpstreamError
	switch {
	case errors.As(err, &ue):
		if ue.ContentType != "" {
			c.Set(fiber.HeaderContentType, ue.ContentType)
		}
		return c.Status(ue.StatusCode).Send(ue.Body)
	case errors.Is(err, resilient.ErrTimeout):
		h.logger.Errorf("Error on %s request: %s", action, err.Error())
		return server.Error(c, fiber.StatusGatewayTimeout, "Request timeout")
	case errors.Is(err, resilient.ErrUnavailable):
		h.logger.Errorf("Error on %s request: %s", action, err.Error())
		return server.Error(c, fiber.StatusServiceUnavailable, "Cannot connect to order service")
	}

	h.logger.Errorf("Error on %s request: %s", action, err.Error())
	return server.Error(c, fiber.StatusInternalServerError, "Failed to "+action)
}
