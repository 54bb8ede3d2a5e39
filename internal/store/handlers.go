package store

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/model"
	"github.com/cafelumiere/orderflow/internal/server"
)

const (
	serviceName   = "order-store"
	healthTimeout = 2 * time.Second
)

type Handlers struct {
	Service IService
	logger  *zap.SugaredLogger
}

func NewHandlers(service IService, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{Service: service, logger: logger}
}

func (h *Handlers) Register(app *fiber.App) {
	app.Get("/health", h.Health)

	app.Post("/orders", h.CreateOrder)
	app.Get("/orders", h.GetOrders)
	app.Get("/orders/:number", h.GetOrder)
	app.Put("/orders/:number", h.UpdateOrderStatus)
}

func (h *Handlers) CreateOrder(c *fiber.Ctx) error {
	var i model.OrderInput
	if err := c.BodyParser(&i); err != nil {
		h.logger.Errorf("Error on create order request: %s", err.Error())
		return server.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	o, err := h.Service.CreateOrder(server.Context(c), i)
	if err != nil {
		return h.fail(c, "create order", err)
	}

	return c.Status(fiber.StatusCreated).JSON(o)
}

func (h *Handlers) GetOrders(c *fiber.Ctx) error {
	orders, err := h.Service.GetOrders(server.Context(c), c.Query("status"))
	if err != nil {
		return h.fail(c, "get orders", err)
	}

	return c.Status(fiber.StatusOK).JSON(orders)
}

func (h *Handlers) GetOrder(c *fiber.Ctx) error {
	o, err := h.Service.GetOrder(server.Context(c), c.Params("number"))
	if err != nil {
		return h.fail(c, "get order", err)
	}

	return c.Status(fiber.StatusOK).JSON(o)
}

func (h *Handlers) UpdateOrderStatus(c *fiber.Ctx) error {
	var i model.StatusInput
	if err := c.BodyParser(&i); err != nil {
		h.logger.Errorf("Error on update order request: %s", err.Error())
		return server.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	o, err := h.Service.UpdateOrderStatus(server.Context(c), c.Params("number"), i.Status)
	if err != nil {
		return h.fail(c, "update order", err)
	}

	return c.Status(fiber.StatusOK).JSON(o)
}

func (h *Handlers) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(server.Context(c), healthTimeout)
	defer cancel()

	if err := h.Service.Health(ctx); err != nil {
		h.logger.Warnf("Health check failed: %s", err.Error())
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"service":  serviceName,
			"database": "disconnected",
			"error":    "database unreachable",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":   "healthy",
		"service":  serviceName,
		"database": "connected",
	})
}

func (h *Handlers) fail(c *fiber.Ctx, action string, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return server.Error(c, fiber.StatusBadRequest, ve.Msg)
	case errors.Is(err, ErrOrderNotFound):
		return server.Error(c, fiber.StatusNotFound, "Order not found")
	case errors.Is(err, ErrInvalidTransition):
		return server.Error(c, fiber.StatusConflict, "Invalid status transition")
	}

	h.logger.Errorf("Error on %s request: %s", action, err.Error())
	return server.Error(c, fiber.StatusInternalServerError, "Failed to "+action)
}
