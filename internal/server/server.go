package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cafelumiere/orderflow/internal/metrics"
	"github.com/cafelumiere/orderflow/internal/resilient"
)

const shutdownTimeout = 10 * time.Second

// New builds a fiber app with the middleware every service shares. Routes
// are registered by the caller.
func New(name string, logger *zap.SugaredLogger, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(requestContext)
	app.Use(fiberlogger.New())

	if m != nil {
		app.Use(m.Middleware())
		app.Get("/metrics", m.Handler())
	}
	return app
}

func requestContext(c *fiber.Ctx) error {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		c.SetUserContext(resilient.WithRequestID(c.UserContext(), id))
	}
	return c.Next()
}

// Context is the context handlers pass downstream. It is not cancelled when
// the caller goes away, so a started upstream call runs to completion.
func Context(c *fiber.Ctx) context.Context {
	return c.UserContext()
}

func ErrorHandler(logger *zap.SugaredLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			switch fe.Code {
			case fiber.StatusNotFound:
				return Error(c, fiber.StatusNotFound, "Endpoint not found")
			case fiber.StatusMethodNotAllowed:
				return Error(c, fiber.StatusMethodNotAllowed, "Method not allowed")
			}
			return Error(c, fe.Code, fe.Message)
		}

		logger.Errorf("Unhandled error on %s %s: %s", c.Method(), c.Path(), err.Error())
		return Error(c, fiber.StatusInternalServerError, "Internal server error")
	}
}

func Error(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// Run serves app on addr until SIGINT or SIGTERM.
func Run(app *fiber.App, addr string, logger *zap.SugaredLogger) {
	go func() {
		if err := app.Listen(addr); err != nil {
			logger.Fatal(err)
		}
	}()
	logger.Infof("Listening on %s", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down service...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Errorf("Shutdown error: %s", err.Error())
	}
}
