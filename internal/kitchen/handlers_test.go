package kitchen_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cafelumiere/orderflow/internal/kitchen"
	"github.com/cafelumiere/orderflow/internal/model"
	"github.com/cafelumiere/orderflow/internal/resilient"
	"github.com/cafelumiere/orderflow/internal/server"
)

const alice = "CL2026031409265300011"

var _ = Describe("Handlers", func() {
	var (
		backend *orderStore
		ts      *httptest.Server
		app     *fiber.App
	)

	start := func(url string) {
		logger, err := zap.NewDevelopment()
		Expect(err).ShouldNot(HaveOccurred())

		cfg := resilient.DefaultConfig()
		cfg.BaseDelay = time.Millisecond
		cfg.AttemptTimeout = 100 * time.Millisecond

		client := kitchen.NewStoreClient(url, resilient.New(cfg, logger.Sugar()))
		app = server.New("kitchen", logger.Sugar(), nil)
		kitchen.NewHandlers(kitchen.NewService(client, logger.Sugar()), logger.Sugar()).Register(app)
	}

	BeforeEach(func() {
		backend = &orderStore{}
		ts = httptest.NewServer(backend)
		start(ts.URL)
	})
	AfterEach(func() {
		ts.Close()
	})

	call := func(method, target string) (*http.Response, []byte) {
		res, err := app.Test(httptest.NewRequest(method, target, nil), -1)
		Expect(err).ShouldNot(HaveOccurred())
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		Expect(err).ShouldNot(HaveOccurred())
		return res, data
	}

	orders := func(method, target string) []model.Order {
		res, data := call(method, target)
		Expect(res.StatusCode).Should(Equal(fiber.StatusOK))

		var oo []model.Order
		Expect(json.Unmarshal(data, &oo)).Should(Succeed())
		return oo
	}

	advance := func(method, action string) model.Order {
		res, data := call(method, "/kitchen/orders/"+alice+"/"+action)
		Expect(res.StatusCode).Should(Equal(fiber.StatusOK))

		var o model.Order
		Expect(json.Unmarshal(data, &o)).Should(Succeed())
		return o
	}

	errorOf := func(data []byte) string {
		var m map[string]string
		Expect(json.Unmarshal(data, &m)).Should(Succeed())
		return m["error"]
	}

	It("follows an order from the counter to the table", func() {
		backend.add(alice, "Alice", model.StatusOrdered)

		Expect(orders("GET", "/kitchen/orders")).Should(HaveLen(1))
		Expect(orders("GET", "/display/orders")).Should(BeEmpty())

		Expect(advance("POST", "prepare").Status).Should(Equal(model.StatusPreparing))
		board := orders("GET", "/display/orders")
		Expect(board).Should(HaveLen(1))
		Expect(board[0].CustomerName).Should(Equal("Alice"))

		Expect(advance("PUT", "ready").Status).Should(Equal(model.StatusReady))
		Expect(orders("GET", "/display/orders")).Should(HaveLen(1))

		Expect(advance("POST", "serve").Status).Should(Equal(model.StatusServed))
		Expect(orders("GET", "/kitchen/orders")).Should(BeEmpty())
		Expect(orders("GET", "/display/orders")).Should(BeEmpty())
	})
	It("accepts start as an alias of prepare", func() {
		backend.add(alice, "Alice", model.StatusOrdered)

		Expect(advance("PUT", "start").Status).Should(Equal(model.StatusPreparing))
	})
	It("forwards store errors unchanged", func() {
		res, data := call("POST", "/kitchen/orders/CL404/ready")
		Expect(res.StatusCode).Should(Equal(fiber.StatusNotFound))
		Expect(errorOf(data)).Should(Equal("Order not found"))
	})
	It("forwards a store that keeps failing after the retries", func() {
		backend.answer(http.StatusInternalServerError, 0)

		res, data := call("GET", "/kitchen/orders")
		Expect(res.StatusCode).Should(Equal(fiber.StatusInternalServerError))
		Expect(errorOf(data)).Should(Equal("Failed to get orders"))
		Expect(backend.callCount()).Should(Equal(3))
	})
	It("maps a slow store to 504", func() {
		backend.answer(0, 300*time.Millisecond)

		res, data := call("GET", "/display/orders")
		Expect(res.StatusCode).Should(Equal(fiber.StatusGatewayTimeout))
		Expect(errorOf(data)).Should(Equal("Request timeout"))
	})
	It("maps an unreachable store to 503", func() {
		ts.Close()

		res, data := call("GET", "/kitchen/orders")
		Expect(res.StatusCode).Should(Equal(fiber.StatusServiceUnavailable))
		Expect(errorOf(data)).Should(Equal("Cannot connect to order service"))
	})
	It("maps a malformed store url to 500", func() {
		start("://order-store")

		res, data := call("GET", "/kitchen/orders")
		Expect(res.StatusCode).Should(Equal(fiber.StatusInternalServerError))
		Expect(errorOf(data)).Should(Equal("Failed to fetch orders"))
	})

	Context("Health", func() {
		health := func() map[string]string {
			res, data := call("GET", "/health")
			Expect(res.StatusCode).Should(Equal(fiber.StatusOK))

			var m map[string]string
			Expect(json.Unmarshal(data, &m)).Should(Succeed())
			return m
		}

		It("is healthy with a reachable store", func() {
			Expect(health()["status"]).Should(Equal("healthy"))
		})
		It("gives up on a hanging store within its own deadline", func() {
			backend.answer(0, 500*time.Millisecond)

			logger, err := zap.NewDevelopment()
			Expect(err).ShouldNot(HaveOccurred())
			client := kitchen.NewStoreClient(ts.URL, resilient.New(resilient.DefaultConfig(), logger.Sugar()),
				kitchen.WithHealthTimeout(50*time.Millisecond))
			app = server.New("kitchen", logger.Sugar(), nil)
			kitchen.NewHandlers(kitchen.NewService(client, logger.Sugar()), logger.Sugar()).Register(app)

			began := time.Now()
			m := health()
			Expect(time.Since(began)).Should(BeNumerically("<", 400*time.Millisecond))
			Expect(m["status"]).Should(Equal("degraded"))
		})
		It("is degraded but up without one", func() {
			ts.Close()

			m := health()
			Expect(m["status"]).Should(Equal("degraded"))
			Expect(m["order_service"]).Should(Equal("unreachable"))
		})
	})
})
