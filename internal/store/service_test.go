package store_test

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cafelumiere/orderflow/internal/events"
	"github.com/cafelumiere/orderflow/internal/mock"
	"github.com/cafelumiere/orderflow/internal/model"
	"github.com/cafelumiere/orderflow/internal/store"
)

var _ = Describe("Service", func() {
	var (
		ctrl *gomock.Controller
		rep  *mock.MockIRepository
		pub  *mock.MockPublisher
		ctx  context.Context
		now  time.Time
		seq  []string

		newService func(policy model.TransitionPolicy) store.IService
	)
	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())

		logger, err := zap.NewDevelopment()
		Expect(err).ShouldNot(HaveOccurred())

		rep = mock.NewMockIRepository(ctrl)
		pub = mock.NewMockPublisher(ctrl)
		ctx = context.Background()
		now = time.Date(2026, 3, 14, 9, 26, 53, 123456789, time.UTC)
		seq = []string{testNumber, "CL2026031409265300029", "CL2026031409265300037"}

		newService = func(policy model.TransitionPolicy) store.IService {
			next := func() string {
				n := seq[0]
				seq = seq[1:]
				return n
			}
			return store.NewService(rep, pub, policy, logger.Sugar(),
				store.WithClock(func() time.Time { return now }),
				store.WithNumbers(next))
		}
	})
	AfterEach(func() {
		ctrl.Finish()
	})

	input := model.OrderInput{
		CustomerName: "Alice",
		Items:        []model.LineItem{{Name: "Latte", Price: decimal.RequireFromString("3.50")}},
		TotalPrice:   decimal.RequireFromString("3.50"),
	}

	echo := func(_ context.Context, o model.Order) (model.Order, error) {
		o.ID = 1
		return o, nil
	}

	Context("CreateOrder", func() {
		It("stores a new order as ordered with equal timestamps", func() {
			rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(echo)
			pub.EXPECT().Publish(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, e events.Event) error {
				Expect(e.Type).Should(Equal(events.TypeOrderCreated))
				Expect(e.OrderNumber).Should(Equal(testNumber))
				return nil
			})

			o, err := newService(model.PolicyUnrestricted).CreateOrder(ctx, input)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(o.Number).Should(Equal(testNumber))
			Expect(o.Status).Should(Equal(model.StatusOrdered))
			Expect(o.CreatedAt).Should(Equal(o.UpdatedAt))
			Expect(o.CreatedAt).Should(Equal(now.Truncate(time.Microsecond)))
		})
		It("rejects a missing customer name or empty items", func() {
			srv := newService(model.PolicyUnrestricted)

			_, err := srv.CreateOrder(ctx, model.OrderInput{Items: input.Items, TotalPrice: input.TotalPrice})
			Expect(err).Should(MatchError(store.ErrValidation))

			_, err = srv.CreateOrder(ctx, model.OrderInput{CustomerName: "  ", Items: input.Items})
			Expect(err).Should(MatchError(store.ErrValidation))

			_, err = srv.CreateOrder(ctx, model.OrderInput{CustomerName: "Alice"})
			var ve *store.ValidationError
			Expect(errors.As(err, &ve)).Should(BeTrue())
			Expect(ve.Msg).Should(Equal("Customer name and items are required"))
		})
		It("rejects a negative total", func() {
			in := input
			in.TotalPrice = decimal.NewFromInt(-1)

			_, err := newService(model.PolicyUnrestricted).CreateOrder(ctx, in)
			Expect(err).Should(MatchError(store.ErrValidation))
		})
		It("rejects a customer name longer than the column", func() {
			in := input
			in.CustomerName = strings.Repeat("é", 101)

			_, err := newService(model.PolicyUnrestricted).CreateOrder(ctx, in)
			var ve *store.ValidationError
			Expect(errors.As(err, &ve)).Should(BeTrue())
			Expect(ve.Msg).Should(Equal("Customer name must be at most 100 characters"))
		})
		It("accepts a name of exactly 100 characters", func() {
			in := input
			in.CustomerName = strings.Repeat("é", 100)
			rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(echo)
			pub.EXPECT().Publish(ctx, gomock.Any())

			_, err := newService(model.PolicyUnrestricted).CreateOrder(ctx, in)
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("rejects a total the column cannot hold", func() {
			srv := newService(model.PolicyUnrestricted)
			for _, total := range []string{"100000000", "123456789.5"} {
				in := input
				in.TotalPrice = decimal.RequireFromString(total)

				_, err := srv.CreateOrder(ctx, in)
				Expect(err).Should(MatchError(store.ErrValidation), total)
			}
		})
		It("rejects a total with more than two decimals", func() {
			in := input
			in.TotalPrice = decimal.RequireFromString("3.505")

			_, err := newService(model.PolicyUnrestricted).CreateOrder(ctx, in)
			Expect(err).Should(MatchError(store.ErrValidation))
		})
		It("accepts trailing zeros and the largest total", func() {
			srv := newService(model.PolicyUnrestricted)
			for _, total := range []string{"3.500", "99999999.99"} {
				in := input
				in.TotalPrice = decimal.RequireFromString(total)
				rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(echo)
				pub.EXPECT().Publish(ctx, gomock.Any())

				_, err := srv.CreateOrder(ctx, in)
				Expect(err).ShouldNot(HaveOccurred(), total)
			}
		})
		It("draws another number when one is taken", func() {
			gomock.InOrder(
				rep.EXPECT().CreateOrder(ctx, gomock.Any()).Return(model.Order{}, store.ErrNumberTaken),
				rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(echo),
			)
			pub.EXPECT().Publish(ctx, gomock.Any())

			o, err := newService(model.PolicyUnrestricted).CreateOrder(ctx, input)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(o.Number).Should(Equal("CL2026031409265300029"))
		})
		It("gives up after three taken numbers", func() {
			rep.EXPECT().CreateOrder(ctx, gomock.Any()).Return(model.Order{}, store.ErrNumberTaken).Times(3)

			_, err := newService(model.PolicyUnrestricted).CreateOrder(ctx, input)
			Expect(err).Should(HaveOccurred())
			Expect(errors.Is(err, store.ErrValidation)).Should(BeFalse())
		})
		It("keeps the order when publishing fails", func() {
			rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(echo)
			pub.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("some error"))

			_, err := newService(model.PolicyUnrestricted).CreateOrder(ctx, input)
			Expect(err).ShouldNot(HaveOccurred())
		})
	})

	Context("GetOrders", func() {
		It("lists every order without a filter", func() {
			rep.EXPECT().GetOrders(ctx, model.Status("")).Return([]model.Order{{Number: testNumber}}, nil)

			orders, err := newService(model.PolicyUnrestricted).GetOrders(ctx, "")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(orders).Should(HaveLen(1))
		})
		It("passes a valid filter down", func() {
			rep.EXPECT().GetOrders(ctx, model.StatusReady).Return([]model.Order{}, nil)

			_, err := newService(model.PolicyUnrestricted).GetOrders(ctx, "ready")
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("matches nothing for an unknown filter", func() {
			orders, err := newService(model.PolicyUnrestricted).GetOrders(ctx, "cancelled")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(orders).ShouldNot(BeNil())
			Expect(orders).Should(BeEmpty())
		})
	})

	Context("GetOrder", func() {
		It("looks the order up", func() {
			rep.EXPECT().GetOrderByNumber(ctx, testNumber).Return(model.Order{Number: testNumber}, nil)

			o, err := newService(model.PolicyUnrestricted).GetOrder(ctx, testNumber)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(o.Number).Should(Equal(testNumber))
		})
		It("answers malformed numbers without a lookup", func() {
			_, err := newService(model.PolicyUnrestricted).GetOrder(ctx, "ORD-1")
			Expect(err).Should(MatchError(store.ErrOrderNotFound))
		})
	})

	Context("UpdateOrderStatus", func() {
		It("accepts any valid status when unrestricted", func() {
			rep.EXPECT().UpdateOrderStatus(ctx, store.StatusUpdate{
				Number: testNumber,
				Status: model.StatusOrdered,
				At:     now,
			}).Return(model.Order{Number: testNumber, Status: model.StatusOrdered}, nil)
			pub.EXPECT().Publish(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, e events.Event) error {
				Expect(e.Type).Should(Equal(events.TypeStatusChanged))
				Expect(e.Status).Should(Equal(model.StatusOrdered))
				return nil
			})

			o, err := newService(model.PolicyUnrestricted).UpdateOrderStatus(ctx, testNumber, "ordered")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(o.Status).Should(Equal(model.StatusOrdered))
		})
		It("restricts the current status under the forward policy", func() {
			rep.EXPECT().UpdateOrderStatus(ctx, store.StatusUpdate{
				Number: testNumber,
				Status: model.StatusReady,
				From:   []model.Status{model.StatusOrdered, model.StatusPreparing},
				At:     now,
			}).Return(model.Order{}, store.ErrInvalidTransition)

			_, err := newService(model.PolicyForward).UpdateOrderStatus(ctx, testNumber, "ready")
			Expect(err).Should(MatchError(store.ErrInvalidTransition))
		})
		It("rejects an unknown status without touching the store", func() {
			_, err := newService(model.PolicyUnrestricted).UpdateOrderStatus(ctx, testNumber, "cancelled")
			Expect(err).Should(MatchError(store.ErrValidation))
		})
		It("answers malformed numbers without a lookup", func() {
			_, err := newService(model.PolicyUnrestricted).UpdateOrderStatus(ctx, "ORD-1", "ready")
			Expect(err).Should(MatchError(store.ErrOrderNotFound))
		})
		It("passes a missing order through", func() {
			rep.EXPECT().UpdateOrderStatus(ctx, gomock.Any()).Return(model.Order{}, store.ErrOrderNotFound)

			_, err := newService(model.PolicyUnrestricted).UpdateOrderStatus(ctx, testNumber, "ready")
			Expect(err).Should(MatchError(store.ErrOrderNotFound))
		})
	})

	It("reports health through a ping", func() {
		rep.EXPECT().Ping(ctx).Return(errors.New("some error"))

		Expect(newService(model.PolicyUnrestricted).Health(ctx)).ShouldNot(Succeed())
	})
})
