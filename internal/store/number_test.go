package store_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cafelumiere/orderflow/internal/store"
)

var _ = Describe("Order numbers", func() {
	clock := func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }

	It("differ within the same second", func() {
		g := store.NewNumberGenerator(clock)

		seen := make(map[string]struct{})
		for i := 0; i < 500; i++ {
			n := g.Next()
			Expect(seen).ShouldNot(HaveKey(n))
			seen[n] = struct{}{}
		}
	})
	It("carry the prefix, the creation second and a valid check digit", func() {
		n := store.NewNumberGenerator(clock).Next()

		Expect(n).Should(HavePrefix("CL20260314092653"))
		Expect(n).Should(HaveLen(21))
		Expect(store.ValidNumber(n)).Should(BeTrue())
	})
	It("use UTC whatever the clock's zone", func() {
		local := func() time.Time { return clock().In(time.FixedZone("CET", 3600)) }
		Expect(store.NewNumberGenerator(local).Next()).Should(HavePrefix("CL20260314092653"))
	})
	It("rejects malformed numbers", func() {
		n := store.NewNumberGenerator(clock).Next()
		digits := strings.TrimPrefix(n, "CL")

		last := digits[len(digits)-1]
		wrong := byte('0' + (last-'0'+1)%10)

		for _, s := range []string{
			"",
			"CL",
			digits,
			"XX" + digits,
			n + "0",
			n[:len(n)-1],
			n[:len(n)-1] + string(wrong),
			"CL2026031409265A00001",
		} {
			Expect(store.ValidNumber(s)).Should(BeFalse(), s)
		}
	})
})
