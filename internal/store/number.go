package store

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/theplant/luhn"
)

const (
	NumberPrefix = "CL"

	numberTimeLayout = "20060102150405"
	numberSeqSpace   = 10000
	numberDigits     = len(numberTimeLayout) + 4 + 1
)

// NumberGenerator issues order numbers of the form
//
//	CL YYYYMMDDHHMMSS NNNN C
//
// where the time is the UTC creation second, NNNN a per-process sequence
// seeded at random and C a Luhn check digit over the preceding digits.
// One process hands out up to 10000 distinct numbers within a second.
type NumberGenerator struct {
	seq atomic.Uint32
	now func() time.Time
}

func NewNumberGenerator(now func() time.Time) *NumberGenerator {
	g := &NumberGenerator{now: now}
	g.seq.Store(rand.Uint32() % numberSeqSpace)
	return g
}

func (g *NumberGenerator) Next() string {
	seq := g.seq.Add(1) % numberSeqSpace
	digits := g.now().UTC().Format(numberTimeLayout) + fmt.Sprintf("%04d", seq)

	// 18 digits always fit an int on 64-bit platforms
	n, _ := strconv.Atoi(digits)
	return NumberPrefix + digits + strconv.Itoa(luhn.CalculateLuhn(n))
}

// ValidNumber reports whether s is shaped like a number this store issues.
func ValidNumber(s string) bool {
	digits := strings.TrimPrefix(s, NumberPrefix)
	if len(digits) != numberDigits || len(digits) == len(s) {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return false
	}
	return luhn.Valid(n)
}
