package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOrdered   Status = "ordered"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
)

// Lifecycle lists every status in the order an order normally moves through them.
var Lifecycle = []Status{StatusOrdered, StatusPreparing, StatusReady, StatusServed}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.Valid()
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

func (s Status) rank() int {
	for i, st := range Lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

type LineItem struct {
	ID       int             `json:"id,omitempty"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity,omitempty"`
}

type Order struct {
	ID           int             `json:"id"`
	Number       string          `json:"order_number"`
	CustomerName string          `json:"customer_name"`
	Items        []LineItem      `json:"items"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type OrderInput struct {
	CustomerName string          `json:"customer_name"`
	Items        []LineItem      `json:"items"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

type StatusInput struct {
	Status string `json:"status"`
}
