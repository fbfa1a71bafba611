package payment

import (
	"context"
	"fmt"
	"time"
)

// Sandbox stands in for Razorpay when no key is configured. Every success
// outcome for the right order is accepted.
type Sandbox struct {
	now func() time.Time
}

func NewSandbox() *Sandbox {
	return &Sandbox{now: time.Now}
}

func (s *Sandbox) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	return &Order{
		ID:          fmt.Sprintf("order_test_%d", s.now().UnixNano()),
		Receipt:     req.Receipt,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Sandbox:     true,
	}, nil
}

func (s *Sandbox) Verify(_ context.Context, order Order, out Outcome) (*Receipt, error) {
	if out.OrderID != "" && out.OrderID != order.ID {
		return nil, ErrOrderMismatch
	}
	paymentID := out.PaymentID
	if paymentID == "" {
		paymentID = fmt.Sprintf("pay_test_%d", s.now().UnixNano())
	}
	return &Receipt{PaymentID: paymentID, OrderID: order.ID}, nil
}
