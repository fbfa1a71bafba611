package payment

import (
	"context"
	"errors"
)

var (
	ErrGateway           = errors.New("payment gateway error")
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	ErrOrderMismatch     = errors.New("payment is for a different order")
	ErrMissingKeys       = errors.New("payment key id and secret are required")
)

// MinorUnitsPerMajor converts rupees to paise. Gateways take amounts in the smallest unit.
const MinorUnitsPerMajor = 100

func ToMinorUnits(amount int64) int64 {
	return amount * MinorUnitsPerMajor
}

type OrderRequest struct {
	Receipt     string
	AmountMinor int64
	Currency    string
	Notes       map[string]string
}

// Order is what the browser checkout needs to open the payment dialog.
type Order struct {
	ID          string `json:"id"`
	Receipt     string `json:"receipt"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	KeyID       string `json:"key_id,omitempty"`
	Sandbox     bool   `json:"sandbox,omitempty"`
}

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the gateway callback relayed by the browser. Dismissing the
// payment dialog is reported as a failed outcome.
type Outcome struct {
	Status    OutcomeStatus `json:"status"`
	PaymentID string        `json:"razorpay_payment_id,omitempty"`
	OrderID   string        `json:"razorpay_order_id,omitempty"`
	Signature string        `json:"razorpay_signature,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

type Receipt struct {
	PaymentID string
	OrderID   string
}

// Gateway is the external payment collaborator.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// Verify checks a success outcome against the order it claims to pay.
	Verify(ctx context.Context, order Order, out Outcome) (*Receipt, error)
}
