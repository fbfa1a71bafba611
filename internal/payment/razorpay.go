package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Razorpay talks to the Razorpay orders API.
type Razorpay struct {
	client    *resty.Client
	keyID     string
	keySecret string
}

// NewRazorpay refuses empty keys: an empty secret would make every
// signature computable by anyone.
func NewRazorpay(baseURL, keyID, keySecret string) (*Razorpay, error) {
	if keyID == "" || keySecret == "" {
		return nil, ErrMissingKeys
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(keyID, keySecret).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond)

	return &Razorpay{client: client, keyID: keyID, keySecret: keySecret}, nil
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var (
		out    razorpayOrder
		apiErr razorpayError
	)

	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(razorpayOrderRequest{
			Amount:   req.AmountMinor,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Notes:    req.Notes,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrGateway, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: create order: status=%d code=%s %s",
			ErrGateway, resp.StatusCode(), apiErr.Error.Code, apiErr.Error.Description)
	}

	return &Order{
		ID:          out.ID,
		Receipt:     out.Receipt,
		AmountMinor: out.Amount,
		Currency:    out.Currency,
		KeyID:       r.keyID,
	}, nil
}

func (r *Razorpay) Verify(_ context.Context, order Order, out Outcome) (*Receipt, error) {
	if out.OrderID != order.ID {
		return nil, ErrOrderMismatch
	}
	if out.PaymentID == "" {
		return nil, fmt.Errorf("%w: missing payment id", ErrSignatureMismatch)
	}

	want := Sign(r.keySecret, out.OrderID, out.PaymentID)
	if !hmac.Equal([]byte(want), []byte(out.Signature)) {
		return nil, ErrSignatureMismatch
	}

	return &Receipt{PaymentID: out.PaymentID, OrderID: out.OrderID}, nil
}

// Sign computes the checkout signature Razorpay attaches to a successful payment.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
