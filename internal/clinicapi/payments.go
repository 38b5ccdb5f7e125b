package clinicapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// CheckoutSession is a hosted card checkout created by the backend.
type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

// MpesaPush is the acknowledgement of an STK push request.
type MpesaPush struct {
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	MerchantRequestID string `json:"merchant_request_id,omitempty"`
	ResponseCode      string `json:"response_code,omitempty"`
	Message           string `json:"message,omitempty"`
}

// PaymentStatus is the backend's view of a provider payment.
type PaymentStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	BillingID int64  `json:"billing_id,omitempty"`
}

// Paid reports whether the provider settled the bill.
func (p PaymentStatus) Paid() bool {
	return strings.EqualFold(strings.TrimSpace(p.Status), "paid")
}

// CreateCheckoutSession starts a hosted card payment for a bill.
// POST /billings/{id}/create_checkout_session
func (c *Client) CreateCheckoutSession(ctx context.Context, billingID int64) (*CheckoutSession, error) {
	var out CheckoutSession
	path := fmt.Sprintf("/billings/%d/create_checkout_session", billingID)
	if err := c.do(ctx, http.MethodPost, "/billings/{id}/create_checkout_session", path, struct{}{}, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, fmt.Errorf("clinicapi: checkout session for billing %d returned no url", billingID)
	}
	return &out, nil
}

// InitiateMpesaPayment asks the backend to push a payment prompt to phone.
// POST /billings/{id}/mpesa_payment
func (c *Client) InitiateMpesaPayment(ctx context.Context, billingID int64, phone string) (*MpesaPush, error) {
	var out MpesaPush
	path := fmt.Sprintf("/billings/%d/mpesa_payment", billingID)
	body := map[string]string{"phone_number": phone}
	if err := c.do(ctx, http.MethodPost, "/billings/{id}/mpesa_payment", path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyBillingPayment asks the backend to check the provider for a bill.
// GET /billings/{id}/verify_payment
func (c *Client) VerifyBillingPayment(ctx context.Context, billingID int64) (*PaymentStatus, error) {
	var out PaymentStatus
	path := fmt.Sprintf("/billings/%d/verify_payment", billingID)
	if err := c.do(ctx, http.MethodGet, "/billings/{id}/verify_payment", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTransaction confirms a provider transaction reference against a bill.
// A 2xx answer without a status field is treated as paid.
// POST /payments/verify {transaction_id, billing_id}
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string, billingID int64) (*PaymentStatus, error) {
	body := map[string]any{"transaction_id": transactionID, "billing_id": billingID}
	var out PaymentStatus
	if err := c.do(ctx, http.MethodPost, "/payments/verify", "/payments/verify", body, &out); err != nil {
		return nil, err
	}
	if out.Status == "" {
		out.Status = "paid"
	}
	return &out, nil
}
