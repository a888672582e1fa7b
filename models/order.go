package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutState tracks one checkout attempt. It is only logged, never stored.
type CheckoutState string

const (
	CheckoutStateCreated          CheckoutState = "CREATED"
	CheckoutStateCaptureRequested CheckoutState = "CAPTURE_REQUESTED"
	CheckoutStateCaptured         CheckoutState = "CAPTURED"
	CheckoutStateCaptureOther     CheckoutState = "CAPTURE_OTHER"
	CheckoutStateFailed           CheckoutState = "FAILED"
)

// CaptureStatusCompleted is the gateway status that marks funds as captured.
const CaptureStatusCompleted = "COMPLETED"

type CreateOrderRequest struct {
	CourseID string `json:"courseId" binding:"required"`
	Currency string `json:"currency"`
}

type CaptureOrderRequest struct {
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CourseID      string `json:"courseId"`
}

// Amount mirrors the gateway money object.
type Amount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

// CaptureSummary holds the few capture fields the orchestrator inspects.
// The full gateway document is always passed through untouched.
type CaptureSummary struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Amount Amount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CapturedAmount returns the first capture's amount, if the gateway reported one.
func (s CaptureSummary) CapturedAmount() (Amount, bool) {
	for _, pu := range s.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			return c.Amount, true
		}
	}
	return Amount{}, false
}

// CheckoutEvent is published to the event stream after checkout milestones.
type CheckoutEvent struct {
	EventType     string          `json:"event_type"` // order_created, payment_captured, crypto_proof_submitted
	OrderID       string          `json:"order_id,omitempty"`
	CourseID      string          `json:"course_id,omitempty"`
	ProductName   string          `json:"product_name,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
