package paystack

import "time"

// Transaction statuses reported by verify.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusOngoing   = "ongoing"
	StatusPending   = "pending"
	StatusReversed  = "reversed"
)

// envelope is the outer shape of every Paystack response.
type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// InitializeResponse carries the checkout redirect.
type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction is the verify payload.
type Transaction struct {
	ID              int64      `json:"id"`
	Status          string     `json:"status"`
	Reference       string     `json:"reference"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency"`
	GatewayResponse string     `json:"gateway_response"`
	Channel         string     `json:"channel"`
	PaidAt          *time.Time `json:"paid_at"`
}

// IsSuccessful reports a settled payment.
func (t *Transaction) IsSuccessful() bool {
	return t.Status == StatusSuccess
}

// IsFailed reports a terminal unsuccessful payment.
func (t *Transaction) IsFailed() bool {
	return t.Status == StatusFailed || t.Status == StatusReversed
}

// WebhookEvent is the body Paystack posts to the webhook endpoint.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  Transaction `json:"data"`
}
