package payment

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"

	"lms/config"
)

// Gateway transaction statuses as reported by the processor.
const (
	GatewayStatusSucceeded = "succeeded"
	GatewayStatusPending   = "pending"
	GatewayStatusFailed    = "failed"
)

// AuthorizeRequest describes a charge to authorize and capture. Amounts are
// in minor units.
type AuthorizeRequest struct {
	AmountMinor    int64
	Currency       string
	PaymentMethod  string
	IdempotencyKey string
	Metadata       map[string]string
}

// GatewayResult is the processor's view of a transaction.
type GatewayResult struct {
	TransactionID string
	Status        string
	FeesMinor     int64
}

// Gateway is the external payment processor, treated as an opaque
// authorize/retrieve/refund service.
type Gateway interface {
	Authorize(req AuthorizeRequest) (*GatewayResult, error)
	Retrieve(txID string) (*GatewayResult, error)
	Refund(txID string, amountMinor *int64) (*GatewayResult, error)
}

// IsTimeout reports whether a gateway call failed with a timeout. A timeout
// is an indeterminate outcome: the charge may or may not have gone through,
// so the caller must leave the payment pending and resolve it via Confirm.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type gatewayResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Fees    int64  `json:"fees"`
	Message string `json:"message"`
}

// HTTPGateway talks to the configured payment processor over HTTP with a
// bounded per-call timeout.
type HTTPGateway struct {
	client *resty.Client
}

func NewHTTPGateway() *HTTPGateway {
	cfg := config.AppConfig
	client := resty.New().
		SetBaseURL(cfg.GatewayURL).
		SetTimeout(time.Duration(cfg.GatewayTimeoutSec) * time.Second).
		SetAuthToken(cfg.GatewayKey).
		SetHeader("Content-Type", "application/json")
	return &HTTPGateway{client: client}
}

func (g *HTTPGateway) Authorize(req AuthorizeRequest) (*GatewayResult, error) {
	var out gatewayResponse
	resp, err := g.client.R().
		SetHeader("Idempotency-Key", req.IdempotencyKey).
		SetBody(map[string]interface{}{
			"amount":         req.AmountMinor,
			"currency":       req.Currency,
			"payment_method": req.PaymentMethod,
			"capture":        true,
			"metadata":       req.Metadata,
		}).
		SetResult(&out).
		Post("/charges")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway responded %s: %s", resp.Status(), out.Message)
	}
	return &GatewayResult{TransactionID: out.ID, Status: out.Status, FeesMinor: out.Fees}, nil
}

func (g *HTTPGateway) Retrieve(txID string) (*GatewayResult, error) {
	var out gatewayResponse
	resp, err := g.client.R().
		SetResult(&out).
		Get("/charges/" + txID)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway responded %s: %s", resp.Status(), out.Message)
	}
	return &GatewayResult{TransactionID: out.ID, Status: out.Status, FeesMinor: out.Fees}, nil
}

func (g *HTTPGateway) Refund(txID string, amountMinor *int64) (*GatewayResult, error) {
	body := map[string]interface{}{"transaction_id": txID}
	if amountMinor != nil {
		body["amount"] = *amountMinor
	}
	var out gatewayResponse
	resp, err := g.client.R().
		SetBody(body).
		SetResult(&out).
		Post("/refunds")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway responded %s: %s", resp.Status(), out.Message)
	}
	return &GatewayResult{TransactionID: out.ID, Status: out.Status, FeesMinor: out.Fees}, nil
}
