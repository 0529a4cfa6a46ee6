package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"courtly/internal/shared/config"
)

// OrderStatus is the gateway's view of a payment order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderPaid       OrderStatus = "PAID"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderExpired    OrderStatus = "EXPIRED"
)

type CheckoutItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type CheckoutRequest struct {
	OrderCode   int64          `json:"orderCode"`
	Amount      int64          `json:"amount"`
	Description string         `json:"description"`
	Items       []CheckoutItem `json:"items"`
	ReturnURL   string         `json:"returnUrl"`
	CancelURL   string         `json:"cancelUrl"`
	ExpiredAt   int64          `json:"expiredAt"`
}

type CheckoutSession struct {
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
}

type OrderInfo struct {
	OrderCode      int64       `json:"orderCode"`
	Status         OrderStatus `json:"status"`
	AmountPaid     int64       `json:"amountPaid"`
	TransactionRef string      `json:"transactionRef"`
	PaidAt         *time.Time  `json:"paidAt"`
}

// WebhookPayload is the parsed, signature-verified body of a gateway
// webhook.
type WebhookPayload struct {
	OrderCode      int64       `json:"orderCode"`
	Status         OrderStatus `json:"status"`
	Amount         int64       `json:"amount"`
	TransactionRef string      `json:"reference"`
	TransactionAt  string      `json:"transactionDateTime"`
}

// Gateway abstracts the payment provider's HTTP API so the reconciler and
// tests can swap in fakes.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetOrder(ctx context.Context, orderCode int64) (*OrderInfo, error)
	CancelOrder(ctx context.Context, orderCode int64, reason string) error
	VerifyWebhook(rawBody []byte) (*WebhookPayload, error)
}

// httpGateway talks to the provider over HTTPS with API-key headers and
// checksum-key request signing.
type httpGateway struct {
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey string
	client      *http.Client
}

func NewHTTPGateway(cfg config.GatewayConfig) Gateway {
	return &httpGateway{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		checksumKey: cfg.ChecksumKey,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

type gatewayEnvelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

func (g *httpGateway) CreatePaymentLink(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	payload := map[string]interface{}{
		"orderCode":   req.OrderCode,
		"amount":      req.Amount,
		"description": req.Description,
		"items":       req.Items,
		"returnUrl":   req.ReturnURL,
		"cancelUrl":   req.CancelURL,
		"expiredAt":   req.ExpiredAt,
	}
	payload["signature"] = g.signFields(map[string]string{
		"amount":      fmt.Sprintf("%d", req.Amount),
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   fmt.Sprintf("%d", req.OrderCode),
		"returnUrl":   req.ReturnURL,
	})

	var session CheckoutSession
	if err := g.call(ctx, http.MethodPost, "/v2/payment-requests", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (g *httpGateway) GetOrder(ctx context.Context, orderCode int64) (*OrderInfo, error) {
	var info OrderInfo
	path := fmt.Sprintf("/v2/payment-requests/%d", orderCode)
	if err := g.call(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (g *httpGateway) CancelOrder(ctx context.Context, orderCode int64, reason string) error {
	path := fmt.Sprintf("/v2/payment-requests/%d/cancel", orderCode)
	body := map[string]interface{}{"cancellationReason": reason}
	return g.call(ctx, http.MethodPost, path, body, nil)
}

// VerifyWebhook checks the HMAC signature against the raw data bytes
// before any of the payload is trusted.
func (g *httpGateway) VerifyWebhook(rawBody []byte) (*WebhookPayload, error) {
	var envelope gatewayEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, fmt.Errorf("malformed webhook body: %w", err)
	}
	if envelope.Signature == "" || len(envelope.Data) == 0 {
		return nil, fmt.Errorf("webhook missing data or signature")
	}

	expected := g.signRaw(envelope.Data)
	if !hmac.Equal([]byte(expected), []byte(envelope.Signature)) {
		return nil, ErrInvalidSignature
	}

	var payload WebhookPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, fmt.Errorf("malformed webhook data: %w", err)
	}
	return &payload, nil
}

func (g *httpGateway) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode gateway request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", g.clientID)
	req.Header.Set("x-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return &GatewayUnavailableError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &GatewayUnavailableError{Op: method + " " + path, Err: fmt.Errorf("gateway returned %d", resp.StatusCode)}
	}

	var envelope gatewayEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if envelope.Code != "00" {
		return fmt.Errorf("gateway error %s: %s", envelope.Code, envelope.Desc)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode gateway data: %w", err)
		}
	}
	return nil
}

// signRaw computes the webhook signature: hex HMAC-SHA256 over the raw
// data bytes exactly as they appeared on the wire.
func (g *httpGateway) signRaw(data []byte) string {
	mac := hmac.New(sha256.New, []byte(g.checksumKey))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// signFields signs request fields in the provider's canonical
// key=value&key=value order.
func (g *httpGateway) signFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	mac := hmac.New(sha256.New, []byte(g.checksumKey))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}
