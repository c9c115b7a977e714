package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quicksurf/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InitResult is the gateway's answer to a transaction initialization.
type InitResult struct {
	AuthorizationURL string
	AccessCode       string
	Raw              models.JSON
}

// VerifyResult is the gateway's current view of a transaction.
type VerifyResult struct {
	Status          string
	Amount          decimal.Decimal
	Currency        string
	PaidAt          *time.Time
	GatewayResponse string
	Raw             models.JSON
}

// GatewayClient talks to the card payment gateway. Amounts cross the wire in
// minor units (kobo).
type GatewayClient interface {
	Initialize(ctx context.Context, email string, amount decimal.Decimal, reference, callbackURL string) (*InitResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}

// PaystackConfig holds gateway credentials.
type PaystackConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// PaystackClient implements GatewayClient against the Paystack HTTP API.
type PaystackClient struct {
	cfg    PaystackConfig
	http   *http.Client
	logger *zap.Logger
}

func NewPaystackClient(cfg PaystackConfig, logger *zap.Logger) *PaystackClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaystackClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// ToKobo converts a naira amount to minor units, rounding half up.
func ToKobo(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromKobo converts minor units back to naira.
func FromKobo(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(decimal.NewFromInt(100))
}

func (c *PaystackClient) Initialize(ctx context.Context, email string, amount decimal.Decimal, reference, callbackURL string) (*InitResult, error) {
	payload := map[string]interface{}{
		"email":     email,
		"amount":    ToKobo(amount),
		"reference": reference,
		"currency":  "NGN",
	}
	if callbackURL != "" {
		payload["callback_url"] = callbackURL
	}

	body, err := c.call(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	data, _ := body["data"].(map[string]interface{})
	res := &InitResult{
		AuthorizationURL: jsonString(data, "authorization_url"),
		AccessCode:       jsonString(data, "access_code"),
		Raw:              body,
	}
	if res.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: no authorization url in response", ErrGatewayFailure)
	}
	return res, nil
}

func (c *PaystackClient) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	body, err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	data, _ := body["data"].(map[string]interface{})
	res := &VerifyResult{
		Status:          strings.ToLower(jsonString(data, "status")),
		Currency:        jsonString(data, "currency"),
		GatewayResponse: jsonString(data, "gateway_response"),
		Raw:             body,
	}
	if kobo, ok := data["amount"].(float64); ok {
		res.Amount = FromKobo(int64(kobo))
	}
	if paidAt := jsonString(data, "paid_at"); paidAt != "" {
		if t, err := time.Parse(time.RFC3339, paidAt); err == nil {
			res.PaidAt = &t
		}
	}
	return res, nil
}

func (c *PaystackClient) call(ctx context.Context, method, path string, payload map[string]interface{}) (models.JSON, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrGatewayFailure, err)
	}

	var body models.JSON
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: non-json response (http %d)", ErrGatewayFailure, resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("gateway request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", jsonString(body, "message")),
		)
		return nil, fmt.Errorf("%w: http %d: %s", ErrGatewayFailure, resp.StatusCode, jsonString(body, "message"))
	}
	return body, nil
}

func jsonString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
