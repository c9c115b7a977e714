// Package vtu is the gateway adapter for the VTU provider. It normalizes the
// provider's heterogeneous responses into a canonical tri-state Outcome and
// shields callers from transport details.
package vtu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quicksurf/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service ids per network, matching the provider catalogue.
var (
	AirtimeServiceIDs = map[string]string{
		models.NetworkMTN:     "mtn",
		models.NetworkGlo:     "glo",
		models.NetworkAirtel:  "airtel",
		models.Network9Mobile: "9mobile",
	}
	DataServiceIDs = map[string]string{
		models.NetworkMTN:     "mtn-data",
		models.NetworkGlo:     "glo-data",
		models.NetworkAirtel:  "airtel-data",
		models.Network9Mobile: "9mobile-data",
	}
)

// Plan is one purchasable variation of a data service.
type Plan struct {
	Code   string `json:"variation_code"`
	Name   string `json:"name"`
	Amount string `json:"variation_amount"`
}

// Gateway is what the orchestrator depends on. The request id doubles as the
// provider-facing idempotency token and must stay stable across retries of
// the same purchase.
type Gateway interface {
	PurchaseAirtime(ctx context.Context, network, phone string, amount decimal.Decimal, requestID string) Outcome
	PurchaseData(ctx context.Context, network, phone, variationCode, requestID string) Outcome
	Requery(ctx context.Context, requestID string) Outcome
	ListPlans(ctx context.Context, serviceID string) ([]Plan, error)
}

// LogFunc receives one audit row per provider exchange. Implementations must
// swallow their own failures; a log write never breaks a purchase.
type LogFunc func(ctx context.Context, log *models.ProviderLog)

// Config holds client credentials and timeouts.
type Config struct {
	BaseURL        string
	APIKey         string
	PublicKey      string
	SecretKey      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// MaxRetries bounds retries of pre-flight connection errors. A request
	// that produced any HTTP response is never retried.
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client talks HTTP to the provider.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	logFn  LogFunc
}

// NewClient builds a provider client. logFn may be nil.
func NewClient(cfg Config, logger *zap.Logger, logFn LogFunc) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://sandbox.vtpass.com/api"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 25 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 800 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.ConnectTimeout + cfg.ReadTimeout},
		logger: logger,
		logFn:  logFn,
	}
}

// GenerateRequestID builds a provider-accepted request id: the first 12
// characters must be Lagos time (UTC+1) as YYYYMMDDHHMM.
func GenerateRequestID() string {
	lagos := time.Now().UTC().Add(time.Hour)
	return lagos.Format("200601021504") + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func (c *Client) PurchaseAirtime(ctx context.Context, network, phone string, amount decimal.Decimal, requestID string) Outcome {
	serviceID, ok := AirtimeServiceIDs[strings.ToLower(network)]
	if !ok {
		return Outcome{
			State:     StateFailed,
			Message:   fmt.Sprintf("unsupported network: %s", network),
			RequestID: requestID,
		}
	}
	payload := models.JSON{
		"request_id": requestID,
		"serviceID":  serviceID,
		"amount":     amount.IntPart(),
		"phone":      phone,
	}
	return c.pay(ctx, models.ProviderLogAirtime, requestID, payload)
}

func (c *Client) PurchaseData(ctx context.Context, network, phone, variationCode, requestID string) Outcome {
	serviceID, ok := DataServiceIDs[strings.ToLower(network)]
	if !ok {
		return Outcome{
			State:     StateFailed,
			Message:   fmt.Sprintf("unsupported network: %s", network),
			RequestID: requestID,
		}
	}
	payload := models.JSON{
		"request_id":     requestID,
		"serviceID":      serviceID,
		"billersCode":    phone,
		"variation_code": variationCode,
		"phone":          phone,
	}
	return c.pay(ctx, models.ProviderLogData, requestID, payload)
}

func (c *Client) Requery(ctx context.Context, requestID string) Outcome {
	payload := models.JSON{"request_id": requestID}
	started := time.Now()
	status, body, err := c.request(ctx, http.MethodPost, "/requery", payload, nil)
	c.audit(ctx, models.ProviderLogVTU, "/requery", requestID, payload, body, status, time.Since(started), err)
	if err != nil {
		return transportOutcome(requestID, err)
	}
	return outcomeFromBody(body, requestID, status)
}

func (c *Client) ListPlans(ctx context.Context, serviceID string) ([]Plan, error) {
	params := url.Values{"serviceID": []string{serviceID}}
	started := time.Now()
	status, body, err := c.request(ctx, http.MethodGet, "/service-variations", nil, params)
	c.audit(ctx, models.ProviderLogVTU, "/service-variations", "", models.JSON{"serviceID": serviceID}, body, status, time.Since(started), err)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list plans: provider returned http %d", status)
	}

	content, _ := body["content"].(map[string]interface{})
	rawVariations, _ := content["variations"].([]interface{})
	plans := make([]Plan, 0, len(rawVariations))
	for _, raw := range rawVariations {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		plans = append(plans, Plan{
			Code:   stringField(m, "variation_code"),
			Name:   stringField(m, "name"),
			Amount: stringField(m, "variation_amount"),
		})
	}
	return plans, nil
}

func (c *Client) pay(ctx context.Context, serviceType, requestID string, payload models.JSON) Outcome {
	started := time.Now()
	status, body, err := c.request(ctx, http.MethodPost, "/pay", payload, nil)
	c.audit(ctx, serviceType, "/pay", requestID, payload, body, status, time.Since(started), err)
	if err != nil {
		return transportOutcome(requestID, err)
	}
	return outcomeFromBody(body, requestID, status)
}

// request performs one HTTP exchange. Connection-level failures are retried
// up to MaxRetries with a brief backoff; once any response arrives the
// request is never retried, so the provider is never charged twice for one
// request id.
func (c *Client) request(ctx context.Context, method, path string, payload models.JSON, params url.Values) (int, models.JSON, error) {
	endpoint := c.cfg.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return 0, nil, err
			}
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
		if err != nil {
			return 0, nil, err
		}
		c.setHeaders(req, method)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("provider request failed",
				zap.String("endpoint", path),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		parsed := parseBody(resp)
		resp.Body.Close()
		return resp.StatusCode, parsed, nil
	}
	return 0, nil, lastErr
}

func (c *Client) setHeaders(req *http.Request, method string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("cache-control", "no-cache")
	req.Header.Set("api-key", c.cfg.APIKey)
	if method == http.MethodGet {
		if c.cfg.PublicKey != "" {
			req.Header.Set("public-key", c.cfg.PublicKey)
		}
	} else if c.cfg.SecretKey != "" {
		req.Header.Set("secret-key", c.cfg.SecretKey)
	}
}

func parseBody(resp *http.Response) models.JSON {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.JSON{"raw": "", "http_status": resp.StatusCode}
	}
	var body models.JSON
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return models.JSON{"raw": string(raw), "http_status": resp.StatusCode}
	}
	if _, ok := body["http_status"]; !ok {
		body["http_status"] = resp.StatusCode
	}
	return body
}

func (c *Client) audit(ctx context.Context, serviceType, endpoint, requestID string, request, response models.JSON, status int, elapsed time.Duration, err error) {
	if c.logFn == nil {
		return
	}
	log := &models.ProviderLog{
		ServiceType:     serviceType,
		Provider:        "vtpass",
		Endpoint:        endpoint,
		RequestID:       requestID,
		ClientReference: requestID,
		RequestPayload:  MaskPayload(request),
		ResponsePayload: MaskPayload(response),
		StatusCode:      fmt.Sprint(status),
		ResponseTimeMS:  int(elapsed.Milliseconds()),
	}
	if err != nil {
		log.StatusCode = "0"
		log.ErrorMessage = err.Error()
	}
	c.logFn(ctx, log)
}
