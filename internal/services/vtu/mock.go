package vtu

import (
	"context"
	"fmt"
	"sync"

	"quicksurf/internal/models"

	"github.com/shopspring/decimal"
)

// MockGateway is a canned provider for local development and tests. By
// default every purchase is delivered instantly; individual request ids can
// be scripted to pend or fail.
type MockGateway struct {
	mu       sync.Mutex
	scripted map[string]Outcome
	queue    []Outcome
	calls    []string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{scripted: make(map[string]Outcome)}
}

// Script pins the outcome returned for a request id. It applies to both the
// purchase call and later requeries until re-scripted.
func (m *MockGateway) Script(requestID string, out Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out.RequestID = requestID
	m.scripted[requestID] = out
}

// ScriptNext queues outcomes for upcoming calls in order, regardless of
// request id. A consumed outcome gets pinned to the request id it answered,
// so later requeries of that id repeat it until re-scripted.
func (m *MockGateway) ScriptNext(outs ...Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, outs...)
}

// Calls returns the request ids seen so far, in order.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockGateway) PurchaseAirtime(_ context.Context, _, phone string, amount decimal.Decimal, requestID string) Outcome {
	return m.resolve(requestID, models.JSON{"phone": phone, "amount": amount.StringFixed(2)})
}

func (m *MockGateway) PurchaseData(_ context.Context, _, phone, variationCode, requestID string) Outcome {
	return m.resolve(requestID, models.JSON{"phone": phone, "variation_code": variationCode})
}

func (m *MockGateway) Requery(_ context.Context, requestID string) Outcome {
	return m.resolve(requestID, nil)
}

func (m *MockGateway) ListPlans(_ context.Context, serviceID string) ([]Plan, error) {
	return []Plan{
		{Code: serviceID + "-500mb", Name: "500MB - 1 Day", Amount: "150.00"},
		{Code: serviceID + "-1gb", Name: "1GB - 7 Days", Amount: "300.00"},
		{Code: serviceID + "-5gb", Name: "5GB - 30 Days", Amount: "1500.00"},
	}, nil
}

func (m *MockGateway) resolve(requestID string, extra models.JSON) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, requestID)
	if len(m.queue) > 0 {
		out := m.queue[0]
		m.queue = m.queue[1:]
		out.RequestID = requestID
		m.scripted[requestID] = out
		return out
	}
	if out, ok := m.scripted[requestID]; ok {
		return out
	}
	return DeliveredOutcome(requestID, extra)
}

// DeliveredOutcome builds a success outcome in the provider's wire shape.
func DeliveredOutcome(requestID string, extra models.JSON) Outcome {
	raw := models.JSON{
		"code":                 codeSuccess,
		"response_description": "TRANSACTION SUCCESSFUL",
		"requestId":            requestID,
		"content": map[string]interface{}{
			"transactions": map[string]interface{}{
				"status":        statusDelivered,
				"transactionId": fmt.Sprintf("MOCK-%s", requestID),
			},
		},
	}
	for k, v := range extra {
		raw[k] = v
	}
	return Outcome{
		State:         StateSuccessful,
		Code:          codeSuccess,
		Message:       "TRANSACTION SUCCESSFUL",
		ProviderTxnID: fmt.Sprintf("MOCK-%s", requestID),
		RequestID:     requestID,
		HTTPStatus:    200,
		Raw:           raw,
	}
}

// PendingOutcome builds an in-progress outcome for scripting.
func PendingOutcome(requestID string) Outcome {
	return Outcome{
		State:      StatePending,
		Code:       "099",
		Message:    "TRANSACTION IS PROCESSING",
		RequestID:  requestID,
		HTTPStatus: 200,
		Raw: models.JSON{
			"code":                 "099",
			"response_description": "TRANSACTION IS PROCESSING",
		},
	}
}

// FailedOutcome builds a provider-confirmed decline for scripting.
func FailedOutcome(requestID, code, message string) Outcome {
	return Outcome{
		State:      StateFailed,
		Code:       code,
		Message:    message,
		RequestID:  requestID,
		HTTPStatus: 200,
		Raw: models.JSON{
			"code":                 code,
			"response_description": message,
		},
	}
}

// TransportOutcome builds a network-failure outcome for scripting.
func TransportOutcome(requestID string) Outcome {
	return transportOutcome(requestID, fmt.Errorf("connection refused"))
}
