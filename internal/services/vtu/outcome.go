package vtu

import (
	"fmt"
	"strings"

	"quicksurf/internal/models"
)

// State is the canonical tri-state result derived from a provider response.
type State string

const (
	StateSuccessful State = "successful"
	StatePending    State = "pending"
	StateFailed     State = "failed"
)

// Provider codes with special meaning.
const (
	codeSuccess   = "000"
	codeTransport = "999" // sentinel for network-level failures, set by us

	statusDelivered = "delivered"
	statusPending   = "pending"
)

// inProgressCodes are provider codes that mean the transaction is still being
// processed and must not be treated as final.
var inProgressCodes = map[string]bool{
	"099": true,
	"016": true,
}

// Outcome is the normalized result of one provider call. Transport marks a
// network-level failure: the provider may or may not have executed the
// request, so the caller must not treat it as a provider-confirmed decline.
type Outcome struct {
	State         State
	Code          string
	Message       string
	ProviderTxnID string
	RequestID     string
	HTTPStatus    int
	Transport     bool
	Raw           models.JSON
}

// Delivered reports a provider-confirmed successful delivery.
func (o Outcome) Delivered() bool { return o.State == StateSuccessful }

// Declined reports a provider-confirmed failure. Transport failures are
// excluded: they leave the true outcome unknown.
func (o Outcome) Declined() bool { return o.State == StateFailed && !o.Transport }

// MapOutcome applies the strict mapping rule. A success code alone is not
// proof of delivery: the inner transaction status must also read
// "delivered". Anything not explicitly successful or pending is failed.
func MapOutcome(body models.JSON) State {
	code := strings.TrimSpace(stringField(body, "code"))
	txStatus := strings.ToLower(stringField(transactions(body), "status"))

	if code == codeSuccess && txStatus == statusDelivered {
		return StateSuccessful
	}
	if txStatus == statusPending || inProgressCodes[code] {
		return StatePending
	}
	return StateFailed
}

func outcomeFromBody(body models.JSON, requestID string, httpStatus int) Outcome {
	tx := transactions(body)
	return Outcome{
		State:         MapOutcome(body),
		Code:          strings.TrimSpace(stringField(body, "code")),
		Message:       stringField(body, "response_description"),
		ProviderTxnID: stringField(tx, "transactionId"),
		RequestID:     requestID,
		HTTPStatus:    httpStatus,
		Raw:           body,
	}
}

func transportOutcome(requestID string, err error) Outcome {
	return Outcome{
		State:     StateFailed,
		Code:      codeTransport,
		Message:   "network error",
		RequestID: requestID,
		Transport: true,
		Raw: models.JSON{
			"code":                 codeTransport,
			"response_description": "Network error",
			"error":                err.Error(),
			"http_status":          0,
		},
	}
}

func transactions(body models.JSON) models.JSON {
	content, ok := body["content"].(map[string]interface{})
	if !ok {
		return nil
	}
	tx, ok := content["transactions"].(map[string]interface{})
	if !ok {
		return nil
	}
	return models.JSON(tx)
}

func stringField(m models.JSON, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
