package vtu

import (
	"testing"

	"quicksurf/internal/models"

	"github.com/stretchr/testify/assert"
)

func body(code, txStatus string) models.JSON {
	b := models.JSON{"code": code, "response_description": "x"}
	if txStatus != "" {
		b["content"] = map[string]interface{}{
			"transactions": map[string]interface{}{
				"status":        txStatus,
				"transactionId": "17558",
			},
		}
	}
	return b
}

func TestMapOutcome(t *testing.T) {
	tests := []struct {
		name string
		body models.JSON
		want State
	}{
		{"success code with delivered status", body("000", "delivered"), StateSuccessful},
		{"success code without delivered status", body("000", "initiated"), StateFailed},
		{"success code with no transactions block", body("000", ""), StateFailed},
		{"success code with pending status", body("000", "pending"), StatePending},
		{"processing code 099", body("099", ""), StatePending},
		{"processing code 016", body("016", ""), StatePending},
		{"pending inner status with failure code", body("040", "pending"), StatePending},
		{"decline code", body("016x", ""), StateFailed},
		{"insufficient provider balance", body("018", ""), StateFailed},
		{"empty body", models.JSON{}, StateFailed},
		{"uppercase delivered", body("000", "DELIVERED"), StateSuccessful},
		{"numeric code", models.JSON{"code": 0}, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapOutcome(tt.body))
		})
	}
}

func TestOutcomeFromBody(t *testing.T) {
	out := outcomeFromBody(body("000", "delivered"), "REQ-1", 200)
	assert.True(t, out.Delivered())
	assert.False(t, out.Declined())
	assert.Equal(t, "000", out.Code)
	assert.Equal(t, "17558", out.ProviderTxnID)
	assert.Equal(t, "REQ-1", out.RequestID)
	assert.False(t, out.Transport)
}

func TestTransportOutcomeIsNotADecline(t *testing.T) {
	out := TransportOutcome("REQ-2")
	assert.Equal(t, StateFailed, out.State)
	assert.True(t, out.Transport)
	assert.False(t, out.Declined())
	assert.False(t, out.Delivered())
	assert.Equal(t, codeTransport, out.Code)
	assert.Equal(t, codeTransport, out.Raw["code"])
}

func TestMaskPayload(t *testing.T) {
	masked := MaskPayload(models.JSON{
		"phone":       "08031234567",
		"billersCode": "08031234567",
		"email":       "ada.lovelace@example.com",
		"secret_key":  "SK_live_abc",
		"amount":      int64(500),
		"meta": map[string]interface{}{
			"phone": "08031234567",
		},
	})

	assert.Equal(t, "*******4567", masked["phone"])
	assert.Equal(t, "*******4567", masked["billersCode"])
	assert.Equal(t, "ad**********@example.com", masked["email"])
	assert.Equal(t, "***", masked["secret_key"])
	assert.Equal(t, int64(500), masked["amount"])

	nested := masked["meta"].(map[string]interface{})
	assert.Equal(t, "*******4567", nested["phone"])
}

func TestMaskMSISDNShortValues(t *testing.T) {
	assert.Equal(t, "234", MaskMSISDN("234"))
	assert.Equal(t, "", MaskMSISDN(""))
}
