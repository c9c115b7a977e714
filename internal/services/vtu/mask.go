package vtu

import (
	"strings"

	"quicksurf/internal/models"
)

// Fields whose values are redacted or masked before a payload is persisted
// to the audit log.
var (
	secretFields = map[string]bool{
		"api-key":    true,
		"secret-key": true,
		"public-key": true,
		"api_key":    true,
		"secret_key": true,
		"public_key": true,
	}
	msisdnFields = map[string]bool{
		"phone":       true,
		"billersCode": true,
		"billerscode": true,
	}
)

// MaskPayload returns a copy of payload safe for persistence: credentials are
// redacted, phone numbers keep only the last four digits and emails keep the
// first two characters of the local part. Nested maps are masked recursively.
func MaskPayload(payload models.JSON) models.JSON {
	if payload == nil {
		return nil
	}
	masked := make(models.JSON, len(payload))
	for key, value := range payload {
		switch {
		case secretFields[strings.ToLower(key)]:
			masked[key] = "***"
		case msisdnFields[key] || msisdnFields[strings.ToLower(key)]:
			masked[key] = MaskMSISDN(asString(value))
		case strings.ToLower(key) == "email":
			masked[key] = maskEmail(asString(value))
		default:
			if nested, ok := value.(map[string]interface{}); ok {
				masked[key] = map[string]interface{}(MaskPayload(models.JSON(nested)))
			} else {
				masked[key] = value
			}
		}
	}
	return masked
}

// MaskMSISDN keeps the last four digits of a phone number.
func MaskMSISDN(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 2 {
		return email
	}
	return email[:2] + strings.Repeat("*", at-2) + email[at:]
}

func asString(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return stringField(models.JSON{"v": v}, "v")
	}
	return s
}
