package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentIntent statuses.
const (
	PaymentStatusInitialized = "initialized"
	PaymentStatusPending     = "pending"
	PaymentStatusSuccess     = "success"
	PaymentStatusFailed      = "failed"
	PaymentStatusAbandoned   = "abandoned"
)

// PaymentIntent is one wallet-funding attempt through the payment gateway.
// Reference is unique and is the idempotency key for the credit: the wallet
// is credited at most once per reference no matter how many times verify or
// the webhook fire.
type PaymentIntent struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency  string          `gorm:"size:8;not null;default:'NGN'" json:"currency"`
	Reference string          `gorm:"size:64;not null;uniqueIndex" json:"reference"`
	Status    string          `gorm:"size:16;not null;default:'initialized'" json:"status"`

	AuthorizationURL string     `gorm:"size:255" json:"authorization_url,omitempty"`
	AccessCode       string     `gorm:"size:64" json:"-"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`

	// Raw gateway payloads for audit.
	InitResponse   JSON     `gorm:"type:jsonb" json:"-"`
	VerifyResponse JSON     `gorm:"type:jsonb" json:"-"`
	WebhookEvents  JSONList `gorm:"type:jsonb" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
