package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase kinds.
const (
	PurchaseKindAirtime = "airtime"
	PurchaseKindData    = "data"
)

// Purchase statuses. A purchase transitions
// initiated -> pending -> successful | failed, driven only by provider
// responses (initial call, requery or webhook). Successful and failed are
// terminal; a successful purchase is never mutated again.
const (
	PurchaseStatusInitiated  = "initiated"
	PurchaseStatusPending    = "pending"
	PurchaseStatusSuccessful = "successful"
	PurchaseStatusFailed     = "failed"
)

// Supported mobile networks.
const (
	NetworkMTN     = "mtn"
	NetworkGlo     = "glo"
	NetworkAirtel  = "airtel"
	Network9Mobile = "9mobile"
)

// KnownNetworks maps network name to validity.
var KnownNetworks = map[string]bool{
	NetworkMTN:     true,
	NetworkGlo:     true,
	NetworkAirtel:  true,
	Network9Mobile: true,
}

// PurchaseRequest is one attempt to spend wallet funds on a provider-fulfilled
// good (airtime or data). ClientReference is globally unique and doubles as
// the idempotency key for client retries and the provider-facing request id.
type PurchaseRequest struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	Kind            string          `gorm:"size:10;not null" json:"kind"`
	Network         string          `gorm:"size:10;not null;index:idx_purchase_network_time,priority:1" json:"network"`
	Phone           string          `gorm:"size:15;not null" json:"phone"`
	Plan            string          `gorm:"size:50" json:"plan,omitempty"`
	Amount          decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Status          string          `gorm:"size:20;not null;default:'pending';index:idx_purchase_status_time,priority:1" json:"status"`
	ClientReference string          `gorm:"size:100;not null;uniqueIndex" json:"client_reference"`

	// Provider metadata for reconciliation and forensics.
	ProviderRequestID  string `gorm:"size:100;index" json:"provider_request_id,omitempty"`
	ProviderReference  string `gorm:"size:100" json:"provider_reference,omitempty"`
	ProviderStatusText string `gorm:"size:64" json:"provider_status,omitempty"`
	RawProviderBody    JSON   `gorm:"type:jsonb" json:"-"`

	CreatedAt time.Time `gorm:"index:idx_purchase_status_time,priority:2;index:idx_purchase_network_time,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the purchase still awaits a terminal outcome.
func (p *PurchaseRequest) Open() bool {
	return p.Status == PurchaseStatusInitiated || p.Status == PurchaseStatusPending
}

// Terminal reports whether the purchase reached a final state.
func (p *PurchaseRequest) Terminal() bool {
	return p.Status == PurchaseStatusSuccessful || p.Status == PurchaseStatusFailed
}
