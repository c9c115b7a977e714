package models

import "time"

// Provider log service types.
const (
	ProviderLogAirtime  = "airtime"
	ProviderLogData     = "data"
	ProviderLogVTU      = "vtu"
	ProviderLogPayments = "payments"
)

// ProviderLog is a write-only audit record of every outbound provider call
// and inbound webhook. Rows are never mutated; the purchase flow must never
// fail because a log write failed.
type ProviderLog struct {
	ID          uint   `gorm:"primarykey"`
	UserID      *uint  `gorm:"index"`
	ServiceType string `gorm:"size:10;not null;index:idx_plog_service_time,priority:1"`

	ClientReference string `gorm:"size:100;index"`
	RequestID       string `gorm:"size:100;index"`
	Endpoint        string `gorm:"size:128"`
	Provider        string `gorm:"size:32"`

	RequestPayload  JSON   `gorm:"type:jsonb"`
	ResponsePayload JSON   `gorm:"type:jsonb"`
	StatusCode      string `gorm:"size:10"`
	ResponseTimeMS  int
	ErrorMessage    string `gorm:"size:255"`

	CreatedAt time.Time `gorm:"index:idx_plog_service_time,priority:2"`
}
