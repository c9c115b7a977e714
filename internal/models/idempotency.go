package models

import "time"

// IdempotencyKey deduplicates client-submitted operations per (user, key).
// The unique index is the correctness backstop: concurrent identical requests
// race on the insert and the loser resolves the existing row.
type IdempotencyKey struct {
	ID           uint   `gorm:"primarykey"`
	UserID       uint   `gorm:"not null;uniqueIndex:idx_idem_user_key,priority:1"`
	Key          string `gorm:"size:100;not null;uniqueIndex:idx_idem_user_key,priority:2"`
	Success      bool   `gorm:"not null;default:false"`
	ResponseJSON JSON   `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
