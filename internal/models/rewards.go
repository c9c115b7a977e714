package models

import "time"

// LoyaltyEntry records points awarded for a successful purchase. The unique
// index on (user, txn_type, txn_id) makes the award idempotent even if the
// post-commit hook fires more than once.
type LoyaltyEntry struct {
	ID        uint      `gorm:"primarykey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_loyalty_once,priority:1;index:idx_loyalty_user_time,priority:1"`
	Points    uint      `gorm:"not null"`
	Reason    string    `gorm:"size:128"`
	TxnType   string    `gorm:"size:16;not null;uniqueIndex:idx_loyalty_once,priority:2"`
	TxnID     string    `gorm:"size:64;not null;uniqueIndex:idx_loyalty_once,priority:3"`
	CreatedAt time.Time `gorm:"index:idx_loyalty_user_time,priority:2"`
}

// Email log statuses.
const (
	EmailStatusQueued = "queued"
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// EmailLog records receipt emails. Delivery is best-effort and never blocks
// settlement; in mock mode emails are logged as sent without transport.
type EmailLog struct {
	ID        uint   `gorm:"primarykey"`
	To        string `gorm:"size:255;not null"`
	Subject   string `gorm:"size:255"`
	Body      string `gorm:"type:text"`
	Status    string `gorm:"size:10;not null;default:'queued'"`
	Error     string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
