package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-user store of funds. Balance is the total held amount,
// Locked is the portion reserved for in-flight purchases. Both are naira
// with 2dp and must never go negative; Locked must never exceed Balance.
type Wallet struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"balance"`
	Locked    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"locked"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Available is the spendable amount: balance minus locked, floored at zero.
func (w *Wallet) Available() decimal.Decimal {
	available := Quantize(w.Balance).Sub(Quantize(w.Locked))
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// CanSpend reports whether the wallet has enough available funds.
func (w *Wallet) CanSpend(amount decimal.Decimal) bool {
	return w.Available().GreaterThanOrEqual(Quantize(amount))
}

// Ledger entry kinds. Amount is always positive; the direction of the
// movement is captured by the kind.
const (
	EntryCredit = "credit"
	EntryDebit  = "debit"
	EntryLock   = "lock"
	EntryUnlock = "unlock"
	EntryAdjust = "adjust"
)

// LedgerEntry is an immutable audit record of a single wallet mutation.
// Entries are append-only; one entry is written per ledger operation.
type LedgerEntry struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	WalletID  uint            `gorm:"not null;index:idx_ledger_wallet_time,priority:1" json:"wallet_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Kind      string          `gorm:"size:10;not null" json:"kind"`
	Reference string          `gorm:"size:100;index" json:"reference"`
	CreatedAt time.Time       `gorm:"index:idx_ledger_wallet_time,priority:2" json:"created_at"`
}
