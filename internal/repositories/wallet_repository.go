package repositories

import (
	"context"

	"quicksurf/internal/models"

	"gorm.io/gorm"
)

// WalletRepository is the data access layer for wallets and their ledger
// entries. Mutating callers are expected to run inside ExecuteInTransaction
// and to load the wallet with GetByUserIDForUpdate before writing.
type WalletRepository interface {
	// WithTx returns a repository bound to an open transaction.
	WithTx(tx *gorm.DB) WalletRepository
	ExecuteInTransaction(fn func(WalletRepository) error) error

	GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error)
	// GetOrCreateByUserID lazily creates the wallet on first reference.
	GetOrCreateByUserID(ctx context.Context, userID uint) (*models.Wallet, error)
	// GetByUserIDForUpdate acquires an exclusive row lock on the wallet.
	GetByUserIDForUpdate(ctx context.Context, userID uint) (*models.Wallet, error)
	Save(ctx context.Context, wallet *models.Wallet) error

	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListEntries(ctx context.Context, walletID uint, limit, offset int) ([]models.LedgerEntry, error)
}
