// Package ledger implements the wallet ledger: atomic, race-safe mutation of
// balance and locked funds, with one append-only entry per mutation.
//
// Every mutation runs inside a database transaction that takes an exclusive
// row lock on the wallet before reading or writing it, so all mutations on
// one wallet are strictly serialized while different wallets stay
// independent. The *Tx variants are exported so orchestrating services can
// compose ledger mutations with their own row updates in a single unit of
// work.
package ledger

import (
	"context"

	"quicksurf/internal/models"
	"quicksurf/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletCache invalidates and primes the wallet read cache. May be nil.
type WalletCache interface {
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	SetWallet(ctx context.Context, wallet *models.Wallet) error
	DeleteWallet(ctx context.Context, userID uint) error
}

// Service contains the ledger domain logic over a WalletRepository.
type Service struct {
	repo    repositories.WalletRepository
	cache   WalletCache
	logger  *zap.Logger
	metrics MetricsCollector
}

// NewService wires a ledger service. Cache may be nil; metrics and logger
// default to no-ops.
func NewService(repo repositories.WalletRepository, cache WalletCache, logger *zap.Logger, metrics MetricsCollector) *Service {
	if repo == nil {
		panic("wallet repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &Service{repo: repo, cache: cache, logger: logger, metrics: metrics}
}

// GetWallet returns the user's wallet, creating it lazily on first reference.
func (s *Service) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	if s.cache != nil {
		if wallet, err := s.cache.GetWallet(ctx, userID); err == nil {
			return wallet, nil
		}
	}
	wallet, err := s.repo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetWallet(ctx, wallet)
	}
	return wallet, nil
}

// ListEntries returns the wallet's ledger history, most recent first.
func (s *Service) ListEntries(ctx context.Context, userID uint, limit, offset int) ([]models.LedgerEntry, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.repo.ListEntries(ctx, wallet.ID, limit, offset)
}

// Credit increases the wallet balance. It only fails on invalid amounts or
// storage errors.
func (s *Service) Credit(ctx context.Context, userID uint, amount decimal.Decimal, reference string) (*models.LedgerEntry, error) {
	return s.run(ctx, userID, models.EntryCredit, func(tx repositories.WalletRepository) (*models.LedgerEntry, error) {
		return s.CreditTx(ctx, tx, userID, amount, reference)
	})
}

// LockFunds reserves available funds for an in-flight purchase.
func (s *Service) LockFunds(ctx context.Context, userID uint, amount decimal.Decimal, reference string) (*models.LedgerEntry, error) {
	return s.run(ctx, userID, models.EntryLock, func(tx repositories.WalletRepository) (*models.LedgerEntry, error) {
		return s.LockFundsTx(ctx, tx, userID, amount, reference)
	})
}

// UnlockFunds releases previously reserved funds back to available.
func (s *Service) UnlockFunds(ctx context.Context, userID uint, amount decimal.Decimal, reference string) (*models.LedgerEntry, error) {
	return s.run(ctx, userID, models.EntryUnlock, func(tx repositories.WalletRepository) (*models.LedgerEntry, error) {
		return s.UnlockFundsTx(ctx, tx, userID, amount, reference)
	})
}

// Debit charges the wallet, consuming the locked portion first.
func (s *Service) Debit(ctx context.Context, userID uint, amount decimal.Decimal, reference string) (*models.LedgerEntry, error) {
	return s.run(ctx, userID, models.EntryDebit, func(tx repositories.WalletRepository) (*models.LedgerEntry, error) {
		return s.DebitTx(ctx, tx, userID, amount, reference, true)
	})
}

func (s *Service) run(ctx context.Context, userID uint, kind string, fn func(repositories.WalletRepository) (*models.LedgerEntry, error)) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
		e, err := fn(tx)
		entry = e
		return err
	})
	if err != nil {
		s.metrics.RecordError(kind, err.Error())
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.DeleteWallet(ctx, userID)
	}
	s.metrics.RecordOperation(kind, entry.Amount)
	return entry, nil
}

// CreditTx applies a credit inside an open transaction.
func (s *Service) CreditTx(ctx context.Context, tx repositories.WalletRepository, userID uint, amount decimal.Decimal, reference string) (*models.LedgerEntry, error) {
	amt := models.Quantize(amount)
	if !amt.IsPositive() {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	wallet.Balance = models.Quantize(wallet.Balance.Add(amt))
	return s.persist(ctx, tx, wallet, amt, models.EntryCredit, reference)
}

// LockFundsTx reserves funds inside an open transaction. Fails with
// ErrInsufficientAvailable when available < amount.
func (s *Service) LockFundsTx(ctx context.Context, tx repositories.WalletRepository, userID uint, amount decimal.Decimal, reference string) (*models.LedgerEntry, error) {
	amt := models.Quantize(amount)
	if !amt.IsPositive() {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.Available().LessThan(amt) {
		return nil, ErrInsufficientAvailable
	}

	wallet.Locked = models.Quantize(wallet.Locked.Add(amt))
	return s.persist(ctx, tx, wallet, amt, models.EntryLock, reference)
}

// UnlockFundsTx releases reserved funds inside an open transaction. Fails
// with ErrUnlockExceedsLocked when locked < amount.
func (s *Service) UnlockFundsTx(ctx context.Context, tx repositories.WalletRepository, userID uint, amount decimal.Decimal, reference string) (*models.LedgerEntry, error) {
	amt := models.Quantize(amount)
	if !amt.IsPositive() {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if models.Quantize(wallet.Locked).LessThan(amt) {
		return nil, ErrUnlockExceedsLocked
	}

	wallet.Locked = models.Quantize(wallet.Locked.Sub(amt))
	return s.persist(ctx, tx, wallet, amt, models.EntryUnlock, reference)
}

// DebitTx charges the wallet inside an open transaction. When preferLocked
// is set, the locked portion is consumed first (up to amount); the balance
// is always reduced by the full amount. Fails with ErrInsufficientFunds when
// balance < amount.
func (s *Service) DebitTx(ctx context.Context, tx repositories.WalletRepository, userID uint, amount decimal.Decimal, reference string, preferLocked bool) (*models.LedgerEntry, error) {
	amt := models.Quantize(amount)
	if !amt.IsPositive() {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if models.Quantize(wallet.Balance).LessThan(amt) {
		return nil, ErrInsufficientFunds
	}

	if preferLocked && wallet.Locked.IsPositive() {
		fromLocked := decimal.Min(models.Quantize(wallet.Locked), amt)
		wallet.Locked = models.Quantize(wallet.Locked.Sub(fromLocked))
	}
	wallet.Balance = models.Quantize(wallet.Balance.Sub(amt))

	// An overdraw past the checks above is a logic bug, never clamped.
	if wallet.Balance.IsNegative() || wallet.Locked.IsNegative() {
		s.logger.Error("wallet invariant violated",
			zap.Uint("user_id", userID),
			zap.String("balance", wallet.Balance.String()),
			zap.String("locked", wallet.Locked.String()),
		)
		return nil, ErrInvariantViolation
	}

	return s.persist(ctx, tx, wallet, amt, models.EntryDebit, reference)
}

func (s *Service) lockWallet(ctx context.Context, tx repositories.WalletRepository, userID uint) (*models.Wallet, error) {
	// Ensure the row exists before locking; creation is idempotent.
	if _, err := tx.GetOrCreateByUserID(ctx, userID); err != nil {
		return nil, err
	}
	return tx.GetByUserIDForUpdate(ctx, userID)
}

func (s *Service) persist(ctx context.Context, tx repositories.WalletRepository, wallet *models.Wallet, amount decimal.Decimal, kind, reference string) (*models.LedgerEntry, error) {
	if err := tx.Save(ctx, wallet); err != nil {
		return nil, err
	}
	entry := &models.LedgerEntry{
		WalletID:  wallet.ID,
		Amount:    amount,
		Kind:      kind,
		Reference: reference,
	}
	if err := tx.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Debug("ledger mutation",
		zap.Uint("wallet_id", wallet.ID),
		zap.String("kind", kind),
		zap.String("amount", amount.String()),
		zap.String("reference", reference),
	)
	return entry, nil
}
