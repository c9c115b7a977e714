package ledger

import "errors"

var (
	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrInsufficientFunds means total balance cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientAvailable means available (balance - locked) cannot
	// cover a reservation.
	ErrInsufficientAvailable = errors.New("insufficient available funds")
	// ErrUnlockExceedsLocked rejects releasing more than is reserved.
	ErrUnlockExceedsLocked = errors.New("unlock exceeds locked funds")
	// ErrInvariantViolation is fatal: a mutation would leave balance or
	// locked negative. It indicates a logic bug and is never corrected
	// silently.
	ErrInvariantViolation = errors.New("wallet invariant violation")
)
