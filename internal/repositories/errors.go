package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrIntentNotFound   = errors.New("payment intent not found")
	ErrDuplicateKey     = errors.New("duplicate key")
)

// IsDuplicate reports whether err is a uniqueness-constraint violation.
// Both the postgres and the sqlite drivers translate constraint errors to
// gorm.ErrDuplicatedKey when TranslateError is enabled.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicateKey)
}
