package purchase

import (
	"regexp"
	"strings"

	"quicksurf/internal/models"

	"github.com/shopspring/decimal"
)

var msisdnRe = regexp.MustCompile(`^\+?\d{7,15}$`)

// NormalizePhone strips spaces and dashes and validates the result as an
// msisdn: 7 to 15 digits with an optional leading plus.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	if !msisdnRe.MatchString(cleaned) {
		return "", ErrInvalidPhone
	}
	return cleaned, nil
}

func (s *Service) validate(in *Input) error {
	if in.ClientReference == "" {
		return ErrMissingReference
	}

	in.Network = strings.ToLower(strings.TrimSpace(in.Network))
	if !models.KnownNetworks[in.Network] {
		return ErrUnknownNetwork
	}

	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return err
	}
	in.Phone = phone

	in.Amount = models.Quantize(in.Amount)
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if in.Amount.LessThan(s.cfg.MinAmount) || in.Amount.GreaterThan(s.cfg.MaxAmount) {
		return ErrAmountOutOfRange
	}

	if in.Kind == models.PurchaseKindData && in.Plan == "" {
		return ErrPlanRequired
	}
	return nil
}

// DefaultMinAmount and DefaultMaxAmount bound a single purchase.
var (
	DefaultMinAmount = decimal.NewFromInt(50)
	DefaultMaxAmount = decimal.NewFromInt(50000)
)
