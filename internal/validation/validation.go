// Package validation holds the shared request validator.
package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New()
	msisdnRe = regexp.MustCompile(`^\+?\d{7,15}$`)
)

func init() {
	// msisdn: 7-15 digits with an optional leading plus.
	_ = validate.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return msisdnRe.MatchString(fl.Field().String())
	})
}

// Struct validates a tagged request struct.
func Struct(s interface{}) error {
	return validate.Struct(s)
}
