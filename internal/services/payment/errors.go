package payment

import "errors"

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrEmailRequired = errors.New("email is required")
	// ErrInvalidSignature means the webhook payload failed signature
	// verification and was not processed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrGatewayFailure   = errors.New("payment gateway request failed")
)
