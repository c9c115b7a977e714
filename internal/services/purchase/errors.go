package purchase

import "errors"

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrAmountOutOfRange = errors.New("amount outside allowed range")
	ErrUnknownNetwork   = errors.New("unknown network")
	ErrInvalidPhone     = errors.New("invalid phone number")
	ErrPlanRequired     = errors.New("plan is required for data purchases")
	ErrMissingReference = errors.New("client reference is required")

	// ErrInFlight means an identical request is being processed right now;
	// the client should wait and check status instead of resubmitting.
	ErrInFlight = errors.New("request already in flight")
	// ErrLineBusy means another purchase is currently targeting the same
	// (user, network, phone) line.
	ErrLineBusy = errors.New("a purchase for this line is already in progress")
)
