package connect

import "errors"

var (
	ErrValidation          = errors.New("validation error")
	ErrBarberNotFound      = errors.New("barber not found")
	ErrForbidden           = errors.New("caller does not own barber profile")
	ErrAccountMissing      = errors.New("stripe account missing")
	ErrVerificationPending = errors.New("stripe verification pending")
	ErrPaymentsDisabled    = errors.New("stripe card payments disabled")
	ErrUpstream            = errors.New("stripe request failed")
)
