package claim

import "errors"

var (
	ErrValidation      = errors.New("validation error")
	ErrTokenRequired   = errors.New("token is required")
	ErrTokenNotFound   = errors.New("token not found")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenUsed       = errors.New("token already used")
	ErrAlreadyClaimed  = errors.New("profile already claimed")
	ErrProfileNotFound = errors.New("profile not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrForbidden       = errors.New("forbidden")
)
