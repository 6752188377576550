package payment

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrServiceNotFound = errors.New("service not found for barber")
	ErrUpstream        = errors.New("stripe request failed")
	ErrBookingPersist  = errors.New("booking could not be saved")
)

// ValidationError carries per-field problems and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation error: " + strings.Join(keys, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Fields: map[string]string{field: reason}}
}
