package notification

import "errors"

var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrInvalidChannel   = errors.New("unsupported channel")
	ErrUnknownTemplate  = errors.New("unknown template")
	ErrRender           = errors.New("template render failed")
	ErrDelivery         = errors.New("provider rejected message")
	ErrInvalidSignature = errors.New("invalid callback signature")
)
