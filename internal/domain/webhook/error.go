package webhook

import "errors"

var (
	ErrUnknownToken = errors.New("unknown routing token")
	ErrBadSignature = errors.New("webhook signature mismatch")
	ErrInvalidInput = errors.New("invalid input")
)
