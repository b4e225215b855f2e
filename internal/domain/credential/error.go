package credential

import "errors"

var (
	ErrNotFound        = errors.New("credential not found")
	ErrAuthRevoked     = errors.New("refresh token rejected by provider")
	ErrUnknownProvider = errors.New("unknown provider")
)
