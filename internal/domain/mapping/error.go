package mapping

import "errors"

var (
	ErrNotFound     = errors.New("mapping not found")
	ErrInvalidInput = errors.New("invalid input")
)
