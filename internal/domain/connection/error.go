package connection

import "errors"

var (
	ErrNotFound     = errors.New("connection not found")
	ErrNotConnected = errors.New("integration not connected")
	ErrInvalidInput = errors.New("invalid input")
)
