package detector

import "errors"

var ErrInvalidInput = errors.New("invalid input")
