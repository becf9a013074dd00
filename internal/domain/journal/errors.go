package journal

import "errors"

// ErrInvalidInput indicates a missing entry or device id.
var ErrInvalidInput = errors.New("invalid journal input")
