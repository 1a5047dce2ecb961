package messages

import "errors"

// Domain errors for message operations.
var (
	ErrNotFound = errors.New("message not found")
	ErrWrite    = errors.New("cleaned message write failed")
)
