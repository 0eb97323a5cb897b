package command

import "errors"

var (
	// ErrMalformed wraps every payload that cannot be decoded or validated.
	ErrMalformed = errors.New("command: malformed payload")

	// ErrInboxFull is returned when the router falls behind and a message is dropped.
	ErrInboxFull = errors.New("command: inbox full")
)
