package automation

import "errors"

// ErrTickPanicked is logged when a collaborator panics inside a tick.
var ErrTickPanicked = errors.New("automation: tick panicked")
