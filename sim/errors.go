package sim

import "errors"

// ErrNoBuffers is returned when a packet does not fit in the remaining budget
// of its level for the current epoch (the ENOBUFS of the Qjump rate limiter).
// Callers retry after one epoch.
var ErrNoBuffers = errors.New("no buffer space in priority level")

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")
