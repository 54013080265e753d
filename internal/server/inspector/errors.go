package inspector

import "errors"

var (
	ErrServerAlreadyRunning = errors.New("inspector is already running")
	ErrInvalidConfig        = errors.New("invalid inspector configuration")
)
