package crawler

import "errors"

var (
	// ErrInvalidSeed is returned when the seed URL cannot be parsed or has no host.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrInvalidScheme is returned when the seed URL is not http or https.
	ErrInvalidScheme = errors.New("invalid URL scheme: only http and https are supported")

	// ErrAlreadyStarted is returned when Run is called on a Scheduler that
	// has already run.
	ErrAlreadyStarted = errors.New("scheduler has already been started")
)
