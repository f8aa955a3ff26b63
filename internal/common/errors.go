package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Envelope received by the collector could not be opened or parsed.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// Upload receipt is malformed, expired or signed with another secret.
	ErrInvalidToken = errors.New("invalid token")
)
