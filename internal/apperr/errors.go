// Package apperr defines the application error taxonomy.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrMalformedRecord means a value handed to the codec for decryption
	// does not match the iv:tag:ciphertext grammar.
	ErrMalformedRecord = errors.New("malformed encrypted record")

	// ErrAuthenticationFailed means the GCM tag did not verify: the record
	// was tampered with, corrupted, or encrypted under a different key.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrStaleResponse marks a gateway response that arrived after a newer
	// save was issued for the same chapter. Discarded, never user-visible.
	ErrStaleResponse = errors.New("stale response")
)

// ConfigError is a fatal configuration problem detected at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// TransportError wraps a failed persistence gateway call. The session layer
// recovers from it locally (rollback + failed save flag); it never bubbles
// past the API boundary as anything but a status.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
