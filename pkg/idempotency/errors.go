package idempotency

import "errors"

var (
	// ErrKeyRequired indicates that an idempotency key was not provided
	ErrKeyRequired = errors.New("idempotency key is required for this operation")

	// ErrKeyTooLong indicates that the key exceeds the maximum length
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 255 characters")

	// ErrConcurrentRequest indicates that another request with the same key is in flight
	ErrConcurrentRequest = errors.New("a request with this idempotency key is currently being processed")

	// ErrNotFound indicates that an idempotency key was not found
	ErrNotFound = errors.New("idempotency key not found")
)

// MaxKeyLength bounds stored keys
const MaxKeyLength = 255

// ValidateKey checks that a key can be stored
func ValidateKey(key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}
