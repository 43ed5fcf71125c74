// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalid indicates input rejected by validation.
	ErrInvalid = errors.New("invalid input")
)

// Failure classes. They are joined to the underlying cause, so both
// errors.Is(err, ErrRemote) and errors.Is(err, cause) hold.
var (
	// ErrRemote marks a failure talking to the remote document store.
	ErrRemote = errors.New("remote store")

	// ErrLocal marks a failure of the on-device mirror.
	ErrLocal = errors.New("local store")
)

// Remote tags err as a remote store failure. Nil stays nil.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrRemote, op, err)
}

// Local tags err as a local mirror failure. Nil stays nil.
func Local(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrLocal, op, err)
}
