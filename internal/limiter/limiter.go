// Package limiter throttles failed logins per (email, device).
package limiter

import (
	"context"
	"crypto/sha256"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login may be attempted now and, if not, how
	// long the caller has to wait.
	Allow(ctx context.Context, email string, deviceHash []byte) (bool, time.Duration, error)
	// Success clears the failure counter.
	Success(ctx context.Context, email string, deviceHash []byte) error
	// Failure records a failed attempt and may start a lockout.
	Failure(ctx context.Context, email string, deviceHash []byte) (bool, time.Duration, error)
}

// DeviceHash returns a stable digest of a device label so raw identifiers
// are never stored. Case and surrounding space are ignored.
func DeviceHash(device string) []byte {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(device))))
	return h[:]
}

// Nop never limits.
type Nop struct{}

func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error) { return true, 0, nil }
func (Nop) Success(context.Context, string, []byte) error                     { return nil }
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}
