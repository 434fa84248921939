// Package policy holds the pure lockout and password-aging decision
// functions. No I/O, no clock reads; callers supply every input so the
// functions stay trivially testable.
package policy

import "time"

// ShouldLock reports whether an attempt counter has exhausted its budget.
// The counter value is the already-updated count, so equality locks.
func ShouldLock(attempts, max int) bool {
	return attempts >= max
}

// AgeDays returns the password age in fractional days at the given instant.
// A zero lastChange is treated as infinitely old.
func AgeDays(lastChange, now time.Time) float64 {
	if lastChange.IsZero() {
		return float64(now.Unix()) / 86400
	}
	return now.Sub(lastChange).Hours() / 24
}

// Expired reports whether a password set at lastChange is strictly older
// than maxAgeDays at the given instant.
func Expired(lastChange, now time.Time, maxAgeDays int) bool {
	return AgeDays(lastChange, now) > float64(maxAgeDays)
}
