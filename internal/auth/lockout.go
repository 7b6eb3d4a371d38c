// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Decision is the outcome of a lockout check.
type Decision int

// Lockout decisions.
const (
	// Proceed allows the attempt with the current counters.
	Proceed Decision = iota

	// ProceedAfterReset allows the attempt once the caller has persisted a
	// counter reset; the cool-down has elapsed.
	ProceedAfterReset

	// Locked rejects the attempt without checking the password.
	Locked
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case ProceedAfterReset:
		return "proceed_after_reset"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// LockoutPolicy decides from an account's failure counters whether a sign-in
// attempt is currently blocked.
type LockoutPolicy struct {
	// RetryLimit is the number of consecutive failures that triggers a lockout.
	RetryLimit int

	// RetryInterval is the cool-down measured from the last failure.
	RetryInterval time.Duration
}

// NewLockoutPolicy creates a validated LockoutPolicy.
func NewLockoutPolicy(retryLimit int, retryInterval time.Duration) (LockoutPolicy, error) {
	if retryLimit <= 0 {
		return LockoutPolicy{}, oops.Code("LOCKOUT_INVALID_LIMIT").
			With("retry_limit", retryLimit).
			Errorf("retry limit must be positive")
	}
	if retryInterval < 0 {
		return LockoutPolicy{}, oops.Code("LOCKOUT_INVALID_INTERVAL").
			With("retry_interval", retryInterval.String()).
			Errorf("retry interval cannot be negative")
	}
	return LockoutPolicy{RetryLimit: retryLimit, RetryInterval: retryInterval}, nil
}

// CheckBeforeAttempt evaluates the lockout state of acct at now.
// An account over the limit with no recorded failure time is treated as
// having served its cool-down.
func (p LockoutPolicy) CheckBeforeAttempt(acct *Account, now time.Time) Decision {
	if acct.LoginErrorCount < p.RetryLimit {
		return Proceed
	}
	if acct.LastErrorAt != nil && now.Unix()-*acct.LastErrorAt <= p.intervalSeconds() {
		return Locked
	}
	return ProceedAfterReset
}

// RetryAfter returns the remaining cool-down for a locked account, or zero.
// A locked account always reports at least one second.
func (p LockoutPolicy) RetryAfter(acct *Account, now time.Time) time.Duration {
	if p.CheckBeforeAttempt(acct, now) != Locked {
		return 0
	}
	remaining := *acct.LastErrorAt + p.intervalSeconds() - now.Unix()
	if remaining < 1 {
		remaining = 1
	}
	return time.Duration(remaining) * time.Second
}

// OnFailure returns the update recording a failed password check at now.
func (p LockoutPolicy) OnFailure(acct *Account, now time.Time) AccountUpdate {
	count := acct.LoginErrorCount + 1
	at := now.Unix()
	return AccountUpdate{LoginErrorCount: &count, LastErrorAt: &at}
}

// OnSuccess returns the update recording a successful sign-in at now.
func (p LockoutPolicy) OnSuccess(now time.Time) AccountUpdate {
	count := 0
	at := now.Unix()
	return AccountUpdate{LoginErrorCount: &count, LastLoginAt: &at}
}

// Reset returns the update clearing the failure counter.
func (p LockoutPolicy) Reset() AccountUpdate {
	count := 0
	return AccountUpdate{LoginErrorCount: &count}
}

func (p LockoutPolicy) intervalSeconds() int64 {
	return int64(p.RetryInterval / time.Second)
}
