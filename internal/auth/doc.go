// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

// Package auth implements phone + password authentication for Phonegate.
//
// # Components
//
// The package is made of small pieces composed by Service:
//   - SaltedHasher - salts and digests passwords, verifies candidates
//   - TokenService - signs and verifies expiring HS256 tokens
//   - LockoutPolicy - decides whether a sign-in attempt is blocked
//   - AccountStore - persistence contract for Account records
//
// # Lockout
//
// Lockout state lives entirely in Account.LoginErrorCount and
// Account.LastErrorAt. The policy is evaluated before the password is
// compared, so a locked account is rejected without computing a hash.
// Counters are reset lazily on the first attempt after the cool-down
// interval has elapsed.
//
// # Errors
//
// Errors returned by Service are oops errors wrapping one of the sentinel
// values in errors.go; classify them with errors.Is.
package auth
