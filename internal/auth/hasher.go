// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"strings"

	"github.com/samber/oops"
)

// SaltLength is the number of characters in a generated salt.
const SaltLength = 16

const saltAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// saltCutoff is the largest multiple of len(saltAlphabet) that fits in a byte.
// Bytes at or above it are discarded so every character is equally likely.
const saltCutoff = 256 - 256%len(saltAlphabet)

// PasswordHasher salts, digests and verifies passwords.
type PasswordHasher interface {
	// GenerateSalt returns a fresh random alphanumeric salt.
	GenerateSalt() (string, error)

	// Hash digests password concatenated with salt.
	Hash(password, salt string) string

	// Verify reports whether candidate hashes to storedHash under storedSalt.
	Verify(candidate, storedHash, storedSalt string) bool
}

// SaltedHasher implements PasswordHasher with SHA-256 over password ∥ salt,
// rendered as uppercase hex.
type SaltedHasher struct {
	random io.Reader
}

// NewSaltedHasher creates a SaltedHasher backed by crypto/rand.
func NewSaltedHasher() *SaltedHasher {
	return &SaltedHasher{random: rand.Reader}
}

// GenerateSalt returns SaltLength characters drawn uniformly from [0-9A-Za-z].
func (h *SaltedHasher) GenerateSalt() (string, error) {
	salt := make([]byte, 0, SaltLength)
	buf := make([]byte, SaltLength*2)
	for len(salt) < SaltLength {
		if _, err := io.ReadFull(h.random, buf); err != nil {
			return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
		}
		for _, b := range buf {
			if int(b) >= saltCutoff {
				continue
			}
			salt = append(salt, saltAlphabet[int(b)%len(saltAlphabet)])
			if len(salt) == SaltLength {
				break
			}
		}
	}
	return string(salt), nil
}

// Hash returns the 64-character uppercase hex SHA-256 digest of password ∥ salt.
func (h *SaltedHasher) Hash(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify compares in constant time. Stored hex is accepted in either case.
func (h *SaltedHasher) Verify(candidate, storedHash, storedSalt string) bool {
	computed := h.Hash(candidate, storedSalt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToUpper(storedHash))) == 1
}

// Compile-time interface check.
var _ PasswordHasher = (*SaltedHasher)(nil)
