// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package auth

import "io"

// NewSaltedHasherWithReader exposes a SaltedHasher with a fixed entropy source.
func NewSaltedHasherWithReader(r io.Reader) *SaltedHasher {
	return &SaltedHasher{random: r}
}
