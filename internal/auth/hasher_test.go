// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package auth_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phonegate/phonegate/internal/auth"
	"github.com/phonegate/phonegate/pkg/errutil"
)

func isAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		default:
			return false
		}
	}
	return true
}

func TestGenerateSalt(t *testing.T) {
	hasher := auth.NewSaltedHasher()

	t.Run("has fixed length and alphanumeric alphabet", func(t *testing.T) {
		for range 50 {
			salt, err := hasher.GenerateSalt()
			require.NoError(t, err)
			assert.Len(t, salt, auth.SaltLength)
			assert.True(t, isAlphanumeric(salt), "salt %q", salt)
		}
	})

	t.Run("successive salts differ", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			salt, err := hasher.GenerateSalt()
			require.NoError(t, err)
			assert.False(t, seen[salt], "duplicate salt %q", salt)
			seen[salt] = true
		}
	})

	t.Run("skips bytes above the uniform cutoff", func(t *testing.T) {
		// 0xF8 (248) is past the last full block of 62 and must be discarded.
		src := bytes.Repeat([]byte{0xF8, 0x00, 0x3D}, 32)
		salt, err := auth.NewSaltedHasherWithReader(bytes.NewReader(src)).GenerateSalt()
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("0z", auth.SaltLength/2), salt)
	})

	t.Run("entropy failure is reported", func(t *testing.T) {
		failing := iotestErrReader{err: errors.New("no entropy")}
		_, err := auth.NewSaltedHasherWithReader(failing).GenerateSalt()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_SALT_FAILED")
	})
}

type iotestErrReader struct{ err error }

func (r iotestErrReader) Read([]byte) (int, error) { return 0, r.err }

func TestHash(t *testing.T) {
	hasher := auth.NewSaltedHasher()

	t.Run("is uppercase hex sha256 of password then salt", func(t *testing.T) {
		assert.Equal(t,
			"BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD",
			hasher.Hash("ab", "c"))
		assert.Equal(t,
			"E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855",
			hasher.Hash("", ""))
	})

	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, hasher.Hash("hunter2", "SALT"), hasher.Hash("hunter2", "SALT"))
	})

	t.Run("salt changes the digest", func(t *testing.T) {
		assert.NotEqual(t, hasher.Hash("hunter2", "SALTA"), hasher.Hash("hunter2", "SALTB"))
	})

	t.Run("has 64 characters", func(t *testing.T) {
		assert.Len(t, hasher.Hash("password", "0123456789abcdef"), 64)
	})
}

func TestVerify(t *testing.T) {
	hasher := auth.NewSaltedHasher()
	salt, err := hasher.GenerateSalt()
	require.NoError(t, err)
	stored := hasher.Hash("correct horse", salt)

	tests := []struct {
		name      string
		candidate string
		hash      string
		salt      string
		want      bool
	}{
		{name: "matching password", candidate: "correct horse", hash: stored, salt: salt, want: true},
		{name: "lowercase stored hash", candidate: "correct horse", hash: strings.ToLower(stored), salt: salt, want: true},
		{name: "wrong password", candidate: "battery staple", hash: stored, salt: salt, want: false},
		{name: "wrong salt", candidate: "correct horse", hash: stored, salt: salt + "x", want: false},
		{name: "empty stored hash", candidate: "correct horse", hash: "", salt: salt, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasher.Verify(tt.candidate, tt.hash, tt.salt))
		})
	}
}
