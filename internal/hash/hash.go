// Package hash provides Argon2id password and token hashing, used for both
// User.password_hash and McpToken.token_hash (§4.C, §3).
package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// OWASP-recommended defaults for Argon2id as of the 2023 cheat sheet
// revision: m=19MiB, t=2, p=1.
const (
	memoryKiB  = 19 * 1024
	iterations = 2
	parallel   = 1
	saltLen    = 16
	keyLen     = 32
)

var ErrMalformedHash = errors.New("hash: malformed encoded hash")

// Hash derives an Argon2id hash of candidate with a fresh random salt,
// encoded as "$argon2id$v=19$m=...,t=...,p=...$salt$key".
func Hash(candidate string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("hash: read salt: %w", err)
	}
	key := argon2.IDKey([]byte(candidate), salt, iterations, memoryKiB, parallel, keyLen)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKiB, iterations, parallel,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify is timing-safe: it always derives the candidate's key before
// comparing, regardless of whether earlier fields mismatch.
func Verify(encoded, candidate string) (bool, error) {
	var version, m, t, p int
	var saltB64, keyB64 string
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, ErrMalformedHash
	}
	saltB64, keyB64 = parts[4], parts[5]

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(keyB64)
	if err != nil {
		return false, ErrMalformedHash
	}

	got := argon2.IDKey([]byte(candidate), salt, uint32(t), uint32(m), uint8(p), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
