package pwd

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Scheme 01: Argon2id with the RFC 9106 low-memory parameterization.
const (
	argonTime    = 2
	argonMemory  = 19456 // KiB
	argonThreads = 1
	argonKeyLen  = 32
)

type scheme01 struct{}

func (scheme01) Hash(pwd, salt string) (string, error) {
	if salt == "" {
		return "", fmt.Errorf("salt must not be empty")
	}

	key := argon2.IDKey([]byte(pwd), []byte(salt), argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString([]byte(salt)),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (scheme01) Validate(payload, pwd, salt string) (bool, error) {
	var version int
	var memory, time uint32
	var threads uint8
	var saltB64, keyB64 string

	n, err := fmt.Sscanf(payload, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		&version, &memory, &time, &threads, &saltB64)
	if err != nil || n != 5 {
		return false, fmt.Errorf("malformed argon2id payload")
	}

	// Sscanf's %s is greedy, the salt capture still carries "$<key>".
	idx := -1
	for i, c := range saltB64 {
		if c == '$' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, fmt.Errorf("malformed argon2id payload")
	}
	saltB64, keyB64 = saltB64[:idx], saltB64[idx+1:]

	storedSalt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, fmt.Errorf("malformed argon2id salt: %w", err)
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(keyB64)
	if err != nil {
		return false, fmt.Errorf("malformed argon2id key: %w", err)
	}

	// Recompute with the stored parameters so old cost settings keep
	// validating after the defaults move.
	key := argon2.IDKey([]byte(pwd), storedSalt, time, memory, threads, uint32(len(storedKey)))

	return subtle.ConstantTimeCompare(key, storedKey) == 1, nil
}
