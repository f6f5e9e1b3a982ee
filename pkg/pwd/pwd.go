// Package pwd hashes and validates passwords.
//
// Encoded hashes are self-describing: "#<scheme>#<payload>". The schemes are:
//   - 01: Argon2id (DEFAULT).
//
// Hashing is memory-hard and takes hundreds of milliseconds, so the work is
// pushed onto a bounded pool of blocking workers instead of running directly
// on a request goroutine.
package pwd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Hasher runs scheme hashing on a bounded worker pool.
type Hasher struct {
	sem *semaphore.Weighted
}

// NewHasher returns a Hasher allowing at most GOMAXPROCS concurrent
// hash computations.
func NewHasher() *Hasher {
	return &Hasher{
		sem: semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
}

// Hash hashes a password with the default scheme and returns the encoded
// "#<scheme>#<payload>" string.
func (h *Hasher) Hash(ctx context.Context, pwd, salt string) (string, error) {
	scheme, err := GetScheme(DefaultScheme)
	if err != nil {
		return "", err
	}

	var encoded string
	err = h.run(ctx, func() error {
		payload, err := scheme.Hash(pwd, salt)
		if err != nil {
			return err
		}
		encoded = "#" + DefaultScheme + "#" + payload
		return nil
	})
	return encoded, err
}

// Validate checks a password against an encoded hash. The scheme id inside
// the hash decides which scheme validates it.
func (h *Hasher) Validate(ctx context.Context, encodedHash, pwd, salt string) (bool, error) {
	parts, err := ParseHashParts(encodedHash)
	if err != nil {
		return false, err
	}

	scheme, err := GetScheme(parts.Scheme)
	if err != nil {
		return false, err
	}

	var ok bool
	err = h.run(ctx, func() error {
		var err error
		ok, err = scheme.Validate(parts.Hash, pwd, salt)
		return err
	})
	return ok, err
}

// run executes fn on its own goroutine once a pool slot frees up. The
// caller unblocks on ctx cancellation, the computation is left to finish
// and release its slot.
func (h *Hasher) run(ctx context.Context, fn func() error) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer h.sem.Release(1)
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GenerateSaltHex returns 16 random bytes hex-encoded, one salt per user.
func GenerateSaltHex() string {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		panic(err)
	}
	return hex.EncodeToString(salt)
}
