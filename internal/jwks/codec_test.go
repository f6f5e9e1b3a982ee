package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func testClaims(now time.Time) Claims {
	return Claims{
		Issuer:    "https://auth.example.com",
		Audience:  "client-1",
		Subject:   "user-1",
		JTI:       "jti-1",
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
		ExpiresAt: now.Add(DefaultAccessTokenTTL).Unix(),
	}
}

func TestCodecRoundTrip(t *testing.T) {
	key := testKey(t)
	codec := NewCodec()
	claims := testClaims(time.Now())

	token, err := codec.Encode(claims, jwt.SigningMethodRS256, key, "kid-1")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := codec.Decode(token, &key.PublicKey, Rules{
		Audience: "client-1",
		Issuer:   "https://auth.example.com",
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if *got != claims {
		t.Errorf("Decode() = %+v, want %+v", *got, claims)
	}
}

func TestCodecDecodeFailures(t *testing.T) {
	key := testKey(t)
	otherKey := testKey(t)
	now := time.Now()
	codec := NewCodec()

	sign := func(claims Claims, signer *rsa.PrivateKey) string {
		token, err := codec.Encode(claims, jwt.SigningMethodRS256, signer, "kid-1")
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		return token
	}

	expired := testClaims(now)
	expired.IssuedAt = now.Add(-time.Hour).Unix()
	expired.NotBefore = expired.IssuedAt
	expired.ExpiresAt = now.Add(-30 * time.Minute).Unix()

	future := testClaims(now)
	future.NotBefore = now.Add(time.Hour).Unix()

	missingSub := testClaims(now)
	missingSub.Subject = ""

	tests := []struct {
		name  string
		token string
		rules Rules
	}{
		{name: "wrong signing key", token: sign(testClaims(now), otherKey), rules: Rules{}},
		{name: "expired", token: sign(expired, key), rules: Rules{}},
		{name: "not yet valid", token: sign(future, key), rules: Rules{}},
		{name: "missing subject", token: sign(missingSub, key), rules: Rules{}},
		{name: "audience mismatch", token: sign(testClaims(now), key), rules: Rules{Audience: "other-client"}},
		{name: "issuer mismatch", token: sign(testClaims(now), key), rules: Rules{Issuer: "https://evil.example.com"}},
		{name: "garbage token", token: "not.a.token", rules: Rules{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.token, &key.PublicKey, tt.rules)
			if !errors.Is(err, ErrVerification) {
				t.Fatalf("Decode() error = %v, want ErrVerification", err)
			}

			// All failures present the same message to callers.
			if err.Error() != "token verification failed" {
				t.Errorf("error message = %q leaks the failed check", err.Error())
			}

			var verr *VerificationError
			if !errors.As(err, &verr) || verr.Cause() == nil {
				t.Errorf("internal cause missing for logging")
			}
		})
	}
}

func TestCodecNotBeforeLeeway(t *testing.T) {
	key := testKey(t)
	now := time.Now()
	codec := NewCodec()

	// nbf 30s in the future stays inside the 60s drift allowance.
	claims := testClaims(now)
	claims.NotBefore = now.Add(30 * time.Second).Unix()

	token, err := codec.Encode(claims, jwt.SigningMethodRS256, key, "kid-1")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if _, err := codec.Decode(token, &key.PublicKey, Rules{}); err != nil {
		t.Errorf("Decode() with nbf inside leeway error = %v", err)
	}
}

func TestCodecFixedClock(t *testing.T) {
	key := testKey(t)
	issueTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	claims := testClaims(issueTime)

	encoder := NewCodec()
	token, err := encoder.Encode(claims, jwt.SigningMethodRS256, key, "kid-1")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Valid one minute after issuance.
	codec := NewCodecWithClock(func() time.Time { return issueTime.Add(time.Minute) })
	if _, err := codec.Decode(token, &key.PublicKey, Rules{}); err != nil {
		t.Errorf("Decode() just after issuance error = %v", err)
	}

	// Expired one hour after issuance.
	codec = NewCodecWithClock(func() time.Time { return issueTime.Add(time.Hour) })
	if _, err := codec.Decode(token, &key.PublicKey, Rules{}); !errors.Is(err, ErrVerification) {
		t.Errorf("Decode() after expiry error = %v, want ErrVerification", err)
	}
}
