package pwd

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestHashAndValidate(t *testing.T) {
	h := NewHasher()
	ctx := context.Background()

	salt := GenerateSaltHex()
	encoded, err := h.Hash(ctx, "password", salt)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if !strings.HasPrefix(encoded, "#01#") {
		t.Errorf("encoded hash = %s, want #01# prefix", encoded)
	}

	ok, err := h.Validate(ctx, encoded, "password", salt)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !ok {
		t.Errorf("Validate() = false for correct password")
	}

	ok, err = h.Validate(ctx, encoded, "drowssap", salt)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if ok {
		t.Errorf("Validate() = true for wrong password")
	}
}

func TestHashUniquePerSalt(t *testing.T) {
	h := NewHasher()
	ctx := context.Background()

	h1, err := h.Hash(ctx, "password", "salt-one-1234567")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := h.Hash(ctx, "password", "salt-two-1234567")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h1 == h2 {
		t.Errorf("same password with different salts hashed identically")
	}
}

func TestValidateMalformedHash(t *testing.T) {
	h := NewHasher()
	ctx := context.Background()

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "no envelope", encoded: "just-a-hash"},
		{name: "missing payload", encoded: "#01#"},
		{name: "empty", encoded: ""},
		{name: "bcrypt style", encoded: "$2a$10$abcdefghijklmnopqrstuv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Validate(ctx, tt.encoded, "password", "salt")
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Fatalf("Validate(%q) error = %v, want FormatError", tt.encoded, err)
			}
			if !strings.Contains(formatErr.Error(), tt.encoded) {
				t.Errorf("FormatError does not name the malformed input: %v", formatErr)
			}
		})
	}
}

func TestValidateUnknownScheme(t *testing.T) {
	h := NewHasher()

	_, err := h.Validate(context.Background(), "#99#some-payload", "password", "salt")
	var schemeErr *UnknownSchemeError
	if !errors.As(err, &schemeErr) {
		t.Fatalf("Validate() error = %v, want UnknownSchemeError", err)
	}
	if schemeErr.Scheme != "99" {
		t.Errorf("UnknownSchemeError.Scheme = %s, want 99", schemeErr.Scheme)
	}
}

func TestParseHashParts(t *testing.T) {
	parts, err := ParseHashParts("#01#$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA")
	if err != nil {
		t.Fatalf("ParseHashParts() error = %v", err)
	}
	if parts.Scheme != "01" {
		t.Errorf("Scheme = %s, want 01", parts.Scheme)
	}
	if !strings.HasPrefix(parts.Hash, "$argon2id$") {
		t.Errorf("Hash = %s, want $argon2id$ prefix", parts.Hash)
	}
}

func TestValidateCanceledContext(t *testing.T) {
	h := NewHasher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	encoded, err := NewHasher().Hash(context.Background(), "password", "some-salt-123456")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if _, err := h.Validate(ctx, encoded, "password", "some-salt-123456"); !errors.Is(err, context.Canceled) {
		t.Errorf("Validate() with canceled ctx error = %v, want context.Canceled", err)
	}
}
