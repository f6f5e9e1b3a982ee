package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func TestEncodeCodeVerifier(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	wantS256 := base64.RawURLEncoding.EncodeToString(sum[:])

	tests := []struct {
		name     string
		method   string
		verifier string
		want     string
		wantErr  bool
	}{
		{name: "plain", method: "plain", verifier: verifier, want: verifier},
		{name: "empty method defaults to plain", method: "", verifier: verifier, want: verifier},
		{name: "S256", method: "S256", verifier: verifier, want: wantS256},
		{name: "unknown method", method: "S512", verifier: verifier, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCodeVerifier(tt.method, tt.verifier)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("EncodeCodeVerifier() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeCodeVerifier() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeCodeVerifier() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGenerateCodeVerifier(t *testing.T) {
	v1, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("GenerateCodeVerifier() error = %v", err)
	}
	v2, _ := GenerateCodeVerifier()
	if v1 == v2 {
		t.Errorf("verifiers should be unique")
	}
	if len(v1) != 43 {
		t.Errorf("verifier length = %d, want 43 (32 bytes base64url)", len(v1))
	}
}
