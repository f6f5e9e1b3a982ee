package client

import "testing"

func TestValidateRedirectURI(t *testing.T) {
	c := OAuthClient{
		RedirectURIs: []string{
			"https://app.example.com/callback",
			"http://localhost:3000/callback",
		},
	}

	tests := []struct {
		name string
		uri  string
		want bool
	}{
		{name: "registered", uri: "https://app.example.com/callback", want: true},
		{name: "second registered", uri: "http://localhost:3000/callback", want: true},
		{name: "unregistered", uri: "https://evil.example.com/callback", want: false},
		{name: "prefix match rejected", uri: "https://app.example.com/callback/extra", want: false},
		{name: "trailing slash rejected", uri: "https://app.example.com/callback/", want: false},
		{name: "scheme downgrade rejected", uri: "http://app.example.com/callback", want: false},
		{name: "empty", uri: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ValidateRedirectURI(tt.uri); got != tt.want {
				t.Errorf("ValidateRedirectURI(%q) = %v, want %v", tt.uri, got, tt.want)
			}
		})
	}
}

func TestClientSecret(t *testing.T) {
	secret, secretHash, err := GenClientSecret()
	if err != nil {
		t.Fatalf("GenClientSecret() error = %v", err)
	}
	if secret == "" || secretHash == "" {
		t.Fatal("GenClientSecret() returned empty values")
	}
	if secret == secretHash {
		t.Error("digest must differ from the plain secret")
	}

	c := OAuthClient{SecretHash: secretHash}
	if !c.ValidateSecret(secret) {
		t.Error("ValidateSecret() rejected the matching secret")
	}
	if c.ValidateSecret("wrong-secret") {
		t.Error("ValidateSecret() accepted a wrong secret")
	}
	if c.ValidateSecret("") {
		t.Error("ValidateSecret() accepted an empty secret")
	}

	public := OAuthClient{}
	if public.ValidateSecret(secret) {
		t.Error("ValidateSecret() accepted a secret for a public client")
	}
}
