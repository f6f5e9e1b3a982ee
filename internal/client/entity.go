package client

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// OAuthClient is a registered application allowed to request tokens.
// Every client uses PKCE in the authorization flow; confidential clients
// additionally authenticate with their secret at the token endpoint.
type OAuthClient struct {
	ClientID     string    `bson:"client_id" json:"client_id"`
	Name         string    `bson:"name" json:"name"`
	SecretHash   string    `bson:"secret_hash,omitempty" json:"-"`
	RedirectURIs []string  `bson:"redirect_uris" json:"redirect_uris"`
	Scopes       []string  `bson:"scopes" json:"scopes"`
	Confidential bool      `bson:"confidential" json:"confidential"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// ValidateRedirectURI checks the requested URI against the registered
// list. Exact string match only; no prefix or wildcard matching.
func (c *OAuthClient) ValidateRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// ValidateSecret compares a presented secret against the stored digest in
// constant time.
func (c *OAuthClient) ValidateSecret(secret string) bool {
	if c.SecretHash == "" || secret == "" {
		return false
	}

	presented := sha256.Sum256([]byte(secret))
	stored, err := hex.DecodeString(c.SecretHash)
	if err != nil || len(stored) != sha256.Size {
		return false
	}
	return subtle.ConstantTimeCompare(presented[:], stored) == 1
}

// GenClientSecret returns a fresh secret and its storable digest. The
// plain secret is shown once at registration and never persisted.
func GenClientSecret() (secret string, secretHash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate client secret: %w", err)
	}

	secret = base64.RawURLEncoding.EncodeToString(buf)
	digest := sha256.Sum256([]byte(secret))
	return secret, hex.EncodeToString(digest[:]), nil
}
