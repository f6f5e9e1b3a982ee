package entra

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is the only error authorization checks surface. The
// concrete reason stays internal so callers cannot probe which check
// rejected them.
var ErrUnauthorized = errors.New("unauthorized")

// Claims is the claim set of a v2.0 Entra access token. Scopes arrive as a
// single space-separated scp string for delegated tokens, roles as a list
// for application tokens.
type Claims struct {
	Issuer   string `json:"iss"`
	Audience string `json:"aud"`
	// A pointer keeps an absent sub distinguishable from a present empty
	// one; only the latter is rejected.
	Subject   *string  `json:"sub,omitempty"`
	ExpiresAt int64    `json:"exp"`
	NotBefore int64    `json:"nbf"`
	IssuedAt  int64    `json:"iat"`
	TenantID  string   `json:"tid"`
	Version   string   `json:"ver"`
	Scp       string   `json:"scp,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	AppID     string   `json:"appid,omitempty"`
	Name      string   `json:"name,omitempty"`
	Email     string   `json:"preferred_username,omitempty"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.NotBefore, 0)), nil
}

func (c Claims) GetIssuer() (string, error)  { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error) { return c.Sub(), nil }

// Sub returns the subject, or "" when the token carried none.
func (c Claims) Sub() string {
	if c.Subject == nil {
		return ""
	}
	return *c.Subject
}

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings{c.Audience}, nil
}

// Scopes splits the scp claim into individual scope names.
func (c *Claims) Scopes() []string {
	if c.Scp == "" {
		return nil
	}
	return strings.Fields(c.Scp)
}

func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

func (c *Claims) HasAnyScope(scopes ...string) bool {
	for _, scope := range scopes {
		if c.HasScope(scope) {
			return true
		}
	}
	return false
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// The OrUnauthorized variants turn a failed check into ErrUnauthorized so
// handlers can bail with a single guard line.

func (c *Claims) HasScopeOrUnauthorized(scope string) error {
	if !c.HasScope(scope) {
		return ErrUnauthorized
	}
	return nil
}

func (c *Claims) HasAnyScopeOrUnauthorized(scopes ...string) error {
	if !c.HasAnyScope(scopes...) {
		return ErrUnauthorized
	}
	return nil
}

func (c *Claims) HasRoleOrUnauthorized(role string) error {
	if !c.HasRole(role) {
		return ErrUnauthorized
	}
	return nil
}

func (c *Claims) HasAnyRoleOrUnauthorized(roles ...string) error {
	if !c.HasAnyRole(roles...) {
		return ErrUnauthorized
	}
	return nil
}
