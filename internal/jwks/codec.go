package jwks

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is how long self-issued access tokens live.
const DefaultAccessTokenTTL = 15 * time.Minute

// Leeway tolerated on time-based claims for clock drift between servers.
const ClockSkewLeeway = 60 * time.Second

// ErrVerification is the single category every decode failure collapses
// into. Callers cannot tell which check failed; the concrete cause stays
// wrapped inside for internal logging.
var ErrVerification = errors.New("token verification failed")

// VerificationError wraps the concrete decode failure behind the coarse
// ErrVerification category.
type VerificationError struct {
	cause error
}

func (e *VerificationError) Error() string { return "token verification failed" }
func (e *VerificationError) Unwrap() error { return e.cause }
func (e *VerificationError) Is(target error) bool {
	return target == ErrVerification
}

// Cause returns the internal reason for logging. Never send this to a
// caller.
func (e *VerificationError) Cause() error { return e.cause }

// Claims is the signed claim set carried by self-issued tokens.
type Claims struct {
	Issuer    string `json:"iss"`
	Audience  string `json:"aud"`
	Subject   string `json:"sub"`
	JTI       string `json:"jti,omitempty"`
	ExpiresAt int64  `json:"exp"`
	NotBefore int64  `json:"nbf"`
	IssuedAt  int64  `json:"iat"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
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
func (c Claims) GetSubject() (string, error) { return c.Subject, nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings{c.Audience}, nil
}

// Rules pins the audience and issuer a decoded token must carry.
type Rules struct {
	Audience string
	Issuer   string
}

// Codec encodes and decodes signed claim sets. The clock is injectable for
// tests.
type Codec struct {
	now func() time.Time
}

func NewCodec() *Codec {
	return &Codec{now: time.Now}
}

func NewCodecWithClock(now func() time.Time) *Codec {
	return &Codec{now: now}
}

// Encode signs the claim set with the given method and private key. The kid
// goes into the header so verifiers can resolve the public key.
func (c *Codec) Encode(claims Claims, method jwt.SigningMethod, privateKey any, kid string) (string, error) {
	token := jwt.NewWithClaims(method, claims)
	token.Header["typ"] = "JWT"
	if kid != "" {
		token.Header["kid"] = kid
	}

	return token.SignedString(privateKey)
}

// Decode verifies a token and returns its claims. Checks run in order:
// signature, required claims, expiry, not-before, audience, issuer. Every
// failure comes back as a VerificationError.
func (c *Codec) Decode(tokenString string, publicKey any, rules Rules) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return publicKey, nil
	}, jwt.WithValidMethods([]string{"RS256", "ES256"}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, &VerificationError{cause: err}
	}

	if err := c.validate(claims, rules); err != nil {
		return nil, &VerificationError{cause: err}
	}

	return claims, nil
}

func (c *Codec) validate(claims *Claims, rules Rules) error {
	if claims.Issuer == "" || claims.Audience == "" || claims.Subject == "" {
		return errors.New("missing required claims")
	}
	if claims.ExpiresAt == 0 || claims.NotBefore == 0 || claims.IssuedAt == 0 {
		return errors.New("missing required time claims")
	}

	now := c.now()
	if now.After(time.Unix(claims.ExpiresAt, 0).Add(ClockSkewLeeway)) {
		return errors.New("token expired")
	}
	if now.Add(ClockSkewLeeway).Before(time.Unix(claims.NotBefore, 0)) {
		return errors.New("token not yet valid")
	}

	if rules.Audience != "" && claims.Audience != rules.Audience {
		return errors.New("audience mismatch")
	}
	if rules.Issuer != "" && claims.Issuer != rules.Issuer {
		return errors.New("issuer mismatch")
	}

	return nil
}
