package jwks

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lerpz/lerpz-auth/internal/config"
)

// JWTService issues and verifies self-signed tokens using the active
// signing key.
type JWTService struct {
	cfg   *config.AppConfig
	repo  ISigningKeyRepository
	codec *Codec
}

func NewJWTService(cfg *config.AppConfig, repo ISigningKeyRepository) *JWTService {
	return &JWTService{
		cfg:   cfg,
		repo:  repo,
		codec: NewCodec(),
	}
}

func (s *JWTService) GetJWKS(ctx context.Context) (JWKS, error) {
	keys, err := s.repo.LoadActiveKeys(ctx)
	if err != nil {
		return JWKS{}, err
	}

	var jwks JWKS
	for _, key := range keys {
		pubAny, err := ParsePublicKeyFromPEM(key.PublicKey)
		if err != nil {
			return JWKS{}, err
		}
		pub, ok := pubAny.(*rsa.PublicKey)
		if !ok {
			return JWKS{}, fmt.Errorf("signing key %s is not RSA", key.KID)
		}
		jwks.Keys = append(jwks.Keys, RSAJWK(key.KID, key.Algorithm, pub))
	}
	return jwks, nil
}

// IssueAccessToken signs a claim set with the active key. Missing standard
// claims are defaulted: iss from config, jti random, iat/nbf now,
// exp = iat + 15 minutes.
func (s *JWTService) IssueAccessToken(ctx context.Context, claims Claims) (string, error) {
	key, err := s.repo.FindActive(ctx)
	if err != nil {
		return "", err
	}

	now := time.Now()
	if claims.Issuer == "" {
		claims.Issuer = s.cfg.OidcConfig.Issuer
	}
	if claims.JTI == "" {
		claims.JTI = uuid.NewString()
	}
	if claims.IssuedAt == 0 {
		claims.IssuedAt = now.Unix()
	}
	if claims.NotBefore == 0 {
		claims.NotBefore = claims.IssuedAt
	}
	if claims.ExpiresAt == 0 {
		claims.ExpiresAt = claims.IssuedAt + int64(DefaultAccessTokenTTL.Seconds())
	}

	privateKey, err := ParsePrivateKeyFromPEM(key.PrivateKey)
	if err != nil {
		return "", err
	}

	return s.codec.Encode(claims, jwt.SigningMethodRS256, privateKey, key.KID)
}

// VerifyAccessToken verifies a self-issued token. The kid in the header
// resolves the public key; audience defaults to unchecked because
// self-issued tokens carry per-client audiences.
func (s *JWTService) VerifyAccessToken(ctx context.Context, tokenString string, rules Rules) (*Claims, error) {
	kid, err := extractKID(tokenString)
	if err != nil {
		return nil, &VerificationError{cause: err}
	}

	key, err := s.repo.FindByKID(ctx, kid)
	if err != nil {
		return nil, &VerificationError{cause: err}
	}

	publicKey, err := ParsePublicKeyFromPEM(key.PublicKey)
	if err != nil {
		return nil, &VerificationError{cause: err}
	}

	if rules.Issuer == "" {
		rules.Issuer = s.cfg.OidcConfig.Issuer
	}

	return s.codec.Decode(tokenString, publicKey, rules)
}

func extractKID(tokenString string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", err
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return "", fmt.Errorf("missing kid in token header")
	}
	return kid, nil
}
