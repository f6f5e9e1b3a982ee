package token

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lerpz/lerpz-auth/internal/client"
	"github.com/lerpz/lerpz-auth/internal/config"
	"github.com/lerpz/lerpz-auth/internal/database"
	"github.com/lerpz/lerpz-auth/internal/jwks"
	"github.com/lerpz/lerpz-auth/internal/oauth"
	"github.com/lerpz/lerpz-auth/pkg/kafka"
	"github.com/lerpz/lerpz-auth/pkg/logAction"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
	"github.com/lerpz/lerpz-auth/pkg/oautherr"
	"github.com/lerpz/lerpz-auth/pkg/pkce"
)

// RefreshTokenTTL is the lifetime of a freshly issued refresh token.
const RefreshTokenTTL = 30 * 24 * time.Hour

// GrantRequest carries the form parameters of a token request.
type GrantRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	ClientID     string
	ClientSecret string
	Scope        string
}

// AccessTokenIssuer signs access tokens with the active signing key.
type AccessTokenIssuer interface {
	IssueAccessToken(ctx context.Context, claims jwks.Claims) (string, error)
}

type ITokenService interface {
	Grant(ctx context.Context, req GrantRequest) (TokenResponse, *oautherr.Error)
}

type TokenService struct {
	cfg     *config.AppConfig
	clients client.IClientRepository
	codes   oauth.ICodeStore
	refresh IRefreshTokenRepository
	issuer  AccessTokenIssuer
	audit   kafka.Publisher
}

func NewTokenService(
	cfg *config.AppConfig,
	clients client.IClientRepository,
	codes oauth.ICodeStore,
	refresh IRefreshTokenRepository,
	issuer AccessTokenIssuer,
	audit kafka.Publisher,
) ITokenService {
	return &TokenService{
		cfg:     cfg,
		clients: clients,
		codes:   codes,
		refresh: refresh,
		issuer:  issuer,
		audit:   audit,
	}
}

// Grant dispatches a token request to its grant handler. Anything outside
// the supported grants, including the deprecated password and implicit
// grants, is refused outright.
func (s *TokenService) Grant(ctx context.Context, req GrantRequest) (TokenResponse, *oautherr.Error) {
	switch req.GrantType {
	case "authorization_code":
		return s.grantAuthorizationCode(ctx, req)
	case "refresh_token":
		return s.grantRefreshToken(ctx, req)
	case "client_credentials":
		return s.grantClientCredentials(ctx, req)
	case "":
		return TokenResponse{}, oautherr.New(oautherr.CodeInvalidRequest, "grant_type is required")
	default:
		return TokenResponse{}, oautherr.New(oautherr.CodeUnsupportedGrantType,
			fmt.Sprintf("grant_type %q is not supported", req.GrantType))
	}
}

// authenticateClient loads the client and checks its credentials.
// Confidential clients must present their secret; public clients must not
// pretend to have one.
func (s *TokenService) authenticateClient(ctx context.Context, req GrantRequest) (client.OAuthClient, *oautherr.Error) {
	if req.ClientID == "" {
		return client.OAuthClient{}, oautherr.New(oautherr.CodeInvalidRequest, "client_id is required")
	}

	c, err := s.clients.FindByClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return client.OAuthClient{}, oautherr.New(oautherr.CodeInvalidClient, "client authentication failed")
		}
		return client.OAuthClient{}, oautherr.Internal(err)
	}

	if c.Confidential && !c.ValidateSecret(req.ClientSecret) {
		return client.OAuthClient{}, oautherr.New(oautherr.CodeInvalidClient, "client authentication failed")
	}

	return c, nil
}

func (s *TokenService) grantAuthorizationCode(ctx context.Context, req GrantRequest) (TokenResponse, *oautherr.Error) {
	if req.Code == "" {
		return TokenResponse{}, oautherr.New(oautherr.CodeInvalidRequest, "code is required")
	}

	c, oerr := s.authenticateClient(ctx, req)
	if oerr != nil {
		return TokenResponse{}, oerr
	}

	payload, err := s.codes.Redeem(ctx, req.Code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Expired, never issued, or already redeemed. The replay
			// case is the interesting one for the audit trail.
			mlog.L(ctx).Warn(logAction.EXCEPTION("CODE_REDEEM_FAILED"), map[string]any{
				"client_id": req.ClientID,
			})
			s.audit.Publish(ctx, kafka.Event{
				Type:     kafka.EventCodeReplayed,
				ClientID: req.ClientID,
			})
			return TokenResponse{}, oautherr.New(oautherr.CodeInvalidGrant, "authorization code is invalid or expired")
		}
		return TokenResponse{}, oautherr.Internal(err)
	}

	// The code is bound to the client and redirect URI it was issued
	// for.
	if payload.ClientID != c.ClientID {
		return TokenResponse{}, oautherr.New(oautherr.CodeInvalidGrant, "authorization code was issued to another client")
	}
	if payload.RedirectURI != req.RedirectURI {
		return TokenResponse{}, oautherr.New(oautherr.CodeInvalidGrant, "redirect_uri does not match the authorization request")
	}

	if payload.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return TokenResponse{}, oautherr.New(oautherr.CodeInvalidGrant, "code_verifier is required")
		}

		expected, err := pkce.EncodeCodeVerifier(payload.CodeChallengeMethod, req.CodeVerifier)
		if err != nil {
			return TokenResponse{}, oautherr.New(oautherr.CodeInvalidGrant, "code_verifier could not be checked")
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(payload.CodeChallenge)) != 1 {
			return TokenResponse{}, oautherr.New(oautherr.CodeInvalidGrant, "code_verifier does not match")
		}
	}

	return s.issueTokens(ctx, c.ClientID, payload.UserID, payload.Scope)
}

func (s *TokenService) grantRefreshToken(ctx context.Context, req GrantRequest) (TokenResponse, *oautherr.Error) {
	if req.RefreshToken == "" {
		return TokenResponse{}, oautherr.New(oautherr.CodeInvalidRequest, "refresh_token is required")
	}

	c, oerr := s.authenticateClient(ctx, req)
	if oerr != nil {
		return TokenResponse{}, oerr
	}

	old, err := s.refresh.ConsumeForRotation(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return TokenResponse{}, oautherr.New(oautherr.CodeInvalidGrant, "refresh token is invalid, expired or revoked")
		}
		return TokenResponse{}, oautherr.Internal(err)
	}

	if old.ClientID != c.ClientID {
		return TokenResponse{}, oautherr.New(oautherr.CodeInvalidGrant, "refresh token was issued to another client")
	}

	return s.issueTokens(ctx, c.ClientID, old.UserID, old.Scope)
}

func (s *TokenService) grantClientCredentials(ctx context.Context, req GrantRequest) (TokenResponse, *oautherr.Error) {
	c, oerr := s.authenticateClient(ctx, req)
	if oerr != nil {
		return TokenResponse{}, oerr
	}

	// Only clients that can actually authenticate get to act on their
	// own behalf.
	if !c.Confidential {
		return TokenResponse{}, oautherr.New(oautherr.CodeUnauthorizedClient, "public clients cannot use client_credentials")
	}

	scope, oerr := resolveScope(c, req.Scope)
	if oerr != nil {
		return TokenResponse{}, oerr
	}

	accessToken, err := s.issuer.IssueAccessToken(ctx, jwks.Claims{
		Audience: c.ClientID,
		Subject:  c.ClientID,
		Scope:    scope,
		ClientID: c.ClientID,
	})
	if err != nil {
		return TokenResponse{}, oautherr.Internal(err)
	}

	s.audit.Publish(ctx, kafka.Event{
		Type:     kafka.EventTokenIssued,
		ClientID: c.ClientID,
		Metadata: map[string]any{"grant_type": "client_credentials"},
	})

	// No refresh token here, the client can always authenticate again.
	return TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(jwks.DefaultAccessTokenTTL.Seconds()),
		Scope:       scope,
	}, nil
}

// issueTokens signs an access token for the user and rotates in a fresh
// refresh token.
func (s *TokenService) issueTokens(ctx context.Context, clientID, userID, scope string) (TokenResponse, *oautherr.Error) {
	accessToken, err := s.issuer.IssueAccessToken(ctx, jwks.Claims{
		Audience: clientID,
		Subject:  userID,
		Scope:    scope,
		ClientID: clientID,
	})
	if err != nil {
		return TokenResponse{}, oautherr.Internal(err)
	}

	refreshValue, err := generateRefreshToken()
	if err != nil {
		return TokenResponse{}, oautherr.Internal(err)
	}

	now := time.Now()
	if err := s.refresh.Insert(ctx, RefreshToken{
		Token:     refreshValue,
		UserID:    userID,
		ClientID:  clientID,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(RefreshTokenTTL),
	}); err != nil {
		return TokenResponse{}, oautherr.Internal(err)
	}

	s.audit.Publish(ctx, kafka.Event{
		Type:     kafka.EventTokenIssued,
		UserID:   userID,
		ClientID: clientID,
	})

	return TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(jwks.DefaultAccessTokenTTL.Seconds()),
		RefreshToken: refreshValue,
		Scope:        scope,
	}, nil
}

// resolveScope narrows the requested scope to what the client registered.
// An empty request inherits everything the client is allowed.
func resolveScope(c client.OAuthClient, requested string) (string, *oautherr.Error) {
	if requested == "" {
		return strings.Join(c.Scopes, " "), nil
	}

	allowed := make(map[string]bool, len(c.Scopes))
	for _, s := range c.Scopes {
		allowed[s] = true
	}

	for _, s := range strings.Fields(requested) {
		if !allowed[s] {
			return "", oautherr.New(oautherr.CodeInvalidScope, fmt.Sprintf("scope %q is not registered for this client", s))
		}
	}
	return requested, nil
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
