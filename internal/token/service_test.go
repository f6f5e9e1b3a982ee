package token

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lerpz/lerpz-auth/internal/client"
	"github.com/lerpz/lerpz-auth/internal/config"
	"github.com/lerpz/lerpz-auth/internal/database"
	"github.com/lerpz/lerpz-auth/internal/jwks"
	"github.com/lerpz/lerpz-auth/internal/oauth"
	"github.com/lerpz/lerpz-auth/pkg/kafka"
	"github.com/lerpz/lerpz-auth/pkg/oautherr"
)

type fakeClientRepository struct {
	clients map[string]client.OAuthClient
}

func (r *fakeClientRepository) Insert(_ context.Context, c client.OAuthClient) error {
	r.clients[c.ClientID] = c
	return nil
}

func (r *fakeClientRepository) FindByClientID(_ context.Context, clientID string) (client.OAuthClient, error) {
	c, ok := r.clients[clientID]
	if !ok {
		return client.OAuthClient{}, database.ErrNotFound
	}
	return c, nil
}

type fakeRefreshRepository struct {
	tokens map[string]RefreshToken
}

func newFakeRefreshRepository() *fakeRefreshRepository {
	return &fakeRefreshRepository{tokens: make(map[string]RefreshToken)}
}

func (r *fakeRefreshRepository) Insert(_ context.Context, t RefreshToken) error {
	r.tokens[t.Token] = t
	return nil
}

func (r *fakeRefreshRepository) ConsumeForRotation(_ context.Context, value string) (RefreshToken, error) {
	t, ok := r.tokens[value]
	if !ok || t.RevokedAt != nil || time.Now().After(t.ExpiresAt) {
		return RefreshToken{}, database.ErrNotFound
	}

	now := time.Now()
	t.RevokedAt = &now
	r.tokens[value] = t
	return t, nil
}

func (r *fakeRefreshRepository) RevokeAllForUser(_ context.Context, userID string) error {
	now := time.Now()
	for k, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.tokens[k] = t
		}
	}
	return nil
}

type fakeIssuer struct{}

func (fakeIssuer) IssueAccessToken(_ context.Context, claims jwks.Claims) (string, error) {
	return "signed-token-for-" + claims.Subject, nil
}

func testTokenService(t *testing.T) (ITokenService, oauth.ICodeStore, *fakeRefreshRepository) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.AppConfig{Port: "8080"}
	cfg.LoadDefaults()

	confidentialSecret := "s3cret-value"
	sum := sha256.Sum256([]byte(confidentialSecret))

	clients := &fakeClientRepository{clients: map[string]client.OAuthClient{
		"public-client": {
			ClientID:     "public-client",
			RedirectURIs: []string{"https://app.example.com/callback"},
			Scopes:       []string{"openid", "profile"},
		},
		"confidential-client": {
			ClientID:     "confidential-client",
			SecretHash:   hexEncode(sum[:]),
			RedirectURIs: []string{"https://backend.example.com/callback"},
			Scopes:       []string{"openid", "jobs.run"},
			Confidential: true,
		},
	}}

	codes := oauth.NewCodeStore(database.NewRedisClient(rdb))
	refresh := newFakeRefreshRepository()

	svc := NewTokenService(cfg, clients, codes, refresh, fakeIssuer{}, kafka.NewPublisher(kafka.Config{}))
	return svc, codes, refresh
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, v := range b {
		out = append(out, digits[v>>4], digits[v&0x0f])
	}
	return string(out)
}

func issueCode(t *testing.T, codes oauth.ICodeStore, verifier string) string {
	t.Helper()

	sum := sha256.Sum256([]byte(verifier))
	code, err := codes.Issue(context.Background(), oauth.CodePayload{
		ClientID:            "public-client",
		RedirectURI:         "https://app.example.com/callback",
		Scope:               "openid",
		CodeChallenge:       base64.RawURLEncoding.EncodeToString(sum[:]),
		CodeChallengeMethod: "S256",
		UserID:              "user-1",
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return code
}

func wantOAuthError(t *testing.T, oerr *oautherr.Error, code string) {
	t.Helper()
	if oerr == nil {
		t.Fatalf("Grant() succeeded, want %s", code)
	}
	if oerr.Code != code {
		t.Fatalf("Grant() error = %s (%s), want %s", oerr.Code, oerr.Description, code)
	}
}

func TestAuthorizationCodeGrant(t *testing.T) {
	svc, codes, _ := testTokenService(t)
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	response, oerr := svc.Grant(context.Background(), GrantRequest{
		GrantType:    "authorization_code",
		Code:         issueCode(t, codes, verifier),
		RedirectURI:  "https://app.example.com/callback",
		CodeVerifier: verifier,
		ClientID:     "public-client",
	})
	if oerr != nil {
		t.Fatalf("Grant() error = %v", oerr)
	}

	if response.AccessToken != "signed-token-for-user-1" {
		t.Errorf("access token = %q", response.AccessToken)
	}
	if response.TokenType != "Bearer" {
		t.Errorf("token type = %q, want Bearer", response.TokenType)
	}
	if response.ExpiresIn != 900 {
		t.Errorf("expires_in = %d, want 900", response.ExpiresIn)
	}
	if response.RefreshToken == "" {
		t.Error("no refresh token issued")
	}
	if response.Scope != "openid" {
		t.Errorf("scope = %q, want openid", response.Scope)
	}
}

func TestAuthorizationCodeGrantFailures(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	tests := []struct {
		name     string
		request  func(code string) GrantRequest
		wantCode string
	}{
		{
			name: "wrong verifier",
			request: func(code string) GrantRequest {
				return GrantRequest{
					GrantType:    "authorization_code",
					Code:         code,
					RedirectURI:  "https://app.example.com/callback",
					CodeVerifier: "wrong-verifier-wrong-verifier-wrong-verifier",
					ClientID:     "public-client",
				}
			},
			wantCode: oautherr.CodeInvalidGrant,
		},
		{
			name: "missing verifier",
			request: func(code string) GrantRequest {
				return GrantRequest{
					GrantType:   "authorization_code",
					Code:        code,
					RedirectURI: "https://app.example.com/callback",
					ClientID:    "public-client",
				}
			},
			wantCode: oautherr.CodeInvalidGrant,
		},
		{
			name: "redirect uri mismatch",
			request: func(code string) GrantRequest {
				return GrantRequest{
					GrantType:    "authorization_code",
					Code:         code,
					RedirectURI:  "https://evil.example.com/callback",
					CodeVerifier: verifier,
					ClientID:     "public-client",
				}
			},
			wantCode: oautherr.CodeInvalidGrant,
		},
		{
			name: "code issued to another client",
			request: func(code string) GrantRequest {
				return GrantRequest{
					GrantType:    "authorization_code",
					Code:         code,
					RedirectURI:  "https://app.example.com/callback",
					CodeVerifier: verifier,
					ClientID:     "confidential-client",
					ClientSecret: "s3cret-value",
				}
			},
			wantCode: oautherr.CodeInvalidGrant,
		},
		{
			name: "unknown code",
			request: func(string) GrantRequest {
				return GrantRequest{
					GrantType:    "authorization_code",
					Code:         "never-issued",
					RedirectURI:  "https://app.example.com/callback",
					CodeVerifier: verifier,
					ClientID:     "public-client",
				}
			},
			wantCode: oautherr.CodeInvalidGrant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, codes, _ := testTokenService(t)
			code := issueCode(t, codes, verifier)

			_, oerr := svc.Grant(context.Background(), tt.request(code))
			wantOAuthError(t, oerr, tt.wantCode)
		})
	}
}

func TestAuthorizationCodeReplay(t *testing.T) {
	svc, codes, _ := testTokenService(t)
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	code := issueCode(t, codes, verifier)

	req := GrantRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  "https://app.example.com/callback",
		CodeVerifier: verifier,
		ClientID:     "public-client",
	}

	if _, oerr := svc.Grant(context.Background(), req); oerr != nil {
		t.Fatalf("first Grant() error = %v", oerr)
	}

	_, oerr := svc.Grant(context.Background(), req)
	wantOAuthError(t, oerr, oautherr.CodeInvalidGrant)
}

func TestUnsupportedGrantTypes(t *testing.T) {
	svc, _, _ := testTokenService(t)

	for _, grantType := range []string{"password", "implicit", "urn:ietf:params:oauth:grant-type:device_code"} {
		t.Run(grantType, func(t *testing.T) {
			_, oerr := svc.Grant(context.Background(), GrantRequest{GrantType: grantType})
			wantOAuthError(t, oerr, oautherr.CodeUnsupportedGrantType)
		})
	}

	t.Run("missing grant_type", func(t *testing.T) {
		_, oerr := svc.Grant(context.Background(), GrantRequest{})
		wantOAuthError(t, oerr, oautherr.CodeInvalidRequest)
	})
}

func TestRefreshTokenRotation(t *testing.T) {
	svc, codes, _ := testTokenService(t)
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	first, oerr := svc.Grant(context.Background(), GrantRequest{
		GrantType:    "authorization_code",
		Code:         issueCode(t, codes, verifier),
		RedirectURI:  "https://app.example.com/callback",
		CodeVerifier: verifier,
		ClientID:     "public-client",
	})
	if oerr != nil {
		t.Fatalf("Grant() error = %v", oerr)
	}

	second, oerr := svc.Grant(context.Background(), GrantRequest{
		GrantType:    "refresh_token",
		RefreshToken: first.RefreshToken,
		ClientID:     "public-client",
	})
	if oerr != nil {
		t.Fatalf("refresh Grant() error = %v", oerr)
	}
	if second.RefreshToken == "" || second.RefreshToken == first.RefreshToken {
		t.Error("rotation must issue a fresh refresh token")
	}

	// The rotated-out token is dead.
	_, oerr = svc.Grant(context.Background(), GrantRequest{
		GrantType:    "refresh_token",
		RefreshToken: first.RefreshToken,
		ClientID:     "public-client",
	})
	wantOAuthError(t, oerr, oautherr.CodeInvalidGrant)

	// The replacement still works.
	if _, oerr := svc.Grant(context.Background(), GrantRequest{
		GrantType:    "refresh_token",
		RefreshToken: second.RefreshToken,
		ClientID:     "public-client",
	}); oerr != nil {
		t.Errorf("rotated Grant() error = %v", oerr)
	}
}

func TestRefreshTokenWrongClient(t *testing.T) {
	svc, codes, _ := testTokenService(t)
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	first, oerr := svc.Grant(context.Background(), GrantRequest{
		GrantType:    "authorization_code",
		Code:         issueCode(t, codes, verifier),
		RedirectURI:  "https://app.example.com/callback",
		CodeVerifier: verifier,
		ClientID:     "public-client",
	})
	if oerr != nil {
		t.Fatalf("Grant() error = %v", oerr)
	}

	_, oerr = svc.Grant(context.Background(), GrantRequest{
		GrantType:    "refresh_token",
		RefreshToken: first.RefreshToken,
		ClientID:     "confidential-client",
		ClientSecret: "s3cret-value",
	})
	wantOAuthError(t, oerr, oautherr.CodeInvalidGrant)
}

func TestClientCredentialsGrant(t *testing.T) {
	svc, _, _ := testTokenService(t)

	t.Run("confidential client", func(t *testing.T) {
		response, oerr := svc.Grant(context.Background(), GrantRequest{
			GrantType:    "client_credentials",
			ClientID:     "confidential-client",
			ClientSecret: "s3cret-value",
			Scope:        "jobs.run",
		})
		if oerr != nil {
			t.Fatalf("Grant() error = %v", oerr)
		}
		if response.AccessToken != "signed-token-for-confidential-client" {
			t.Errorf("access token = %q, want subject bound to the client", response.AccessToken)
		}
		if response.RefreshToken != "" {
			t.Error("client_credentials must not issue a refresh token")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, oerr := svc.Grant(context.Background(), GrantRequest{
			GrantType:    "client_credentials",
			ClientID:     "confidential-client",
			ClientSecret: "wrong",
		})
		wantOAuthError(t, oerr, oautherr.CodeInvalidClient)
	})

	t.Run("public client refused", func(t *testing.T) {
		_, oerr := svc.Grant(context.Background(), GrantRequest{
			GrantType: "client_credentials",
			ClientID:  "public-client",
		})
		wantOAuthError(t, oerr, oautherr.CodeUnauthorizedClient)
	})

	t.Run("unregistered scope", func(t *testing.T) {
		_, oerr := svc.Grant(context.Background(), GrantRequest{
			GrantType:    "client_credentials",
			ClientID:     "confidential-client",
			ClientSecret: "s3cret-value",
			Scope:        "admin.everything",
		})
		wantOAuthError(t, oerr, oautherr.CodeInvalidScope)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, oerr := svc.Grant(context.Background(), GrantRequest{
			GrantType: "client_credentials",
			ClientID:  "ghost-client",
		})
		wantOAuthError(t, oerr, oautherr.CodeInvalidClient)
	})
}
