package oauth

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lerpz/lerpz-auth/internal/client"
	"github.com/lerpz/lerpz-auth/internal/config"
	"github.com/lerpz/lerpz-auth/internal/database"
	"github.com/lerpz/lerpz-auth/internal/session"
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

func testOAuthService(t *testing.T) (IOAuthService, ICodeStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.AppConfig{Port: "8080"}
	cfg.LoadDefaults()

	clients := &fakeClientRepository{clients: map[string]client.OAuthClient{
		"public-client": {
			ClientID:     "public-client",
			RedirectURIs: []string{"https://app.example.com/callback"},
		},
		"confidential-client": {
			ClientID:     "confidential-client",
			RedirectURIs: []string{"https://backend.example.com/callback"},
			Confidential: true,
		},
	}}

	codes := NewCodeStore(database.NewRedisClient(rdb))
	return NewOAuthService(cfg, clients, codes), codes
}

func validRequest() AuthorizeRequest {
	return AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            "public-client",
		RedirectURI:         "https://app.example.com/callback",
		Scope:               "openid",
		State:               "xyz",
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: "S256",
	}
}

func parseLocation(t *testing.T, location string) *url.URL {
	t.Helper()
	u, err := url.Parse(location)
	if err != nil {
		t.Fatalf("redirect location %q does not parse: %v", location, err)
	}
	return u
}

func TestAuthorizeIssuesCode(t *testing.T) {
	svc, codes := testOAuthService(t)
	sess := &session.Session{UserID: "user-1"}

	location := svc.Authorize(context.Background(), validRequest(), sess, "client_id=public-client")
	u := parseLocation(t, location)

	if u.Host != "app.example.com" || u.Path != "/callback" {
		t.Fatalf("redirect went to %q", location)
	}
	if got := u.Query().Get("state"); got != "xyz" {
		t.Errorf("state = %q, want xyz", got)
	}

	code := u.Query().Get("code")
	if code == "" {
		t.Fatal("no code in redirect")
	}

	payload, err := codes.Redeem(context.Background(), code)
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	want := CodePayload{
		ClientID:            "public-client",
		RedirectURI:         "https://app.example.com/callback",
		Scope:               "openid",
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: "S256",
		UserID:              "user-1",
	}
	if payload != want {
		t.Errorf("payload = %+v, want %+v", payload, want)
	}
}

func TestAuthorizeRedirectsToLoginWithoutSession(t *testing.T) {
	svc, _ := testOAuthService(t)

	rawQuery := "response_type=code&client_id=public-client&state=xyz"
	location := svc.Authorize(context.Background(), validRequest(), nil, rawQuery)

	if !strings.HasPrefix(location, "/login?return_to=") {
		t.Fatalf("location = %q, want login redirect", location)
	}

	u := parseLocation(t, location)
	returnTo := u.Query().Get("return_to")
	if returnTo != "/oauth/authorize?"+rawQuery {
		t.Errorf("return_to = %q does not preserve the authorization query", returnTo)
	}
}

func TestAuthorizeUnknownClientLandsOnProblemPage(t *testing.T) {
	svc, _ := testOAuthService(t)

	req := validRequest()
	req.ClientID = "ghost-client"

	location := svc.Authorize(context.Background(), req, nil, "")
	u := parseLocation(t, location)

	if u.Path != "/problem" {
		t.Fatalf("location = %q, want local problem page", location)
	}
	if got := u.Query().Get("error"); got != "invalid_request" {
		t.Errorf("error = %q, want invalid_request", got)
	}
}

func TestAuthorizeUnregisteredRedirectURILandsOnProblemPage(t *testing.T) {
	svc, _ := testOAuthService(t)

	req := validRequest()
	req.RedirectURI = "https://evil.example.com/callback"

	location := svc.Authorize(context.Background(), req, nil, "")
	u := parseLocation(t, location)

	// Never redirect anywhere the client did not register.
	if u.Path != "/problem" {
		t.Fatalf("location = %q, want local problem page", location)
	}
}

func TestAuthorizeErrorsReportToRedirectURI(t *testing.T) {
	svc, _ := testOAuthService(t)
	sess := &session.Session{UserID: "user-1"}

	tests := []struct {
		name      string
		mutate    func(*AuthorizeRequest)
		wantError string
	}{
		{
			name:      "unsupported response type",
			mutate:    func(r *AuthorizeRequest) { r.ResponseType = "token" },
			wantError: "unsupported_response_type",
		},
		{
			name: "unsupported challenge method",
			mutate: func(r *AuthorizeRequest) {
				r.CodeChallengeMethod = "S512"
			},
			wantError: "invalid_request",
		},
		{
			name: "missing challenge",
			mutate: func(r *AuthorizeRequest) {
				r.CodeChallenge = ""
			},
			wantError: "invalid_request",
		},
		{
			name: "missing challenge method",
			mutate: func(r *AuthorizeRequest) {
				r.CodeChallengeMethod = ""
			},
			wantError: "invalid_request",
		},
		{
			name: "public client without pkce",
			mutate: func(r *AuthorizeRequest) {
				r.CodeChallenge = ""
				r.CodeChallengeMethod = ""
			},
			wantError: "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			location := svc.Authorize(context.Background(), req, sess, "")
			u := parseLocation(t, location)

			if u.Host != "app.example.com" {
				t.Fatalf("location = %q, want error on registered redirect URI", location)
			}
			if got := u.Query().Get("error"); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
			if got := u.Query().Get("state"); got != "xyz" {
				t.Errorf("state = %q not echoed back", got)
			}
		})
	}
}

func TestAuthorizeConfidentialClientRequiresPKCE(t *testing.T) {
	svc, _ := testOAuthService(t)
	sess := &session.Session{UserID: "user-1"}

	// Holding a client secret does not exempt anyone from the challenge.
	req := AuthorizeRequest{
		ResponseType: "code",
		ClientID:     "confidential-client",
		RedirectURI:  "https://backend.example.com/callback",
		State:        "abc",
	}

	location := svc.Authorize(context.Background(), req, sess, "")
	u := parseLocation(t, location)

	if u.Query().Get("code") != "" {
		t.Fatalf("location = %q, code issued without a PKCE binding", location)
	}
	if got := u.Query().Get("error"); got != "invalid_request" {
		t.Errorf("error = %q, want invalid_request", got)
	}
	if got := u.Query().Get("state"); got != "abc" {
		t.Errorf("state = %q not echoed back", got)
	}
}

func TestAuthorizeRequiresExplicitChallengeMethod(t *testing.T) {
	svc, _ := testOAuthService(t)
	sess := &session.Session{UserID: "user-1"}

	req := validRequest()
	req.CodeChallengeMethod = ""

	location := svc.Authorize(context.Background(), req, sess, "")
	u := parseLocation(t, location)

	if u.Query().Get("code") != "" {
		t.Fatalf("location = %q, method must not silently default", location)
	}
	if got := u.Query().Get("error"); got != "invalid_request" {
		t.Errorf("error = %q, want invalid_request", got)
	}
}
