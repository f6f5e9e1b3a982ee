package oauth

import (
	"context"
	"net/url"

	"github.com/lerpz/lerpz-auth/internal/client"
	"github.com/lerpz/lerpz-auth/internal/config"
	"github.com/lerpz/lerpz-auth/internal/session"
	"github.com/lerpz/lerpz-auth/pkg/oautherr"
)

// AuthorizeRequest carries the query parameters of an authorization
// request.
type AuthorizeRequest struct {
	ResponseType        string `validate:"required"`
	ClientID            string `validate:"required"`
	RedirectURI         string `validate:"required,uri"`
	Scope               string `validate:"omitempty"`
	State               string `validate:"omitempty,max=512"`
	CodeChallenge       string `validate:"omitempty,min=43,max=128"`
	CodeChallengeMethod string `validate:"omitempty,oneof=plain S256"`
}

type IOAuthService interface {
	Authorize(ctx context.Context, req AuthorizeRequest, sess *session.Session, rawQuery string) string
}

// OAuthService runs the authorization-code flow. Authorize always returns
// a redirect target; where that target points encodes the outcome.
type OAuthService struct {
	cfg     *config.AppConfig
	clients client.IClientRepository
	codes   ICodeStore
}

func NewOAuthService(cfg *config.AppConfig, clients client.IClientRepository, codes ICodeStore) IOAuthService {
	return &OAuthService{
		cfg:     cfg,
		clients: clients,
		codes:   codes,
	}
}

// Authorize walks the authorization request through validation, the login
// gate, code issuance and the final callback redirect.
//
// Failures split in two: a client or redirect URI that does not check out
// can never be redirected to, so those land on the local problem page.
// Everything after that point reports to the validated redirect URI with
// RFC error parameters and the caller's state echoed back.
func (s *OAuthService) Authorize(ctx context.Context, req AuthorizeRequest, sess *session.Session, rawQuery string) string {
	oauthClient, err := s.clients.FindByClientID(ctx, req.ClientID)
	if err != nil {
		return problemRedirect(oautherr.New(oautherr.CodeInvalidRequest, "unknown client"))
	}

	if !oauthClient.ValidateRedirectURI(req.RedirectURI) {
		return problemRedirect(oautherr.New(oautherr.CodeInvalidRequest, "redirect_uri is not registered for this client"))
	}

	// From here on errors go back to the client application.
	if req.ResponseType != "code" {
		return errorRedirect(req.RedirectURI,
			oautherr.New(oautherr.CodeUnsupportedResponseType, "only response_type=code is supported").WithState(req.State))
	}

	// Every authorization request carries a PKCE binding, confidential
	// clients included. A client secret proves who is asking at the token
	// endpoint, not that it is the same party that started this flow.
	if req.CodeChallenge == "" {
		return errorRedirect(req.RedirectURI,
			oautherr.New(oautherr.CodeInvalidRequest, "code_challenge is required").WithState(req.State))
	}
	if req.CodeChallengeMethod == "" {
		return errorRedirect(req.RedirectURI,
			oautherr.New(oautherr.CodeInvalidRequest, "code_challenge_method is required").WithState(req.State))
	}
	if !s.cfg.OidcConfig.ValidateCodeChallengeMethod(req.CodeChallengeMethod) {
		return errorRedirect(req.RedirectURI,
			oautherr.New(oautherr.CodeInvalidRequest, "unsupported code_challenge_method").WithState(req.State))
	}

	if sess == nil {
		return loginRedirect(rawQuery)
	}

	code, err := s.codes.Issue(ctx, CodePayload{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		UserID:              sess.UserID,
	})
	if err != nil {
		return errorRedirect(req.RedirectURI, oautherr.Internal(err).WithState(req.State))
	}

	q := url.Values{}
	q.Set("code", code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	return appendQuery(req.RedirectURI, q)
}

// loginRedirect sends the browser to the login page with the full
// authorization query preserved, so finishing the login lands the user
// right back in this flow.
func loginRedirect(rawQuery string) string {
	returnTo := "/oauth/authorize"
	if rawQuery != "" {
		returnTo += "?" + rawQuery
	}
	return "/login?return_to=" + url.QueryEscape(returnTo)
}

func problemRedirect(oerr *oautherr.Error) string {
	return "/problem?" + oerr.Query().Encode()
}

func errorRedirect(redirectURI string, oerr *oautherr.Error) string {
	return appendQuery(redirectURI, oerr.Query())
}

// appendQuery merges parameters into a URI that may already carry a query
// string.
func appendQuery(uri string, q url.Values) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "/problem?" + q.Encode()
	}

	existing := parsed.Query()
	for key, values := range q {
		for _, v := range values {
			existing.Set(key, v)
		}
	}
	parsed.RawQuery = existing.Encode()
	return parsed.String()
}
