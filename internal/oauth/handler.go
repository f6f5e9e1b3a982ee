package oauth

import (
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lerpz/lerpz-auth/internal/database"
	"github.com/lerpz/lerpz-auth/internal/session"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
	"github.com/lerpz/lerpz-auth/pkg/oautherr"
)

type OAuthHandler struct {
	service  IOAuthService
	sessions session.ISessionRepository
	validate *validator.Validate
}

func NewOAuthHandler(service IOAuthService, sessions session.ISessionRepository) *OAuthHandler {
	return &OAuthHandler{
		service:  service,
		sessions: sessions,
		validate: validator.New(),
	}
}

// Authorize handles GET /oauth/authorize.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))

	q := r.URL.Query()
	req := AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	// Without a syntactically valid client_id and redirect_uri there is
	// nowhere trustworthy to send the error, so it stays on our side.
	if err := h.validate.Struct(req); err != nil {
		oerr := oautherr.New(oautherr.CodeInvalidRequest, "malformed authorization request")
		res.Redirect("/problem?" + oerr.Query().Encode())
		return
	}

	sess, err := session.FromRequest(r, h.sessions)
	var current *session.Session
	if err == nil {
		current = &sess
	} else if !errors.Is(err, database.ErrNotFound) {
		oerr := oautherr.Internal(err)
		res.Redirect("/problem?" + oerr.Query().Encode())
		return
	}

	res.Redirect(h.service.Authorize(r.Context(), req, current, r.URL.RawQuery))
}

// Problem handles GET /problem, the terminal page for authorization
// requests that cannot be bounced back to the client application.
func (h *OAuthHandler) Problem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	errCode := q.Get("error")
	if errCode == "" {
		errCode = "unknown_error"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Authorization problem</title></head>
<body>
<h1>Authorization problem</h1>
<p><strong>%s</strong></p>
<p>%s</p>
</body>
</html>`, html.EscapeString(errCode), html.EscapeString(q.Get("error_description")))
}
