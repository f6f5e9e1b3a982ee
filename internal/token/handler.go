package token

import (
	"net/http"

	"github.com/lerpz/lerpz-auth/pkg/logger"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
	"github.com/lerpz/lerpz-auth/pkg/oautherr"
)

type TokenHandler struct {
	service ITokenService
}

func NewTokenHandler(service ITokenService) *TokenHandler {
	return &TokenHandler{service: service}
}

// Token handles POST /oauth/token. The request body is form-encoded per
// RFC 6749; responses are JSON either way.
func (h *TokenHandler) Token(w http.ResponseWriter, r *http.Request) {
	res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"),
		logger.MaskingRule{Field: "body.client_secret", Type: logger.MaskingTypeFull},
		logger.MaskingRule{Field: "body.code_verifier", Type: logger.MaskingTypeFull},
		logger.MaskingRule{Field: "body.refresh_token", Type: logger.MaskingTypePartial},
	)

	if err := r.ParseForm(); err != nil {
		oerr := oautherr.New(oautherr.CodeInvalidRequest, "request body must be form encoded")
		res.ResponseJsonError(http.StatusBadRequest, oerr.Json(), err)
		return
	}

	req := GrantRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RefreshToken: r.PostFormValue("refresh_token"),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
		Scope:        r.PostFormValue("scope"),
	}

	response, oerr := h.service.Grant(r.Context(), req)
	if oerr != nil {
		// RFC 6749 §5.2: a 401 for failed client authentication names
		// the expected scheme.
		if oerr.Code == oautherr.CodeInvalidClient {
			w.Header().Set("WWW-Authenticate", `Basic realm="oauth/token"`)
		}
		res.ResponseJsonError(statusFor(oerr), oerr.Json(), oerr)
		return
	}

	// RFC 6749 §5.1: token responses must not be cached.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	res.ResponseJson(http.StatusOK, response,
		logger.MaskingRule{Field: "body.access_token", Type: logger.MaskingTypePartial},
		logger.MaskingRule{Field: "body.refresh_token", Type: logger.MaskingTypePartial},
	)
}

func statusFor(oerr *oautherr.Error) int {
	switch oerr.Code {
	case oautherr.CodeInvalidClient:
		return http.StatusUnauthorized
	case oautherr.CodeServerError:
		return http.StatusInternalServerError
	case oautherr.CodeTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
