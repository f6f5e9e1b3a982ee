package discover

import (
	"context"
	"net/http"

	"github.com/lerpz/lerpz-auth/internal/config"
	"github.com/lerpz/lerpz-auth/internal/jwks"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
)

type JWKSProvider interface {
	GetJWKS(ctx context.Context) (jwks.JWKS, error)
}

// DiscoverHandler serves the OIDC discovery document and the public key
// set.
type DiscoverHandler struct {
	cfg      *config.AppConfig
	provider JWKSProvider
}

func NewDiscoverHandler(cfg *config.AppConfig, provider JWKSProvider) *DiscoverHandler {
	return &DiscoverHandler{cfg: cfg, provider: provider}
}

// OpenidConfiguration handles GET /.well-known/openid-configuration.
func (h *DiscoverHandler) OpenidConfiguration(w http.ResponseWriter, r *http.Request) {
	res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))
	res.ResponseJson(http.StatusOK, h.cfg.OidcConfig)
}

// JWKS handles GET /.well-known/jwks.json.
func (h *DiscoverHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))

	keySet, err := h.provider.GetJWKS(r.Context())
	if err != nil {
		res.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "failed to load signing keys",
		}, err)
		return
	}

	res.ResponseJson(http.StatusOK, keySet)
}
