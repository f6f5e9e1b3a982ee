package entra

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lerpz/lerpz-auth/pkg/logAction"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
)

const clockSkewLeeway = 60 * time.Second

type claimsCtxKey struct{}

// ClaimsFromContext returns the claims the middleware attached, or nil on
// an unguarded route.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsCtxKey{}).(*Claims)
	return claims
}

// Validator authenticates bearer tokens issued by the configured Entra
// tenant.
type Validator struct {
	cfg *Config
	now func() time.Time
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

func NewValidatorWithClock(cfg *Config, now func() time.Time) *Validator {
	return &Validator{cfg: cfg, now: now}
}

// ValidateRequest extracts the bearer token from the Authorization header
// and validates it. Every failure collapses into ErrUnauthorized.
func (v *Validator) ValidateRequest(r *http.Request) (*Claims, error) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return nil, ErrUnauthorized
	}
	return v.ValidateToken(r.Context(), token)
}

// ValidateToken verifies signature and claims of an Entra access token.
// Checks run in order: key resolution, signature, required claims, time
// bounds, audience, issuer, then the tenant-specific custom checks. The
// reason for a rejection is logged, never returned.
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	log := mlog.L(ctx)

	claims, err := v.validate(ctx, tokenString)
	if err != nil {
		log.Warn(logAction.EXCEPTION("TOKEN_REJECTED"), map[string]any{
			"reason": err.Error(),
		})
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (v *Validator) validate(ctx context.Context, tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	kid, ok := unverified.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("missing kid in token header")
	}

	key, err := v.cfg.GetJWK(ctx, kid)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}

	if claims.Issuer == "" || claims.Audience == "" || claims.ExpiresAt == 0 {
		return nil, errors.New("missing required claims")
	}

	now := v.now()
	if now.After(time.Unix(claims.ExpiresAt, 0).Add(clockSkewLeeway)) {
		return nil, errors.New("token expired")
	}
	if claims.NotBefore != 0 && now.Add(clockSkewLeeway).Before(time.Unix(claims.NotBefore, 0)) {
		return nil, errors.New("token not yet valid")
	}

	if claims.Audience != v.cfg.ClientID {
		return nil, errors.New("audience mismatch")
	}
	if claims.Issuer != v.cfg.IssuerURL() {
		return nil, errors.New("issuer mismatch")
	}

	// v2.0 endpoint tokens only, bound to exactly our tenant. A subject
	// is optional, but a present one must not be empty.
	if claims.Version != "2.0" {
		return nil, errors.New("unsupported token version")
	}
	if claims.TenantID != v.cfg.TenantID {
		return nil, errors.New("tenant mismatch")
	}
	if claims.Subject != nil && *claims.Subject == "" {
		return nil, errors.New("empty subject")
	}

	return claims, nil
}

// Middleware guards a route with bearer-token authentication and attaches
// the validated claims to the request context.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.ValidateRequest(r)
		if err != nil {
			res := mlog.NewResponseWithLogger(w, r, r.Header.Get("x-session-id"))
			res.ResponseJsonError(http.StatusUnauthorized, map[string]any{
				"error": "unauthorized",
			}, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsCtxKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
