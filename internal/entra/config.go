package entra

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/lerpz/lerpz-auth/internal/config"
	"github.com/lerpz/lerpz-auth/internal/jwks"
	"github.com/lerpz/lerpz-auth/pkg/logAction"
	"github.com/lerpz/lerpz-auth/pkg/logger"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
)

const (
	// fallback freshness when the discovery endpoint sends no usable
	// Cache-Control header
	defaultKeyTTL = 24 * time.Hour

	fetchTimeout = 10 * time.Second
)

// ErrKeyNotFound means the key id is absent from a freshly resolved key
// set. Callers must treat this as an authentication failure, not a
// retryable server error.
var ErrKeyNotFound = errors.New("signing key not found")

var maxAgeRegex = regexp.MustCompile(`(?:^|,\s*)max-age=(\d+)`)

// Config resolves and caches the public signing keys of a single
// Microsoft Entra tenant.
type Config struct {
	TenantID string
	ClientID string

	httpClient *http.Client
	jwksURL    string
	now        func() time.Time

	mu    sync.RWMutex
	cache *jwksCache
}

// jwksCache is an immutable snapshot; refreshes swap the whole pointer so
// readers never observe a partially updated key set.
type jwksCache struct {
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

type Option func(*Config)

// WithHTTPClient overrides the client used for key discovery.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.httpClient = client }
}

// WithJWKSURL overrides the key-discovery endpoint. Tests point this at a
// local server.
func WithJWKSURL(url string) Option {
	return func(c *Config) { c.jwksURL = url }
}

// WithClock overrides the freshness clock.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.now = now }
}

func NewConfig(cfg config.EntraConfig, opts ...Option) *Config {
	c := &Config{
		TenantID:   cfg.TenantID,
		ClientID:   cfg.ClientID,
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jwksURL == "" {
		c.jwksURL = fmt.Sprintf("https://login.microsoftonline.com/%s/discovery/v2.0/keys", c.TenantID)
	}
	return c
}

// IssuerURL is the iss claim value tokens from this tenant must carry.
func (c *Config) IssuerURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", c.TenantID)
}

// GetJWK resolves a decoding key by key id, fetching the key set when the
// cache is absent or expired. A failed refresh never evicts a snapshot
// that turned fresh again under the write lock.
func (c *Config) GetJWK(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	cached := c.cache
	c.mu.RUnlock()

	if cached != nil && c.now().Before(cached.expiresAt) {
		return cached.lookup(kid)
	}

	if err := c.fetchJWKS(ctx); err != nil {
		c.mu.RLock()
		cached = c.cache
		c.mu.RUnlock()

		// another task may have refreshed while we raced the fetch
		if cached != nil && c.now().Before(cached.expiresAt) {
			return cached.lookup(kid)
		}
		return nil, err
	}

	c.mu.RLock()
	cached = c.cache
	c.mu.RUnlock()

	return cached.lookup(kid)
}

func (cache *jwksCache) lookup(kid string) (*rsa.PublicKey, error) {
	key, ok := cache.keys[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// fetchJWKS replaces the cached snapshot with a fresh key set. Freshness
// comes from the Cache-Control max-age directive, defaulting to 24 hours.
func (c *Config) fetchJWKS(ctx context.Context) error {
	log := mlog.L(ctx)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build key discovery request: %w", err)
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: "entra-jwks",
	}).Debug(logAction.HTTP_REQUEST("GET "+c.jwksURL), nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("key discovery fetch failed: %w", err)
	}
	defer resp.Body.Close()

	elapsedMs := time.Since(start).Milliseconds()
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   "entra-jwks",
		ResponseTime: elapsedMs,
	}).Debug(logAction.HTTP_RESPONSE("GET "+c.jwksURL), map[string]any{
		"status": resp.StatusCode,
	})

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key discovery returned status %d", resp.StatusCode)
	}

	var keySet jwks.JWKS
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return fmt.Errorf("malformed key set body: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, jwk := range keySet.Keys {
		if jwk.Kid == "" {
			continue
		}
		key, err := decodeRSAJWK(jwk)
		if err != nil {
			continue
		}
		keys[jwk.Kid] = key
	}

	ttl := maxAgeTTL(resp.Header.Get("Cache-Control"))

	c.mu.Lock()
	c.cache = &jwksCache{
		keys:      keys,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()

	return nil
}

func maxAgeTTL(cacheControl string) time.Duration {
	m := maxAgeRegex.FindStringSubmatch(cacheControl)
	if m == nil {
		return defaultKeyTTL
	}
	seconds, err := strconv.Atoi(m[1])
	if err != nil || seconds <= 0 {
		return defaultKeyTTL
	}
	return time.Duration(seconds) * time.Second
}

func decodeRSAJWK(jwk jwks.JWK) (*rsa.PublicKey, error) {
	if jwk.Kty != "RSA" || jwk.N == "" || jwk.E == "" {
		return nil, fmt.Errorf("not an RSA signing key")
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
