package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lerpz/lerpz-auth/internal/database"
)

const (
	// CodeTTL bounds how long an authorization code stays redeemable.
	CodeTTL = 10 * time.Minute

	codeKeyPrefix = "authcode:"
)

// CodePayload is everything the token endpoint needs to finish the flow:
// the binding to the client and redirect URI, the PKCE challenge, and the
// signed-in user the code was issued for.
type CodePayload struct {
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope,omitempty"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	UserID              string `json:"user_id"`
}

type ICodeStore interface {
	Issue(ctx context.Context, payload CodePayload) (string, error)
	Redeem(ctx context.Context, code string) (CodePayload, error)
}

// CodeStore keeps authorization codes in redis. Expiry is enforced by the
// store; redemption happens through an atomic read-and-delete so a code
// can never be redeemed twice.
type CodeStore struct {
	store database.IRedisClient
}

func NewCodeStore(store database.IRedisClient) ICodeStore {
	return &CodeStore{store: store}
}

func (s *CodeStore) Issue(ctx context.Context, payload CodePayload) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode code payload: %w", err)
	}

	if err := s.store.Set(ctx, codeKeyPrefix+code, string(encoded), CodeTTL); err != nil {
		return "", err
	}
	return code, nil
}

// Redeem consumes a code. A second redemption of the same code returns
// database.ErrNotFound, exactly like an expired or never-issued code.
func (s *CodeStore) Redeem(ctx context.Context, code string) (CodePayload, error) {
	raw, err := s.store.GetDel(ctx, codeKeyPrefix+code)
	if err != nil {
		return CodePayload{}, err
	}

	var payload CodePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return CodePayload{}, fmt.Errorf("failed to decode code payload: %w", err)
	}
	return payload, nil
}

func generateCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
