package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lerpz/lerpz-auth/internal/database"
)

const (
	// CookieName carries the browser session token.
	CookieName = "session"

	// TTL is how long a login session stays valid.
	TTL = 24 * time.Hour

	keyPrefix = "session:"
)

// Session links a browser session token to a signed-in user.
type Session struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type ISessionRepository interface {
	Create(ctx context.Context, session Session) (string, error)
	Find(ctx context.Context, token string) (Session, error)
	Destroy(ctx context.Context, token string) error
}

type SessionRepository struct {
	store database.IRedisClient
}

func NewSessionRepository(store database.IRedisClient) ISessionRepository {
	return &SessionRepository{store: store}
}

// Create stores the session under a fresh random token and returns the
// token. Expiry is enforced by the store, not application code.
func (r *SessionRepository) Create(ctx context.Context, session Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}

	if err := r.store.Set(ctx, keyPrefix+token, string(payload), TTL); err != nil {
		return "", err
	}
	return token, nil
}

func (r *SessionRepository) Find(ctx context.Context, token string) (Session, error) {
	raw, err := r.store.Get(ctx, keyPrefix+token)
	if err != nil {
		return Session{}, err
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) Destroy(ctx context.Context, token string) error {
	return r.store.Del(ctx, keyPrefix+token)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SetCookie attaches the session token to the response.
func SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// FromRequest resolves the session attached to the request cookie, if any.
func FromRequest(r *http.Request, repo ISessionRepository) (Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, database.ErrNotFound
	}
	return repo.Find(r.Context(), cookie.Value)
}
