package token

import "time"

// RefreshToken is a long-lived, single-rotation credential. A token that
// has RevokedAt set can never be used again; rotation revokes the old
// token and issues a replacement in its place.
type RefreshToken struct {
	Token     string     `bson:"_id" json:"token"`
	UserID    string     `bson:"user_id" json:"user_id"`
	ClientID  string     `bson:"client_id" json:"client_id"`
	Scope     string     `bson:"scope,omitempty" json:"scope,omitempty"`
	IssuedAt  time.Time  `bson:"issued_at" json:"issued_at"`
	ExpiresAt time.Time  `bson:"expires_at" json:"expires_at"`
	RevokedAt *time.Time `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
}

// TokenResponse is the RFC 6749 §5.1 success body of the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
