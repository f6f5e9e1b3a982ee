package jwks

import "time"

type SigningKey struct {
	ID         string     `bson:"_id,omitempty" json:"id"`
	KID        string     `bson:"kid" json:"kid"`
	Algorithm  string     `bson:"algorithm" json:"algorithm"`
	// The PEM fields round-trip through the redis cache as JSON; they are
	// kept out of logs by masking rules, not tags.
	PrivateKey string     `bson:"privateKey" json:"privateKey"`
	PublicKey  string     `bson:"publicKey" json:"publicKey"`
	Active     bool       `bson:"active" json:"active"`
	CreatedAt  time.Time  `bson:"createdAt" json:"-"`
	ExpiresAt  *time.Time `bson:"expiresAt,omitempty" json:"-"`
}
