package jwks

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lerpz/lerpz-auth/internal/database"
	"github.com/lerpz/lerpz-auth/pkg/logAction"
	"github.com/lerpz/lerpz-auth/pkg/logger"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
	"github.com/lerpz/lerpz-auth/pkg/query"
)

type ISigningKeyRepository interface {
	EnsureActiveKey() error
	FindActive(ctx context.Context) (SigningKey, error)
	FindByKID(ctx context.Context, kid string) (SigningKey, error)
	LoadActiveKeys(ctx context.Context) ([]SigningKey, error)
}

type SigningKeyRepository struct {
	collection *mongo.Collection
	cache      database.IRedisClient
	dbTimeout  time.Duration
}

const signingKeyCacheTTL = time.Hour

func NewSigningKeyRepository(db *database.Database, cache database.IRedisClient) ISigningKeyRepository {
	repo := &SigningKeyRepository{
		collection: db.GetCollection("signing_keys"),
		cache:      cache,
		dbTimeout:  15 * time.Second,
	}

	repo.collection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "kid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_kid"),
		},
		{
			Keys:    bson.D{{Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_active"),
		},
	})

	return repo
}

// EnsureActiveKey generates and stores an RSA signing key on first boot so
// the token endpoint always has something to sign with.
func (r *SigningKeyRepository) EnsureActiveKey() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.dbTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"active": true})
	if err != nil {
		return database.HandleMongoError(err)
	}
	if count > 0 {
		return nil
	}

	privatePEM, publicPEM, err := generateRS256KeyPair()
	if err != nil {
		return err
	}

	key := SigningKey{
		KID:        generateKID("RS256", publicPEM),
		Algorithm:  "RS256",
		PrivateKey: privatePEM,
		PublicKey:  publicPEM,
		Active:     true,
		CreatedAt:  time.Now(),
	}

	_, err = r.collection.InsertOne(ctx, key)
	return database.HandleMongoError(err)
}

func (r *SigningKeyRepository) FindActive(c context.Context) (SigningKey, error) {
	return r.findOne(c, bson.M{"active": true}, "signing_key:active")
}

func (r *SigningKeyRepository) FindByKID(c context.Context, kid string) (SigningKey, error) {
	return r.findOne(c, bson.M{"kid": kid}, "signing_key:"+kid)
}

func (r *SigningKeyRepository) findOne(c context.Context, filter bson.M, cacheKey string) (SigningKey, error) {
	log := mlog.L(c)

	if cached, err := r.cache.Get(c, cacheKey); err == nil {
		var key SigningKey
		if err := json.Unmarshal([]byte(cached), &key); err == nil {
			return key, nil
		}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateFindQuery(r.collection.Name(), filter)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logAction.DB_REQUEST(logAction.DB_READ, raw), filter)

	var key SigningKey
	err := r.collection.FindOne(ctx, filter).Decode(&key)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = key
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_READ, raw), result, logger.MaskingRule{
		Field: "data.privateKey", Type: logger.MaskingTypeFull,
	}, logger.MaskingRule{
		Field: "data.publicKey", Type: logger.MaskingTypeFull,
	})

	if err != nil {
		return SigningKey{}, database.HandleMongoError(err)
	}

	if encoded, err := json.Marshal(key); err == nil {
		r.cache.Set(c, cacheKey, string(encoded), signingKeyCacheTTL)
	}

	return key, nil
}

func (r *SigningKeyRepository) LoadActiveKeys(c context.Context) ([]SigningKey, error) {
	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, database.HandleMongoError(err)
	}
	defer cursor.Close(ctx)

	var keys []SigningKey
	if err := cursor.All(ctx, &keys); err != nil {
		return nil, database.HandleMongoError(err)
	}
	return keys, nil
}

func generateRS256KeyPair() (privatePEM string, publicPEM string, err error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate RSA key: %w", err)
	}

	privateBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	privatePEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privateBytes,
	}))

	publicBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicBytes,
	}))

	return privatePEM, publicPEM, nil
}

func generateKID(alg, publicKeyPEM string) string {
	sum := sha256.Sum256([]byte(alg + publicKeyPEM))
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}
