package token

import (
	"context"
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

type IRefreshTokenRepository interface {
	Insert(ctx context.Context, token RefreshToken) error
	// ConsumeForRotation atomically revokes an active token and returns
	// it. Two concurrent rotations of the same token cannot both win.
	ConsumeForRotation(ctx context.Context, tokenValue string) (RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}

type RefreshTokenRepository struct {
	collection *mongo.Collection
	dbTimeout  time.Duration
}

func NewRefreshTokenRepository(db *database.Database) IRefreshTokenRepository {
	repo := &RefreshTokenRepository{
		collection: db.GetCollection("refresh_tokens"),
		dbTimeout:  15 * time.Second,
	}

	repo.collection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_user_id"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
		},
	})

	return repo
}

func (r *RefreshTokenRepository) Insert(c context.Context, token RefreshToken) error {
	log := mlog.L(c)
	start := time.Now()

	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateInsertQuery(r.collection.Name(), token)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logAction.DB_REQUEST(logAction.DB_CREATE, raw), token, logger.MaskingRule{
		Field: "token", Type: logger.MaskingTypePartial,
	})

	_, err := r.collection.InsertOne(ctx, token)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = "OK"
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_CREATE, raw), result)

	return database.HandleMongoError(err)
}

func (r *RefreshTokenRepository) ConsumeForRotation(c context.Context, tokenValue string) (RefreshToken, error) {
	log := mlog.L(c)
	start := time.Now()

	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	now := time.Now()
	filter := bson.M{
		"_id":        tokenValue,
		"revoked_at": nil,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"revoked_at": now}}

	raw := query.GenerateFindOneAndUpdateQuery(r.collection.Name(), filter, update)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logAction.DB_REQUEST(logAction.DB_UPDATE, raw), map[string]any{
		"token": tokenValue,
	}, logger.MaskingRule{
		Field: "token", Type: logger.MaskingTypePartial,
	})

	var token RefreshToken
	err := r.collection.FindOneAndUpdate(ctx, filter, update).Decode(&token)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = token.UserID
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_UPDATE, raw), result)

	if err != nil {
		return RefreshToken{}, database.HandleMongoError(err)
	}
	return token, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(c context.Context, userID string) error {
	log := mlog.L(c)
	start := time.Now()

	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	filter := bson.M{"user_id": userID, "revoked_at": nil}
	update := bson.M{"$set": bson.M{"revoked_at": time.Now()}}

	raw := query.GenerateUpdateQuery(r.collection.Name(), filter, update)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logAction.DB_REQUEST(logAction.DB_UPDATE, raw), filter)

	res, err := r.collection.UpdateMany(ctx, filter, update)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = res.ModifiedCount
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_UPDATE, raw), result)

	return database.HandleMongoError(err)
}
