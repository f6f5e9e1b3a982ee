package client

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

type IClientRepository interface {
	Insert(ctx context.Context, client OAuthClient) error
	FindByClientID(ctx context.Context, clientID string) (OAuthClient, error)
}

type ClientRepository struct {
	collection *mongo.Collection
	dbTimeout  time.Duration
}

func NewClientRepository(db *database.Database) IClientRepository {
	repo := &ClientRepository{
		collection: db.GetCollection("oauth_clients"),
		dbTimeout:  15 * time.Second,
	}

	repo.collection.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "client_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_client_id"),
	})

	return repo
}

func (r *ClientRepository) Insert(c context.Context, client OAuthClient) error {
	log := mlog.L(c)
	start := time.Now()

	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateInsertQuery(r.collection.Name(), client)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logAction.DB_REQUEST(logAction.DB_CREATE, raw), client, logger.MaskingRule{
		Field: "secretHash", Type: logger.MaskingTypeFull,
	})

	_, err := r.collection.InsertOne(ctx, client)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = client.ClientID
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_CREATE, raw), result)

	return database.HandleMongoError(err)
}

func (r *ClientRepository) FindByClientID(c context.Context, clientID string) (OAuthClient, error) {
	log := mlog.L(c)
	start := time.Now()

	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	filter := bson.M{"client_id": clientID}
	raw := query.GenerateFindQuery(r.collection.Name(), filter)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logAction.DB_REQUEST(logAction.DB_READ, raw), filter)

	var client OAuthClient
	err := r.collection.FindOne(ctx, filter).Decode(&client)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = client
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_READ, raw), result, logger.MaskingRule{
		Field: "data.secretHash", Type: logger.MaskingTypeFull,
	})

	if err != nil {
		return OAuthClient{}, database.HandleMongoError(err)
	}
	return client, nil
}
