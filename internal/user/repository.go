package user

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

type IUserRepository interface {
	Insert(ctx context.Context, user User) error
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}

type UserRepository struct {
	collection *mongo.Collection
	dbTimeout  time.Duration
}

func NewUserRepository(db *database.Database) IUserRepository {
	repo := &UserRepository{
		collection: db.GetCollection("users"),
		dbTimeout:  15 * time.Second,
	}

	repo.collection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_username"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
	})

	return repo
}

func (r *UserRepository) Insert(c context.Context, user User) error {
	log := mlog.L(c)
	start := time.Now()

	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateInsertQuery(r.collection.Name(), user)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logAction.DB_REQUEST(logAction.DB_CREATE, raw), user, logger.MaskingRule{
		Field: "passwordHash", Type: logger.MaskingTypeFull,
	}, logger.MaskingRule{
		Field: "passwordSalt", Type: logger.MaskingTypeFull,
	})

	_, err := r.collection.InsertOne(ctx, user)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = user.ID
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_CREATE, raw), result)

	return database.HandleMongoError(err)
}

func (r *UserRepository) FindByUsername(c context.Context, username string) (User, error) {
	return r.findOne(c, bson.M{"username": username})
}

func (r *UserRepository) FindByID(c context.Context, id string) (User, error) {
	return r.findOne(c, bson.M{"_id": id})
}

func (r *UserRepository) findOne(c context.Context, filter bson.M) (User, error) {
	log := mlog.L(c)
	start := time.Now()

	ctx, cancel := context.WithTimeout(c, r.dbTimeout)
	defer cancel()

	raw := query.GenerateFindQuery(r.collection.Name(), filter)
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: r.collection.Name(),
	}).Debug(logAction.DB_REQUEST(logAction.DB_READ, raw), filter)

	var u User
	err := r.collection.FindOne(ctx, filter).Decode(&u)
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = u
	}
	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   r.collection.Name(),
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_READ, raw), result, logger.MaskingRule{
		Field: "data.email", Type: logger.MaskingTypeEmail,
	})

	if err != nil {
		return User{}, database.HandleMongoError(err)
	}
	return u, nil
}
