package mongo

import (
	"context"
	"time"

	"course-forum-backend/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	postsCollection       = "posts"
	repliesCollection     = "replies"
	usersCollection       = "users"
	coursesCollection     = "courses"
	enrollmentsCollection = "enrollments"
)

// Connect dials MongoDB, pings it and returns the named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	util.Logger.Info("connected to MongoDB", zap.String("database", database))
	return client, client.Database(database), nil
}

// Disconnect closes the client, waiting at most ten seconds.
func Disconnect(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return err
	}
	util.Logger.Info("disconnected from MongoDB")
	return nil
}

// EnsureIndexes creates the indexes the forum queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		postsCollection: {
			{Keys: bson.D{{Key: "course_id", Value: 1}, {Key: "is_pinned", Value: -1}, {Key: "created_at", Value: -1}}},
		},
		repliesCollection: {
			{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		enrollmentsCollection: {
			{Keys: bson.D{{Key: "course_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			util.Logger.Error("failed to create indexes", zap.String("collection", name), zap.Error(err))
			return err
		}
	}
	return nil
}
