package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const HourRecordsCollectionName = "HourRecords"

var (
	client     *mongo.Client
	once       sync.Once
	connectErr error

	HourRecordCollection *mongo.Collection
)

// ConnectMongoDB connects once and binds the collections of dbName.
func ConnectMongoDB(ctx context.Context, uri, dbName string) error {
	if uri == "" {
		return fmt.Errorf("MONGO_URI environment variable not set")
	}

	once.Do(func() {
		client, connectErr = mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if connectErr != nil {
			connectErr = fmt.Errorf("failed to connect to MongoDB: %w", connectErr)
			return
		}

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if connectErr = client.Ping(pingCtx, readpref.Primary()); connectErr != nil {
			connectErr = fmt.Errorf("MongoDB ping failed: %w", connectErr)
			return
		}

		HourRecordCollection = GetCollection(dbName, HourRecordsCollectionName)
		connectErr = ensureIndexes(ctx, HourRecordCollection)
		zap.L().Info("MongoDB connected", zap.String("database", dbName))
	})

	return connectErr
}

func ensureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "startTime", Value: -1}}},
		{Keys: bson.D{{Key: "endTime", Value: 1}, {Key: "startTime", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create hour record indexes: %w", err)
	}
	return nil
}

// GetCollection returns a collection of the connected client.
func GetCollection(dbName, collectionName string) *mongo.Collection {
	if client == nil {
		zap.L().Fatal("MongoDB client is nil")
	}
	return client.Database(dbName).Collection(collectionName)
}

func DisconnectMongoDB(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
