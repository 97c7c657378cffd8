package mongo_client

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gopkg.in/mgo.v2/bson"
)

// Connect opens a client and pings the admin database.
func Connect(ctx context.Context, mongoURI string) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(mongoURI).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCmd := bson.M{"ping": 1}
	if err := client.Database("admin").RunCommand(ctx, pingCmd).Err(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	zap.L().Info("Connected to MongoDB")
	return client, nil
}
