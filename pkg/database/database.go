package database

import (
	"context"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/util"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoInstance struct {
	Client   *mongo.Client
	Database *mongo.Database
}

var MongoGlobalInstance *MongoInstance

const defaultMongoDatabase = "bikeraccoon"

// Connect opens the MongoDB connection used to mirror the system tables for the query API.
// MongoDB is optional, without BIKERACCOON_MONGODB_CONNECTION nothing is connected.
func Connect() error {
	env := util.GetEnvironmentVariables()

	connectionString := env["BIKERACCOON_MONGODB_CONNECTION"]
	if connectionString == "" {
		log.Info().Msg("Skipping MongoDB setup")
		return nil
	}

	dbName := defaultMongoDatabase
	if env["BIKERACCOON_MONGODB_DATABASE"] != "" {
		dbName = env["BIKERACCOON_MONGODB_DATABASE"]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return err
	}

	MongoGlobalInstance = &MongoInstance{
		Client:   client,
		Database: client.Database(dbName),
	}

	createIndexes()

	log.Info().Str("database", dbName).Msg("MongoDB client setup")

	return nil
}

func Enabled() bool {
	return MongoGlobalInstance != nil
}

func GetCollection(collectionName string) *mongo.Collection {
	return MongoGlobalInstance.Database.Collection(collectionName)
}
