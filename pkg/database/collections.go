package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SystemsCollection        = "systems"
	ConsolidationsCollection = "consolidations"
)

func createIndexes() {
	createSystemsIndexes()
	createConsolidationsIndexes()
}

func createSystemsIndexes() {
	systemsCollection := GetCollection(SystemsCollection)
	systemsIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tracking", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := systemsCollection.Indexes().CreateMany(context.Background(), systemsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createConsolidationsIndexes() {
	consolidationsCollection := GetCollection(ConsolidationsCollection)
	consolidationsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "system.name", Value: 1}, {Key: "timestamp", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 60 * 60),
		},
	}

	opts := options.CreateIndexes()
	_, err := consolidationsCollection.Indexes().CreateMany(context.Background(), consolidationsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
