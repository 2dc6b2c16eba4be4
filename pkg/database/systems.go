package database

import (
	"context"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SystemsMirror keeps the systems collection in line with each fleet's system table and
// records every consolidation report
type SystemsMirror struct{}

func (m SystemsMirror) Name() string {
	return "mongodb"
}

func (m SystemsMirror) Consolidated(ctx context.Context, report fleetdata.ConsolidationReport) error {
	systemsCollection := GetCollection(SystemsCollection)

	_, err := systemsCollection.UpdateOne(
		ctx,
		bson.M{"name": report.System.Name},
		bson.M{"$set": report.System},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}

	_, err = GetCollection(ConsolidationsCollection).InsertOne(ctx, consolidationDocument(report))

	return err
}

func consolidationDocument(report fleetdata.ConsolidationReport) bson.M {
	feeds := bson.A{}
	for _, feed := range report.Feeds {
		feeds = append(feeds, bson.M{
			"feedtype":     string(feed.FeedType),
			"status":       string(feed.Status),
			"observations": feed.Observations,
			"records":      feed.Records,
			"trips":        feed.Trips,
			"returns":      feed.Returns,
			"failreason":   feed.FailReason,
		})
	}

	return bson.M{
		"timestamp":         report.Timestamp,
		"system":            report.System,
		"feeds":             feeds,
		"registryrefreshed": report.RegistryRefreshed,
	}
}
