package elastic_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog/log"
)

const (
	ConsolidationIndexPrefix  = "tracker-consolidations"
	consolidationTemplateName = "tracker-consolidations"
	flushInterval             = 15 * time.Second
)

// ConsolidationElasticEvent is one document per fleet feed consolidation
type ConsolidationElasticEvent struct {
	Timestamp time.Time

	Fleet    string
	Timezone string
	FeedType fleetdata.FeedType

	Success    bool
	Status     fleetdata.ConsolidationStatus
	FailReason string `json:",omitempty"`

	Observations int
	Records      int
	Trips        int64
	Returns      int64

	RegistryRefreshed bool
}

// ConsolidationIndexName is the weekly index a report at t is written to
func ConsolidationIndexName(t time.Time) string {
	yearNumber, weekNumber := t.UTC().ISOWeek()

	return fmt.Sprintf("%s-%d-%d", ConsolidationIndexPrefix, yearNumber, weekNumber)
}

// ConsolidationIndexTemplate maps the weekly indexes so fleets and feed types aggregate as
// keywords
func ConsolidationIndexTemplate() ([]byte, error) {
	keyword := map[string]string{"type": "keyword"}
	long := map[string]string{"type": "long"}

	return json.Marshal(map[string]interface{}{
		"index_patterns": []string{ConsolidationIndexPrefix + "-*"},
		"template": map[string]interface{}{
			"mappings": map[string]interface{}{
				"properties": map[string]interface{}{
					"Timestamp":         map[string]string{"type": "date"},
					"Fleet":             keyword,
					"Timezone":          keyword,
					"FeedType":          keyword,
					"Success":           map[string]string{"type": "boolean"},
					"Status":            keyword,
					"FailReason":        map[string]string{"type": "text"},
					"Observations":      long,
					"Records":           long,
					"Trips":             long,
					"Returns":           long,
					"RegistryRefreshed": map[string]string{"type": "boolean"},
				},
			},
		},
	})
}

func ConsolidationEvents(report fleetdata.ConsolidationReport) []ConsolidationElasticEvent {
	events := make([]ConsolidationElasticEvent, 0, len(report.Feeds))

	for _, feed := range report.Feeds {
		events = append(events, ConsolidationElasticEvent{
			Timestamp:         report.Timestamp,
			Fleet:             report.System.Name,
			Timezone:          report.System.Timezone,
			FeedType:          feed.FeedType,
			Success:           feed.Status != fleetdata.ConsolidationStatusFailed,
			Status:            feed.Status,
			FailReason:        feed.FailReason,
			Observations:      feed.Observations,
			Records:           feed.Records,
			Trips:             feed.Trips,
			Returns:           feed.Returns,
			RegistryRefreshed: report.RegistryRefreshed,
		})
	}

	return events
}

// ConsolidationIndexer sends consolidation reports to the weekly indexes through a bulk
// indexer. Close flushes whatever is still buffered.
type ConsolidationIndexer struct {
	bulk  esutil.BulkIndexer
	index func(indexName string, document io.ReadSeeker)
}

// NewConsolidationIndexer installs the index template and starts the bulk indexer
func NewConsolidationIndexer(client *elasticsearch.Client) (*ConsolidationIndexer, error) {
	template, err := ConsolidationIndexTemplate()
	if err != nil {
		return nil, err
	}

	res, err := client.Indices.PutIndexTemplate(consolidationTemplateName, bytes.NewReader(template))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, &ResponseError{Operation: "put index template", Status: res.String()}
	}

	bulk, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		FlushInterval: flushInterval,
	})
	if err != nil {
		return nil, err
	}

	indexer := &ConsolidationIndexer{bulk: bulk}
	indexer.index = indexer.add

	return indexer, nil
}

func (c *ConsolidationIndexer) add(indexName string, document io.ReadSeeker) {
	err := c.bulk.Add(context.Background(), esutil.BulkIndexerItem{
		Index:  indexName,
		Action: "index",
		Body:   document,
		OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			if err != nil {
				log.Error().Err(err).Str("index", indexName).Msg("Failed to index consolidation")
			} else {
				log.Error().Str("type", res.Error.Type).Str("reason", res.Error.Reason).Msg("Failed to index consolidation")
			}
		},
	})
	if err != nil {
		log.Error().Err(err).Str("index", indexName).Msg("Failed to queue consolidation")
	}
}

func (c *ConsolidationIndexer) Name() string {
	return "elasticsearch"
}

func (c *ConsolidationIndexer) Consolidated(ctx context.Context, report fleetdata.ConsolidationReport) error {
	indexName := ConsolidationIndexName(report.Timestamp)

	for _, event := range ConsolidationEvents(report) {
		elasticEvent, err := json.Marshal(event)
		if err != nil {
			return err
		}

		c.index(indexName, bytes.NewReader(elasticEvent))
	}

	return nil
}

// Close flushes the pending documents
func (c *ConsolidationIndexer) Close() error {
	if c.bulk == nil {
		return nil
	}

	return c.bulk.Close(context.Background())
}
