package elastic_client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidationIndexer(t *testing.T) {
	type indexed struct {
		index    string
		document ConsolidationElasticEvent
	}
	var documents []indexed

	indexer := &ConsolidationIndexer{index: func(indexName string, document io.ReadSeeker) {
		var event ConsolidationElasticEvent
		require.NoError(t, json.NewDecoder(document).Decode(&event))
		documents = append(documents, indexed{index: indexName, document: event})
	}}

	report := fleetdata.ConsolidationReport{
		Timestamp: time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC),
		System:    fleetdata.SystemRecord{Name: "mobi", Timezone: "America/Vancouver"},
		Feeds: []fleetdata.FeedConsolidation{
			{FeedType: fleetdata.FeedTypeStation, Status: fleetdata.ConsolidationStatusMerged, Records: 4, Trips: 3, Returns: 2},
			{FeedType: fleetdata.FeedTypeFreeBike, Status: fleetdata.ConsolidationStatusFailed, FailReason: "disk full"},
		},
	}

	require.NoError(t, indexer.Consolidated(context.Background(), report))
	require.Len(t, documents, 2)

	assert.Equal(t, "tracker-consolidations-2024-20", documents[0].index)
	assert.Equal(t, "mobi", documents[0].document.Fleet)
	assert.True(t, documents[0].document.Success)
	assert.Equal(t, int64(3), documents[0].document.Trips)

	assert.False(t, documents[1].document.Success)
	assert.Equal(t, "disk full", documents[1].document.FailReason)
}

func TestConsolidationIndexTemplate(t *testing.T) {
	template, err := ConsolidationIndexTemplate()
	require.NoError(t, err)

	var decoded struct {
		IndexPatterns []string `json:"index_patterns"`
		Template      struct {
			Mappings struct {
				Properties map[string]struct {
					Type string `json:"type"`
				} `json:"properties"`
			} `json:"mappings"`
		} `json:"template"`
	}
	require.NoError(t, json.Unmarshal(template, &decoded))

	assert.Equal(t, []string{"tracker-consolidations-*"}, decoded.IndexPatterns)
	assert.Equal(t, "keyword", decoded.Template.Mappings.Properties["Fleet"].Type)
	assert.Equal(t, "date", decoded.Template.Mappings.Properties["Timestamp"].Type)
	assert.Equal(t, "long", decoded.Template.Mappings.Properties["Trips"].Type)
}

type fakeElasticsearch struct {
	mu       sync.Mutex
	requests []string
	bulk     []string
}

func (f *fakeElasticsearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.URL.Path == "/_bulk" {
		f.bulk = append(f.bulk, string(body))
	}
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/":
		w.Write([]byte(`{"version":{"number":"8.19.0"},"tagline":"You Know, for Search"}`))
	case "/_bulk":
		w.Write([]byte(`{"took":1,"errors":false,"items":[{"index":{"_index":"tracker-consolidations-2024-20","status":201}}]}`))
	default:
		w.Write([]byte(`{"acknowledged":true}`))
	}
}

func TestConnectSkippedWithoutAddress(t *testing.T) {
	t.Setenv("BIKERACCOON_ELASTICSEARCH_ADDRESS", "")

	client, err := Connect()
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestIndexerAgainstServer(t *testing.T) {
	fake := &fakeElasticsearch{}
	server := httptest.NewServer(fake)
	defer server.Close()

	t.Setenv("BIKERACCOON_ELASTICSEARCH_ADDRESS", server.URL)

	client, err := Connect()
	require.NoError(t, err)
	require.NotNil(t, client)

	indexer, err := NewConsolidationIndexer(client)
	require.NoError(t, err)

	report := fleetdata.ConsolidationReport{
		Timestamp: time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC),
		System:    fleetdata.SystemRecord{Name: "mobi"},
		Feeds: []fleetdata.FeedConsolidation{
			{FeedType: fleetdata.FeedTypeStation, Status: fleetdata.ConsolidationStatusMerged, Trips: 3},
		},
	}
	require.NoError(t, indexer.Consolidated(context.Background(), report))
	require.NoError(t, indexer.Close())

	fake.mu.Lock()
	defer fake.mu.Unlock()

	assert.Contains(t, fake.requests, "PUT /_index_template/tracker-consolidations")
	require.Len(t, fake.bulk, 1)
	assert.True(t, strings.Contains(fake.bulk[0], "tracker-consolidations-2024-20"))
	assert.True(t, strings.Contains(fake.bulk[0], `"Fleet":"mobi"`))
}
