package fleetdata

import "time"

type ConsolidationStatus string

const (
	ConsolidationStatusMerged  ConsolidationStatus = "merged"
	ConsolidationStatusSkipped ConsolidationStatus = "skipped"
	ConsolidationStatusFailed  ConsolidationStatus = "failed"
)

type FeedConsolidation struct {
	FeedType     FeedType
	Status       ConsolidationStatus
	Observations int
	Records      int
	Trips        int64
	Returns      int64
	FailReason   string `json:",omitempty"`
}

// ConsolidationReport describes one fleet's CONSOLIDATE phase and is handed to the
// configured sinks (event queue, search index, document database)
type ConsolidationReport struct {
	Timestamp time.Time

	System SystemRecord
	Feeds  []FeedConsolidation

	RegistryRefreshed bool
}
