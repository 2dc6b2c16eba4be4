package events

import (
	"time"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
)

const QueueName = "tracker-events"

type EventType string

const (
	EventTypeTripsConsolidated EventType = "TripsConsolidated"
	EventTypeRegistryRefreshed EventType = "RegistryRefreshed"
)

type Event struct {
	Type      EventType
	Fleet     string
	Timestamp time.Time

	Body interface{}
}

type TripsConsolidatedBody struct {
	FeedType fleetdata.FeedType
	Records  int
	Trips    int64
	Returns  int64

	TrackingStart *time.Time
	TrackingEnd   *time.Time
}

// EventsForReport lists the events a consolidation produces: one per merged feed type, plus
// one when the registry was refreshed
func EventsForReport(report fleetdata.ConsolidationReport) []Event {
	var events []Event

	for _, feed := range report.Feeds {
		if feed.Status != fleetdata.ConsolidationStatusMerged {
			continue
		}

		events = append(events, Event{
			Type:      EventTypeTripsConsolidated,
			Fleet:     report.System.Name,
			Timestamp: report.Timestamp,
			Body: TripsConsolidatedBody{
				FeedType:      feed.FeedType,
				Records:       feed.Records,
				Trips:         feed.Trips,
				Returns:       feed.Returns,
				TrackingStart: report.System.TrackingStart,
				TrackingEnd:   report.System.TrackingEnd,
			},
		})
	}

	if report.RegistryRefreshed {
		events = append(events, Event{
			Type:      EventTypeRegistryRefreshed,
			Fleet:     report.System.Name,
			Timestamp: report.Timestamp,
			Body:      report.System,
		})
	}

	return events
}
