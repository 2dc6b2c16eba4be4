package fleetdata

import "fmt"

type FeedType string

const (
	FeedTypeStation  FeedType = "station"
	FeedTypeFreeBike FeedType = "free_bike"
)

var FeedTypes = []FeedType{FeedTypeStation, FeedTypeFreeBike}

func ParseFeedType(s string) (FeedType, error) {
	switch FeedType(s) {
	case FeedTypeStation, FeedTypeFreeBike:
		return FeedType(s), nil
	default:
		return "", fmt.Errorf("unknown feed type %q", s)
	}
}

type Granularity string

const (
	GranularityHourly Granularity = "hourly"
	GranularityDaily  Granularity = "daily"
)

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityHourly, GranularityDaily:
		return Granularity(s), nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}
