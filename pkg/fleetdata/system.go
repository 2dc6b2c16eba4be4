package fleetdata

import "time"

// SystemRecord is the per fleet system table row consumed by the query layer. Nil times mean
// the value is not known yet.
type SystemRecord struct {
	Name           string     `json:"name" bson:"name"`
	DisplayName    string     `json:"display_name" bson:"displayname"`
	URL            string     `json:"url" bson:"url"`
	Timezone       string     `json:"tz" bson:"tz"`
	Tracking       bool       `json:"tracking" bson:"tracking"`
	TrackStations  bool       `json:"track_stations" bson:"trackstations"`
	TrackFreeBikes bool       `json:"track_free_bikes" bson:"trackfreebikes"`
	TrackingStart  *time.Time `json:"tracking_start" bson:"trackingstart"`
	TrackingEnd    *time.Time `json:"tracking_end" bson:"trackingend"`
	LastPoll       *time.Time `json:"last_poll" bson:"lastpoll"`
}
