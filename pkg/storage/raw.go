package storage

import (
	"errors"

	"github.com/bikeraccoon/bikeraccoon/pkg/fleetdata"
)

// AppendRaw adds observations to the raw file of feedType. An unreadable existing file is
// replaced rather than failing the poll.
func (s *FleetStore) AppendRaw(feedType fleetdata.FeedType, observations []fleetdata.RawObservation) error {
	if len(observations) == 0 {
		return nil
	}

	existing := readBaseline[fleetdata.RawObservation](s, s.RawPath(feedType))

	return writeParquet(s.RawPath(feedType), append(existing, observations...))
}

// LoadRaw returns every raw observation accumulated since the last trim
func (s *FleetStore) LoadRaw(feedType fleetdata.FeedType) ([]fleetdata.RawObservation, error) {
	observations, err := readParquet[fleetdata.RawObservation](s.RawPath(feedType))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	return observations, err
}

// TrimRaw keeps only the observations sharing the most recent timestamp. It must only be
// called once the trips inferred from the file are stored.
func (s *FleetStore) TrimRaw(feedType fleetdata.FeedType) error {
	observations, err := s.LoadRaw(feedType)
	if err != nil {
		return err
	}

	latest, ok := fleetdata.LatestObservationTime(observations)
	if !ok {
		return nil
	}

	var kept []fleetdata.RawObservation
	for _, observation := range observations {
		if observation.Datetime.Equal(latest) {
			kept = append(kept, observation)
		}
	}

	return writeParquet(s.RawPath(feedType), kept)
}
