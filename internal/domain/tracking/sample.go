package tracking

import (
	"errors"
	"time"
)

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrMissingTimestamp = errors.New("sample timestamp is required")
)

// LocationSample is a single position fix delivered by the provider.
type LocationSample struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Timestamp      time.Time `json:"timestamp"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
}

// Validate checks the coordinate ranges and the timestamp of the sample.
func (sample LocationSample) Validate() error {
	if sample.Latitude < -90 || sample.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if sample.Longitude < -180 || sample.Longitude > 180 {
		return ErrInvalidLongitude
	}
	if sample.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// LocationResult is a raw delivery from the position provider. It may be nil,
// empty, or contain malformed entries.
type LocationResult struct {
	Samples []LocationSample
}

// Batch is a non-empty, provider-ordered sequence of valid samples.
type Batch []LocationSample

// BatchFromResult keeps the valid samples of a result in their delivered order.
// It reports false when nothing usable remains.
func BatchFromResult(result *LocationResult) (Batch, int, bool) {
	if result == nil || len(result.Samples) == 0 {
		return nil, 0, false
	}

	batch := make(Batch, 0, len(result.Samples))
	malformed := 0
	for _, sample := range result.Samples {
		if err := sample.Validate(); err != nil {
			malformed++
			continue
		}
		batch = append(batch, sample)
	}
	if len(batch) == 0 {
		return nil, malformed, false
	}
	return batch, malformed, true
}
