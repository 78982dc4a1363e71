package service

import (
	"context"
	"fmt"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/logger"
	"geotrack/internal/ports"
)

// LoggingSink is the downstream consumer: it logs every sample and keeps nothing.
type LoggingSink struct {
	logger *logger.Logger
}

func NewLoggingSink(logger *logger.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

var _ ports.SampleSink = (*LoggingSink)(nil)

func (s *LoggingSink) Consume(ctx context.Context, sessionID string, batch tracking.Batch) error {
	for _, sample := range batch {
		s.logger.Info(ctx, "location_sample", fmt.Sprintf("Location: %v, %v", sample.Latitude, sample.Longitude), map[string]any{
			"timestamp": sample.Timestamp,
			"accuracy":  sample.AccuracyMeters,
		})
	}
	return nil
}
