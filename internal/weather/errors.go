package weather

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptySeries is returned when an aggregate is requested over zero samples.
	ErrEmptySeries = errors.New("no samples available for aggregation")

	// ErrNonNumeric is returned when a numeric aggregate meets a categorical or null value.
	ErrNonNumeric = errors.New("metric value is not numeric")

	// ErrServiceUnavailable wraps any failure of the upstream weather source.
	ErrServiceUnavailable = errors.New("weather service unavailable")
)

// MissingMetricError reports a sample that lacks a requested metric.
type MissingMetricError struct {
	Metric Metric
	Time   time.Time
}

func (e *MissingMetricError) Error() string {
	if e.Time.IsZero() {
		return fmt.Sprintf("sample is missing metric %q", e.Metric)
	}
	return fmt.Sprintf("sample at %s is missing metric %q", e.Time.Format(time.RFC3339), e.Metric)
}

// MalformedSeriesError reports an upstream payload that could not be turned into a series.
// Index is the offending sample, or -1 when the payload as a whole is unusable.
type MalformedSeriesError struct {
	Index  int
	Reason string
}

func (e *MalformedSeriesError) Error() string {
	if e.Index < 0 {
		return "malformed series: " + e.Reason
	}
	return fmt.Sprintf("malformed sample %d: %s", e.Index, e.Reason)
}
