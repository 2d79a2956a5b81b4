package weather

import (
	"sort"
	"time"
)

// TomorrowWindow is the span after "now" that the tomorrow aggregates cover.
const TomorrowWindow = 24 * time.Hour

// Point is one entry of an extracted metric.
type Point struct {
	Time  time.Time
	Value Value
}

// Points is a metric extracted from a series: unique timestamps, sorted ascending.
type Points []Point

// Values returns the values in timestamp order.
func (p Points) Values() []Value {
	out := make([]Value, len(p))
	for i, pt := range p {
		out[i] = pt.Value
	}
	return out
}

// Map returns the timestamp to value mapping. Keys are UTC.
func (p Points) Map() map[time.Time]Value {
	out := make(map[time.Time]Value, len(p))
	for _, pt := range p {
		out[pt.Time] = pt.Value
	}
	return out
}

// Before returns the points strictly earlier than cutoff.
func (p Points) Before(cutoff time.Time) Points {
	out := make(Points, 0, len(p))
	for _, pt := range p {
		if pt.Time.Before(cutoff) {
			out = append(out, pt)
		}
	}
	return out
}

// ExtractMetric maps every sample's timestamp to its value for m.
//
// Samples sharing a timestamp collapse to one point and the sample that comes
// later in series order wins. The result is sorted by time so aggregates
// accumulate in a reproducible order.
func ExtractMetric(s Series, m Metric) (Points, error) {
	byTime := make(map[time.Time]Value, len(s.Samples))
	for _, sample := range s.Samples {
		v, err := sample.Get(m)
		if err != nil {
			return nil, err
		}
		byTime[sample.Time.UTC()] = v
	}

	points := make(Points, 0, len(byTime))
	for ts, v := range byTime {
		points = append(points, Point{Time: ts, Value: v})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	return points, nil
}

// Aggregator reduces the values of a window to a single result.
type Aggregator[T any] func(values []Value) (T, error)

// Mean averages numeric values. Used for temperature and feels-like.
func Mean(values []Value) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySeries
	}
	sum, err := Sum(values)
	if err != nil {
		return 0, err
	}
	return sum / float64(len(values)), nil
}

// Sum adds numeric values, zeros included. Used for precipitation amount.
func Sum(values []Value) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySeries
	}
	var sum float64
	for _, v := range values {
		f, ok := v.Float()
		if !ok {
			return 0, ErrNonNumeric
		}
		sum += f
	}
	return sum, nil
}

// DistinctNonNull returns each distinct non-null value once, in first-seen order.
// Used for precipitation type.
func DistinctNonNull(values []Value) ([]string, error) {
	if len(values) == 0 {
		return nil, ErrEmptySeries
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		s := v.String()
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// TomorrowAggregate applies agg to the values of m whose timestamp is strictly
// before now+24h.
//
// There is no lower bound: samples dated before now still count. Forecast
// feeds start at the fetch time so this only matters for stale series, and the
// window is kept as "anything not yet 24h out".
func TomorrowAggregate[T any](s Series, m Metric, now time.Time, agg Aggregator[T]) (T, error) {
	var zero T

	points, err := ExtractMetric(s, m)
	if err != nil {
		return zero, err
	}

	window := points.Before(now.UTC().Add(TomorrowWindow))
	if len(window) == 0 {
		return zero, ErrEmptySeries
	}
	return agg(window.Values())
}

// TomorrowTemperature is the mean temperature over the tomorrow window.
func TomorrowTemperature(s Series, now time.Time) (float64, error) {
	return TomorrowAggregate(s, MetricTemperature, now, Mean)
}

// TomorrowFeelsLike is the mean feels-like temperature over the tomorrow window.
func TomorrowFeelsLike(s Series, now time.Time) (float64, error) {
	return TomorrowAggregate(s, MetricFeelsLike, now, Mean)
}

// TomorrowPrecipitation is the precipitation total over the tomorrow window.
func TomorrowPrecipitation(s Series, now time.Time) (float64, error) {
	return TomorrowAggregate(s, MetricPrecipitation, now, Sum)
}

// DistinctPrecipitationTypes returns tomorrow's precipitation types without the
// "none" sentinel. A window that never reports "none" is returned as is.
func DistinctPrecipitationTypes(s Series, now time.Time) ([]string, error) {
	types, err := TomorrowAggregate(s, MetricPrecipitationType, now, DistinctNonNull)
	if err != nil {
		return nil, err
	}
	out := types[:0]
	for _, t := range types {
		if t != PrecipitationNone {
			out = append(out, t)
		}
	}
	return out, nil
}

// TotalPrecipitation sums precipitation across the whole series. Samples
// sharing a timestamp count once, with the later sample's value, as in
// ExtractMetric.
func TotalPrecipitation(s Series) (float64, error) {
	points, err := ExtractMetric(s, MetricPrecipitation)
	if err != nil {
		return 0, err
	}
	return Sum(points.Values())
}

// HasSnow reports whether any sample in the series forecasts snow.
func HasSnow(s Series) (bool, error) {
	points, err := ExtractMetric(s, MetricPrecipitationType)
	if err != nil {
		return false, err
	}
	for _, pt := range points {
		if t, ok := pt.Value.Text(); ok && t == PrecipitationSnow {
			return true, nil
		}
	}
	return false, nil
}
