package weather

import (
	"fmt"
	"strconv"
	"time"
)

// Metric names a field carried by every sample of a series. The string values
// match the field names requested from the weather source.
type Metric string

const (
	MetricTemperature       Metric = "temp"
	MetricFeelsLike         Metric = "feels_like"
	MetricPrecipitation     Metric = "precipitation"
	MetricPrecipitationType Metric = "precipitation_type"
	MetricWindSpeed         Metric = "wind_speed"
	MetricWindDirection     Metric = "wind_direction"
	MetricCloudCover        Metric = "cloud_cover"
	MetricHumidity          Metric = "humidity"
)

// Precipitation type categories reported by the source.
const (
	PrecipitationNone = "none"
	PrecipitationSnow = "snow"
)

// Horizon identifies which of the three series a fetch produced.
type Horizon string

const (
	HorizonNow    Horizon = "now"
	Horizon6Hour  Horizon = "6hr"
	Horizon96Hour Horizon = "96hr"
)

// Location represents a monitored place for which we fetch series.
// Key is the registry key and is used to index cached series.
type Location struct {
	Key  string  `json:"key"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// CacheKey returns a canonical string key for indexing this location's series in stores.
func (l Location) CacheKey(h Horizon) string {
	return l.Key + ":" + string(h)
}

type valueKind uint8

const (
	kindNull valueKind = iota
	kindNumber
	kindCategory
)

// Value is a single metric reading: a number, a category string, or null.
type Value struct {
	kind valueKind
	num  float64
	text string
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{kind: kindNumber, num: f}
}

// Category returns a categorical Value.
func Category(s string) Value {
	return Value{kind: kindCategory, text: s}
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

func (v Value) IsNull() bool     { return v.kind == kindNull }
func (v Value) IsNumeric() bool  { return v.kind == kindNumber }
func (v Value) IsCategory() bool { return v.kind == kindCategory }

// Float returns the numeric value and whether the Value is numeric.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == kindNumber
}

// Text returns the category and whether the Value is categorical.
func (v Value) Text() (string, bool) {
	return v.text, v.kind == kindCategory
}

func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindCategory:
		return v.text
	default:
		return "null"
	}
}

// Sample is one timestamped observation carrying several metrics.
type Sample struct {
	Time   time.Time
	Values map[Metric]Value
}

// Get returns the value of m, or a *MissingMetricError.
func (s Sample) Get(m Metric) (Value, error) {
	v, ok := s.Values[m]
	if !ok {
		return Value{}, &MissingMetricError{Metric: m, Time: s.Time}
	}
	return v, nil
}

// Series is the immutable result of a single fetch. Samples keep the order in
// which the source returned them; they are not assumed to be sorted.
type Series struct {
	Location  Location  `json:"location"`
	Horizon   Horizon   `json:"horizon"`
	FetchedAt time.Time `json:"fetchedAt"` // always UTC
	Samples   []Sample  `json:"-"`
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Samples)
}

func (s Series) String() string {
	return fmt.Sprintf("%s/%s (%d samples)", s.Location.Key, s.Horizon, len(s.Samples))
}
