package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/i474232898/snow-report/internal/weather"
)

const (
	DefaultClimaCellRealtimeURL = "https://api.climacell.co/v3/weather/realtime"
	DefaultClimaCellNowcastURL  = "https://api.climacell.co/v3/weather/nowcast"
	DefaultClimaCellHourlyURL   = "https://api.climacell.co/v3/weather/forecast/hourly"

	unitSystemSI    = "si"
	nowcastTimestep = "5"
)

var errNoAPIKey = errors.New("climacell api key is not configured")

// horizonFields lists the metrics requested, and required, per horizon.
var horizonFields = map[weather.Horizon][]weather.Metric{
	weather.HorizonNow: {
		weather.MetricPrecipitation, weather.MetricPrecipitationType, weather.MetricTemperature,
		weather.MetricFeelsLike, weather.MetricWindSpeed, weather.MetricWindDirection,
		weather.MetricCloudCover,
	},
	weather.Horizon6Hour: {
		weather.MetricTemperature, weather.MetricFeelsLike, weather.MetricHumidity,
		weather.MetricWindSpeed, weather.MetricWindDirection, weather.MetricPrecipitation,
		weather.MetricPrecipitationType, weather.MetricCloudCover,
	},
	weather.Horizon96Hour: {
		weather.MetricPrecipitation, weather.MetricTemperature, weather.MetricFeelsLike,
		weather.MetricHumidity, weather.MetricWindSpeed, weather.MetricWindDirection,
		weather.MetricPrecipitationType, weather.MetricCloudCover,
	},
}

// Fields returns the metrics requested for horizon.
func Fields(h weather.Horizon) []weather.Metric {
	return append([]weather.Metric(nil), horizonFields[h]...)
}

// ClimaCellConfig configures the ClimaCell v3 client.
type ClimaCellConfig struct {
	APIKey      string
	RealtimeURL string
	NowcastURL  string
	HourlyURL   string

	// RequestsPerSecond caps outbound calls. Zero disables the limiter.
	RequestsPerSecond float64
	Backoff           BackoffConfig
}

// ClimaCellProvider implements weather.Provider against the ClimaCell v3 API.
type ClimaCellProvider struct {
	name   string
	cfg    ClimaCellConfig
	client *resilientClient
	now    func() time.Time
}

// NewClimaCellProvider creates a ClimaCell client. Empty URLs fall back to the public endpoints.
func NewClimaCellProvider(client *http.Client, cfg ClimaCellConfig) *ClimaCellProvider {
	if cfg.RealtimeURL == "" {
		cfg.RealtimeURL = DefaultClimaCellRealtimeURL
	}
	if cfg.NowcastURL == "" {
		cfg.NowcastURL = DefaultClimaCellNowcastURL
	}
	if cfg.HourlyURL == "" {
		cfg.HourlyURL = DefaultClimaCellHourlyURL
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	return &ClimaCellProvider{
		name:   "climacell",
		cfg:    cfg,
		client: newResilientClient("climacell", client, cfg.Backoff, cfg.RequestsPerSecond),
		now:    time.Now,
	}
}

func (p *ClimaCellProvider) Name() string {
	return p.name
}

func (p *ClimaCellProvider) endpoint(h weather.Horizon) (string, url.Values, error) {
	values := url.Values{}
	switch h {
	case weather.HorizonNow:
		return p.cfg.RealtimeURL, values, nil
	case weather.Horizon6Hour:
		values.Set("timestep", nowcastTimestep)
		values.Set("start_time", "now")
		return p.cfg.NowcastURL, values, nil
	case weather.Horizon96Hour:
		values.Set("start_time", "now")
		return p.cfg.HourlyURL, values, nil
	default:
		return "", nil, fmt.Errorf("unsupported horizon %q", h)
	}
}

// Fetch requests one horizon for loc and decodes it into a validated series.
func (p *ClimaCellProvider) Fetch(ctx context.Context, loc weather.Location, horizon weather.Horizon) (weather.Series, error) {
	if p.cfg.APIKey == "" {
		return weather.Series{}, errNoAPIKey
	}

	base, values, err := p.endpoint(horizon)
	if err != nil {
		return weather.Series{}, err
	}
	fields := horizonFields[horizon]

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	values.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	values.Set("unit_system", unitSystemSI)
	values.Set("fields", strings.Join(names, ","))
	values.Set("apikey", p.cfg.APIKey)

	resp, err := p.client.get(ctx, base+"?"+values.Encode())
	if err != nil {
		return weather.Series{}, err
	}
	defer resp.Body.Close()

	samples, err := decodeSamples(resp.Body, horizon == weather.HorizonNow, fields)
	if err != nil {
		return weather.Series{}, err
	}

	return weather.Series{
		Location:  loc,
		Horizon:   horizon,
		FetchedAt: p.now().UTC(),
		Samples:   samples,
	}, nil
}

// decodeSamples turns a ClimaCell payload into samples. The realtime endpoint
// returns a single object, the forecast endpoints an array of them. Every
// sample must carry a parsable observation time and every requested field.
func decodeSamples(r io.Reader, single bool, fields []weather.Metric) ([]weather.Sample, error) {
	root, err := jason.NewValueFromReader(r)
	if err != nil {
		return nil, &weather.MalformedSeriesError{Index: -1, Reason: fmt.Sprintf("invalid json: %v", err)}
	}

	var items []*jason.Object
	if single {
		obj, err := root.Object()
		if err != nil {
			return nil, &weather.MalformedSeriesError{Index: -1, Reason: "expected an object"}
		}
		items = []*jason.Object{obj}
	} else {
		elems, err := root.Array()
		if err != nil {
			return nil, &weather.MalformedSeriesError{Index: -1, Reason: "expected an array of objects"}
		}
		items = make([]*jason.Object, 0, len(elems))
		for i, elem := range elems {
			obj, err := elem.Object()
			if err != nil {
				return nil, &weather.MalformedSeriesError{Index: -1, Reason: fmt.Sprintf("element %d is not an object", i)}
			}
			items = append(items, obj)
		}
	}

	samples := make([]weather.Sample, 0, len(items))
	for i, item := range items {
		s, err := decodeSample(i, item, fields)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func decodeSample(i int, item *jason.Object, fields []weather.Metric) (weather.Sample, error) {
	raw, err := item.GetString("observation_time", "value")
	if err != nil {
		return weather.Sample{}, &weather.MalformedSeriesError{Index: i, Reason: "missing observation_time"}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return weather.Sample{}, &weather.MalformedSeriesError{Index: i, Reason: fmt.Sprintf("bad observation_time %q", raw)}
	}

	present := item.Map()
	values := make(map[weather.Metric]weather.Value, len(fields))
	for _, m := range fields {
		field, ok := present[string(m)]
		if !ok {
			return weather.Sample{}, &weather.MissingMetricError{Metric: m, Time: ts}
		}
		v, err := decodeValue(field)
		if err != nil {
			return weather.Sample{}, &weather.MalformedSeriesError{Index: i, Reason: fmt.Sprintf("field %q: %v", m, err)}
		}
		values[m] = v
	}

	return weather.Sample{Time: ts, Values: values}, nil
}

// decodeValue reads a {"value": x, "units": "..."} field where x is a number,
// a string or null.
func decodeValue(field *jason.Value) (weather.Value, error) {
	obj, err := field.Object()
	if err != nil {
		return weather.Value{}, errors.New("not an object")
	}
	v, ok := obj.Map()["value"]
	if !ok {
		return weather.Value{}, errors.New("no value")
	}
	if v.Null() == nil {
		return weather.Null(), nil
	}
	if f, err := v.Float64(); err == nil {
		return weather.Number(f), nil
	}
	if s, err := v.String(); err == nil {
		return weather.Category(s), nil
	}
	return weather.Value{}, errors.New("value is neither number, string nor null")
}
