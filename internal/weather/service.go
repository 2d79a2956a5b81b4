package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/snow-report/internal/logger"
)

// Service orchestrates fetching from the provider, caching series and building
// the summaries the command layer renders.
type Service struct {
	store    Store
	provider Provider
	log      logger.Logger
	now      func() time.Time

	// cacheTTL lets forecast reads reuse a stored 96 hour series younger than it.
	cacheTTL time.Duration

	// inflight collapses concurrent refreshes of the same location and horizon.
	inflight singleflight.Group
}

// NewService creates a new Service.
func NewService(store Store, provider Provider, log logger.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		log:      log.WithField("component", "weather_service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithCacheTTL makes Tomorrow and SnowOutlook serve a stored 96 hour series
// fetched less than ttl ago instead of calling the provider. Zero always fetches.
func (s *Service) WithCacheTTL(ttl time.Duration) *Service {
	s.cacheTTL = ttl
	return s
}

// TomorrowSummary is the next-day outlook for one resort.
type TomorrowSummary struct {
	Location           Location  `json:"location"`
	Temperature        float64   `json:"temperatureC"`
	FeelsLike          float64   `json:"feelsLikeC"`
	Precipitation      float64   `json:"precipitationMm"`
	PrecipitationTypes []string  `json:"precipitationTypes"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

// SnowOutlook answers "is snow expected in the next 4 days".
type SnowOutlook struct {
	Location           Location `json:"location"`
	HasSnow            bool     `json:"hasSnow"`
	TotalPrecipitation float64  `json:"totalPrecipitationMm"`
}

// CurrentConditions is the realtime reading for one resort.
type CurrentConditions struct {
	Location          Location  `json:"location"`
	ObservedAt        time.Time `json:"observedAt"`
	Temperature       float64   `json:"temperatureC"`
	FeelsLike         float64   `json:"feelsLikeC"`
	Precipitation     float64   `json:"precipitationMm"`
	PrecipitationType string    `json:"precipitationType"`
	WindSpeed         float64   `json:"windSpeed"`
	WindDirection     float64   `json:"windDirection"`
	CloudCover        float64   `json:"cloudCover"`
}

// Refresh fetches a fresh series and caches it. The cache only changes when
// the fetch succeeds, so callers keep the previous series on failure.
func (s *Service) Refresh(ctx context.Context, loc Location, horizon Horizon) (Series, error) {
	v, err, _ := s.inflight.Do(loc.CacheKey(horizon), func() (interface{}, error) {
		return s.refresh(ctx, loc, horizon)
	})
	if err != nil {
		return Series{}, err
	}
	return v.(Series), nil
}

func (s *Service) refresh(ctx context.Context, loc Location, horizon Horizon) (Series, error) {
	if s.provider == nil {
		return Series{}, fmt.Errorf("%w: no weather provider configured", ErrServiceUnavailable)
	}

	s.log.Debugf("Refresh called for %s", loc.CacheKey(horizon))

	series, err := s.provider.Fetch(ctx, loc, horizon)
	if err != nil {
		var missing *MissingMetricError
		var malformed *MalformedSeriesError
		if errors.As(err, &missing) || errors.As(err, &malformed) {
			s.log.Errorf("provider %s returned malformed data for %s: %v", s.provider.Name(), loc.Key, err)
			return Series{}, err
		}
		s.log.Warnf("provider %s fetch failed for %s; keeping last good series if any: %v", s.provider.Name(), loc.Key, err)
		return Series{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if series.FetchedAt.IsZero() {
		series.FetchedAt = s.now()
	}
	s.store.SaveSeries(series)
	return series, nil
}

// Latest delegates to the underlying store.
func (s *Service) Latest(loc Location, horizon Horizon) (Series, error) {
	return s.store.GetLatest(loc, horizon)
}

// History delegates to the underlying store.
func (s *Service) History(loc Location, horizon Horizon, from, to time.Time) ([]Series, error) {
	return s.store.GetRange(loc, horizon, from, to)
}

// series returns a series for loc, preferring a fresh cached one for the
// 96 hour horizon. When the provider is unavailable the last stored series is
// served instead of the error.
func (s *Service) series(ctx context.Context, loc Location, horizon Horizon) (Series, error) {
	if horizon == Horizon96Hour && s.cacheTTL > 0 {
		if cached, err := s.store.GetLatest(loc, horizon); err == nil && s.now().Sub(cached.FetchedAt) < s.cacheTTL {
			return cached, nil
		}
	}

	series, err := s.Refresh(ctx, loc, horizon)
	if err == nil {
		return series, nil
	}
	if !errors.Is(err, ErrServiceUnavailable) {
		return Series{}, err
	}
	cached, cacheErr := s.store.GetLatest(loc, horizon)
	if cacheErr != nil {
		return Series{}, err
	}
	s.log.Warnf("serving %s fetched at %s: %v", loc.CacheKey(horizon), cached.FetchedAt.Format(time.RFC3339), err)
	return cached, nil
}

// Tomorrow derives the next-day aggregates from the 96 hour series.
func (s *Service) Tomorrow(ctx context.Context, loc Location) (TomorrowSummary, error) {
	series, err := s.series(ctx, loc, Horizon96Hour)
	if err != nil {
		return TomorrowSummary{}, err
	}
	return SummarizeTomorrow(series, s.now())
}

// SummarizeTomorrow derives every next-day aggregate from a 96 hour series.
func SummarizeTomorrow(series Series, now time.Time) (TomorrowSummary, error) {
	temp, err := TomorrowTemperature(series, now)
	if err != nil {
		return TomorrowSummary{}, fmt.Errorf("tomorrow temperature: %w", err)
	}
	feels, err := TomorrowFeelsLike(series, now)
	if err != nil {
		return TomorrowSummary{}, fmt.Errorf("tomorrow feels like: %w", err)
	}
	precip, err := TomorrowPrecipitation(series, now)
	if err != nil {
		return TomorrowSummary{}, fmt.Errorf("tomorrow precipitation: %w", err)
	}
	types, err := DistinctPrecipitationTypes(series, now)
	if err != nil {
		return TomorrowSummary{}, fmt.Errorf("tomorrow precipitation types: %w", err)
	}

	return TomorrowSummary{
		Location:           series.Location,
		Temperature:        temp,
		FeelsLike:          feels,
		Precipitation:      precip,
		PrecipitationTypes: types,
		GeneratedAt:        now.UTC(),
	}, nil
}

// SnowOutlook checks the 96 hour series for snow.
func (s *Service) SnowOutlook(ctx context.Context, loc Location) (SnowOutlook, error) {
	series, err := s.series(ctx, loc, Horizon96Hour)
	if err != nil {
		return SnowOutlook{}, err
	}

	snow, err := HasSnow(series)
	if err != nil {
		return SnowOutlook{}, err
	}
	total, err := TotalPrecipitation(series)
	if err != nil {
		return SnowOutlook{}, err
	}

	return SnowOutlook{
		Location:           loc,
		HasSnow:            snow,
		TotalPrecipitation: total,
	}, nil
}

// Current fetches the realtime sample.
func (s *Service) Current(ctx context.Context, loc Location) (CurrentConditions, error) {
	series, err := s.series(ctx, loc, HorizonNow)
	if err != nil {
		return CurrentConditions{}, err
	}
	if series.Len() == 0 {
		return CurrentConditions{}, ErrEmptySeries
	}
	sample := series.Samples[len(series.Samples)-1]

	cur := CurrentConditions{Location: loc, ObservedAt: sample.Time.UTC()}
	numbers := []struct {
		metric Metric
		dst    *float64
	}{
		{MetricTemperature, &cur.Temperature},
		{MetricFeelsLike, &cur.FeelsLike},
		{MetricPrecipitation, &cur.Precipitation},
		{MetricWindSpeed, &cur.WindSpeed},
		{MetricWindDirection, &cur.WindDirection},
		{MetricCloudCover, &cur.CloudCover},
	}
	for _, n := range numbers {
		v, err := sample.Get(n.metric)
		if err != nil {
			return CurrentConditions{}, err
		}
		// Null readings render as zero.
		if f, ok := v.Float(); ok {
			*n.dst = f
		}
	}

	pt, err := sample.Get(MetricPrecipitationType)
	if err != nil {
		return CurrentConditions{}, err
	}
	cur.PrecipitationType = pt.String()
	return cur, nil
}

// Prefetch refreshes the 96 hour series for every location concurrently.
// Failures are logged and skipped; the number of successful refreshes is returned.
func (s *Service) Prefetch(ctx context.Context, locs []Location) int {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)

	for _, loc := range locs {
		wg.Add(1)
		go func(loc Location) {
			defer wg.Done()

			if _, err := s.Refresh(ctx, loc, Horizon96Hour); err != nil {
				s.log.Warnf("prefetch failed for %s: %v", loc.Key, err)
				return
			}

			mu.Lock()
			ok++
			mu.Unlock()
		}(loc)
	}

	wg.Wait()
	return ok
}
