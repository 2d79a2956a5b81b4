package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/snow-report/internal/weather"
)

var (
	// ErrNotFound is returned when no series is cached for a location and horizon.
	ErrNotFound = errors.New("no cached series for location")
)

// SeriesHistory holds the fetched series for one location and horizon, oldest first.
type SeriesHistory struct {
	Series []weather.Series
}

// MemoryStore is a concurrency-safe in-memory cache of fetched series.
type MemoryStore struct {
	mu sync.RWMutex

	// key: Location.CacheKey(horizon)
	data map[string]*SeriesHistory

	// retention configuration
	maxHistory int           // max number of series per key
	maxAge     time.Duration // optional max age, measured on FetchedAt

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*SeriesHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveSeries appends a series and enforces retention. The latest series is
// always kept, however old it is.
func (s *MemoryStore) SaveSeries(series weather.Series) {
	key := series.Location.CacheKey(series.Horizon)

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &SeriesHistory{}
		s.data[key] = history
	}

	history.Series = append(history.Series, series)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Series) > s.maxHistory {
		over := len(history.Series) - s.maxHistory
		history.Series = history.Series[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Series); i++ {
			if !history.Series[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history.Series) {
			history.Series = history.Series[i:]
		} else if i == len(history.Series) {
			history.Series = history.Series[i-1:]
		}
	}
}

// GetLatest returns the most recently saved series.
func (s *MemoryStore) GetLatest(loc weather.Location, horizon weather.Horizon) (weather.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[loc.CacheKey(horizon)]
	if !ok || len(history.Series) == 0 {
		return weather.Series{}, ErrNotFound
	}
	return history.Series[len(history.Series)-1], nil
}

// GetRange returns every series fetched between from and to (inclusive).
func (s *MemoryStore) GetRange(loc weather.Location, horizon weather.Horizon, from, to time.Time) ([]weather.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[loc.CacheKey(horizon)]
	if !ok || len(history.Series) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Series
	for _, series := range history.Series {
		if !series.FetchedAt.Before(from) && !series.FetchedAt.After(to) {
			result = append(result, series)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Len returns the number of cached location/horizon pairs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
