package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/snow-report/internal/weather"
)

var fernie = weather.Location{Key: "fernie", Name: "Fernie Alpine Resort", Lat: 49.4627, Lon: -115.0873}

func seriesAt(h weather.Horizon, at time.Time) weather.Series {
	return weather.Series{Location: fernie, Horizon: h, FetchedAt: at}
}

func TestMemoryStore_LatestPerHorizon(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Date(2021, 1, 17, 9, 0, 0, 0, time.UTC)

	s.SaveSeries(seriesAt(weather.Horizon96Hour, base))
	s.SaveSeries(seriesAt(weather.Horizon96Hour, base.Add(time.Minute)))
	s.SaveSeries(seriesAt(weather.HorizonNow, base.Add(2*time.Minute)))

	got, err := s.GetLatest(fernie, weather.Horizon96Hour)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute), got.FetchedAt)

	got, err = s.GetLatest(fernie, weather.HorizonNow)
	require.NoError(t, err)
	assert.Equal(t, weather.HorizonNow, got.Horizon)

	_, err = s.GetLatest(fernie, weather.Horizon6Hour)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_RetentionByCount(t *testing.T) {
	s := NewMemoryStore(2, 0)
	base := time.Date(2021, 1, 17, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.SaveSeries(seriesAt(weather.Horizon96Hour, base.Add(time.Duration(i)*time.Minute)))
	}

	all, err := s.GetRange(fernie, weather.Horizon96Hour, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, base.Add(3*time.Minute), all[0].FetchedAt)
}

func TestMemoryStore_RetentionByAgeKeepsLatest(t *testing.T) {
	now := time.Date(2021, 1, 17, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(0, time.Hour)
	s.now = func() time.Time { return now }

	s.SaveSeries(seriesAt(weather.Horizon96Hour, now.Add(-3*time.Hour)))
	s.SaveSeries(seriesAt(weather.Horizon96Hour, now.Add(-2*time.Hour)))

	got, err := s.GetLatest(fernie, weather.Horizon96Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-2*time.Hour), got.FetchedAt)

	s.SaveSeries(seriesAt(weather.Horizon96Hour, now.Add(-10*time.Minute)))
	all, err := s.GetRange(fernie, weather.Horizon96Hour, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, now.Add(-10*time.Minute), all[0].FetchedAt)
}

func TestMemoryStore_GetRange(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Date(2021, 1, 17, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		s.SaveSeries(seriesAt(weather.Horizon96Hour, base.Add(time.Duration(i)*time.Hour)))
	}

	got, err := s.GetRange(fernie, weather.Horizon96Hour, base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = s.GetRange(fernie, weather.Horizon96Hour, base.Add(10*time.Hour), base.Add(11*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetRange(fernie, weather.HorizonNow, base, base.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}
