package resort

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
    "lakeLouise": {"name": "Lake Louise", "country": "Canada", "lat": 51.4419, "lon": -116.1622},
    "whistler": {"name": "Whistler Blackcomb", "country": "Canada", "lat": 50.1163, "lon": -122.9574},
    "jacksonHole": {"name": "Jackson Hole", "country": "USA", "lat": 43.5875, "lon": -110.8279},
    "fernie": {"name": "Fernie Alpine Resort", "country": "Canada", "lat": 49.4627, "lon": -115.0873}
}`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skiResorts.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	reg, err := Load(writeRegistry(t, fixture))
	require.NoError(t, err)

	assert.Equal(t, 4, reg.Len())
	assert.Equal(t, []string{"lakeLouise", "whistler", "jacksonHole", "fernie"}, reg.Keys())

	res, err := reg.Lookup("fernie")
	require.NoError(t, err)
	assert.Equal(t, Resort{Key: "fernie", Name: "Fernie Alpine Resort", Country: "Canada", Lat: 49.4627, Lon: -115.0873}, res)
	assert.Equal(t, "fernie", res.Location().Key)
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{"lakeLouise": `},
		{"array", `[]`},
		{"missing name", `{"a1": {"country": "Canada", "lat": 1, "lon": 2}}`},
		{"missing country", `{"a1": {"name": "A", "lat": 1, "lon": 2}}`},
		{"missing lat", `{"a1": {"name": "A", "country": "Canada", "lon": 2}}`},
		{"missing lon", `{"a1": {"name": "A", "country": "Canada", "lat": 1}}`},
		{"lat out of range", `{"a1": {"name": "A", "country": "Canada", "lat": 91, "lon": 2}}`},
		{"record not object", `{"a1": 5}`},
		{"duplicate key", `{"a1": {"name": "A", "country": "C", "lat": 1, "lon": 2}, "a1": {"name": "B", "country": "C", "lat": 1, "lon": 2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeRegistry(t, tt.content))
			require.Error(t, err)

			var malformed *MalformedRegistryError
			assert.True(t, errors.As(err, &malformed), "got %T: %v", err, err)
		})
	}
}

func TestLoad_ZeroCoordinatesAreValid(t *testing.T) {
	reg, err := Load(writeRegistry(t, `{"nullIsland": {"name": "Null Island", "country": "Nowhere", "lat": 0, "lon": 0}}`))
	require.NoError(t, err)
	assert.True(t, reg.Has("nullIsland"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLookup_Unknown(t *testing.T) {
	reg, err := Load(writeRegistry(t, fixture))
	require.NoError(t, err)

	_, err = reg.Lookup("banff")
	assert.ErrorIs(t, err, ErrUnknownResort)
	assert.False(t, reg.Has("banff"))
}

func TestFilterByCountry(t *testing.T) {
	reg, err := Load(writeRegistry(t, fixture))
	require.NoError(t, err)

	assert.Equal(t, []string{"lakeLouise", "whistler", "fernie"}, reg.FilterByCountry("Canada"))
	assert.Equal(t, []string{"jacksonHole"}, reg.FilterByCountry("USA"))
	assert.Empty(t, reg.FilterByCountry("France"))
}

func TestResolveAndNameIndex(t *testing.T) {
	reg, err := Load(writeRegistry(t, fixture))
	require.NoError(t, err)

	group, err := reg.Resolve([]string{"whistler", "fernie"})
	require.NoError(t, err)
	require.Len(t, group, 2)
	assert.Equal(t, "Whistler Blackcomb", group[0].Name)

	_, err = reg.Resolve([]string{"whistler", "banff"})
	assert.ErrorIs(t, err, ErrUnknownResort)

	idx := reg.NameIndex()
	assert.Equal(t, "jacksonHole", idx["Jackson Hole"])
	assert.Len(t, idx, 4)
}

func TestAdd(t *testing.T) {
	path := writeRegistry(t, fixture)
	reg, err := Load(path)
	require.NoError(t, err)

	sunshine := Resort{Key: "sunshine", Name: "Sunshine Village", Country: "Canada", Lat: 51.0785, Lon: -115.7731}
	require.NoError(t, reg.Add(sunshine))

	got, err := reg.Lookup("sunshine")
	require.NoError(t, err)
	assert.Equal(t, sunshine, got)
	assert.Equal(t, "sunshine", reg.Keys()[4])

	// Persisted in order, reloadable.
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, reg.Keys(), reloaded.Keys())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))
	assert.Contains(t, string(raw), "\n    \"sunshine\": {\n        \"name\": \"Sunshine Village\"")
}

func TestAdd_Duplicate(t *testing.T) {
	path := writeRegistry(t, fixture)
	reg, err := Load(path)
	require.NoError(t, err)

	first := Resort{Key: "sunshine", Name: "Sunshine Village", Country: "Canada", Lat: 51.0785, Lon: -115.7731}
	require.NoError(t, reg.Add(first))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	second := Resort{Key: "sunshine", Name: "Somewhere Else", Country: "USA", Lat: 1, Lon: 1}
	err = reg.Add(second)
	assert.ErrorIs(t, err, ErrDuplicateResort)

	got, err := reg.Lookup("sunshine")
	require.NoError(t, err)
	assert.Equal(t, first, got)
	assert.Equal(t, 5, reg.Len())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAdd_Invalid(t *testing.T) {
	reg, err := Load(writeRegistry(t, fixture))
	require.NoError(t, err)

	assert.Error(t, reg.Add(Resort{Key: "", Name: "x", Country: "y"}))
	assert.Error(t, reg.Add(Resort{Key: "no spaces", Name: "x", Country: "y"}))
	assert.Error(t, reg.Add(Resort{Key: "ok", Country: "y"}))
	assert.Error(t, reg.Add(Resort{Key: "ok", Name: "x", Country: "y", Lat: 120}))
	assert.Equal(t, 4, reg.Len())
}

func TestAdd_ConcurrentWritersAreSerialized(t *testing.T) {
	path := writeRegistry(t, `{}`)
	reg, err := Load(path)
	require.NoError(t, err)

	keys := []string{"a1", "b2", "c3", "d4", "e5", "f6", "g7", "h8"}
	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			assert.NoError(t, reg.Add(Resort{Key: k, Name: k, Country: "Canada", Lat: 1, Lon: 1}))
		}(k)
	}
	wg.Wait()

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, keys, reloaded.Keys())
}

func TestAdd_SharedFileKeepsOtherWritersEntries(t *testing.T) {
	path := writeRegistry(t, fixture)
	first, err := Load(path)
	require.NoError(t, err)
	second, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, first.Add(Resort{Key: "sunshine", Name: "Sunshine Village", Country: "Canada", Lat: 51.0785, Lon: -115.7731}))
	require.NoError(t, second.Add(Resort{Key: "revelstoke", Name: "Revelstoke", Country: "Canada", Lat: 51.0, Lon: -118.2}))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"lakeLouise", "whistler", "jacksonHole", "fernie", "sunshine", "revelstoke"}, reloaded.Keys())
	assert.True(t, second.Has("sunshine"))

	err = first.Add(Resort{Key: "revelstoke", Name: "Elsewhere", Country: "USA", Lat: 1, Lon: 1})
	assert.ErrorIs(t, err, ErrDuplicateResort)
	assert.True(t, first.Has("revelstoke"))
}

func TestAdd_SharedFileConcurrentRegistries(t *testing.T) {
	path := writeRegistry(t, `{}`)
	regs := make([]*Registry, 4)
	for i := range regs {
		reg, err := Load(path)
		require.NoError(t, err)
		regs[i] = reg
	}

	keys := []string{"a1", "b2", "c3", "d4", "e5", "f6", "g7", "h8"}
	var wg sync.WaitGroup
	for i, k := range keys {
		wg.Add(1)
		go func(reg *Registry, k string) {
			defer wg.Done()
			assert.NoError(t, reg.Add(Resort{Key: k, Name: k, Country: "Canada", Lat: 1, Lon: 1}))
		}(regs[i%len(regs)], k)
	}
	wg.Wait()

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, keys, reloaded.Keys())
	assert.NoFileExists(t, path+".lock")
}

func TestAdd_StaleLockIsReclaimed(t *testing.T) {
	path := writeRegistry(t, `{}`)
	reg, err := Load(path)
	require.NoError(t, err)

	lock := path + ".lock"
	require.NoError(t, os.WriteFile(lock, nil, 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lock, old, old))

	require.NoError(t, reg.Add(Resort{Key: "sunshine", Name: "Sunshine Village", Country: "Canada", Lat: 1, Lon: 1}))
	assert.NoFileExists(t, lock)
}
