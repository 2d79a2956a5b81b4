// Package resort holds the catalog of monitored ski resorts, backed by a flat
// JSON file keyed by resort key.
package resort

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/snow-report/internal/weather"
)

var (
	// ErrUnknownResort is returned when a key is not in the registry.
	ErrUnknownResort = errors.New("unknown resort")

	// ErrDuplicateResort is returned when adding a key that already exists.
	ErrDuplicateResort = errors.New("resort already exists")
)

var validate = validator.New()

// MalformedRegistryError reports a backing store that violates the schema.
type MalformedRegistryError struct {
	Key    string
	Reason string
}

func (e *MalformedRegistryError) Error() string {
	if e.Key == "" {
		return "malformed resort registry: " + e.Reason
	}
	return fmt.Sprintf("malformed resort registry entry %q: %s", e.Key, e.Reason)
}

// Resort is an immutable monitored location.
type Resort struct {
	Key     string  `json:"-" validate:"required,alphanum"`
	Name    string  `json:"name" validate:"required"`
	Country string  `json:"country" validate:"required"`
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Location converts the resort into the forecast engine's location.
func (r Resort) Location() weather.Location {
	return weather.Location{Key: r.Key, Name: r.Name, Lat: r.Lat, Lon: r.Lon}
}

// record is the on-disk shape. Pointers tell a missing coordinate from zero.
type record struct {
	Name    string   `json:"name" validate:"required"`
	Country string   `json:"country" validate:"required"`
	Lat     *float64 `json:"lat" validate:"required"`
	Lon     *float64 `json:"lon" validate:"required"`
}

// Registry is the keyed catalog. Readers share an RWMutex; Add is serialized
// so the read-modify-write of the backing file never races another Add.
type Registry struct {
	path string

	writeMu sync.Mutex

	mu    sync.RWMutex
	order []string
	byKey map[string]Resort
}

// Load reads the registry stored at path.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open resort registry: %w", err)
	}
	defer f.Close()

	order, byKey, err := decode(f)
	if err != nil {
		return nil, err
	}

	return &Registry{
		path:  path,
		order: order,
		byKey: byKey,
	}, nil
}

// decode parses a JSON object of resort records, keeping the file's key order.
func decode(r io.Reader) ([]string, map[string]Resort, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, &MalformedRegistryError{Reason: err.Error()}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, &MalformedRegistryError{Reason: "top level must be an object"}
	}

	var order []string
	byKey := make(map[string]Resort)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, &MalformedRegistryError{Reason: err.Error()}
		}
		key := tok.(string)

		var rec record
		if err := dec.Decode(&rec); err != nil {
			return nil, nil, &MalformedRegistryError{Key: key, Reason: err.Error()}
		}
		if err := validate.Struct(rec); err != nil {
			return nil, nil, &MalformedRegistryError{Key: key, Reason: err.Error()}
		}

		res := Resort{Key: key, Name: rec.Name, Country: rec.Country, Lat: *rec.Lat, Lon: *rec.Lon}
		if err := validate.Struct(res); err != nil {
			return nil, nil, &MalformedRegistryError{Key: key, Reason: err.Error()}
		}
		if _, dup := byKey[key]; dup {
			return nil, nil, &MalformedRegistryError{Key: key, Reason: "duplicate key"}
		}

		order = append(order, key)
		byKey[key] = res
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, &MalformedRegistryError{Reason: err.Error()}
	}
	return order, byKey, nil
}

// Lookup returns the resort stored under key.
func (r *Registry) Lookup(key string) (Resort, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byKey[key]
	if !ok {
		return Resort{}, fmt.Errorf("%w: %q", ErrUnknownResort, key)
	}
	return res, nil
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byKey[key]
	return ok
}

// FilterByCountry returns the keys of resorts in country, in registry order.
func (r *Registry) FilterByCountry(country string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0)
	for _, k := range r.order {
		if r.byKey[k].Country == country {
			keys = append(keys, k)
		}
	}
	return keys
}

// Resolve looks up every key, e.g. a configured group such as the starred resorts.
func (r *Registry) Resolve(keys []string) ([]Resort, error) {
	out := make([]Resort, 0, len(keys))
	for _, k := range keys {
		res, err := r.Lookup(k)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Keys returns every key in registry order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// All returns every resort in registry order.
func (r *Registry) All() []Resort {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Resort, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKey[k])
	}
	return out
}

// NameIndex maps display names to keys, as listed by the resorts command.
func (r *Registry) NameIndex() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.order))
	for _, k := range r.order {
		out[r.byKey[k].Name] = k
	}
	return out
}

// Len returns the number of resorts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Add appends res and persists the registry. The backing file is re-read under
// a lock file first, so entries written by another process since Load are kept
// and a key added elsewhere is reported as a duplicate. The new entry only
// becomes visible once the file has been replaced; on any error the registry
// is unchanged.
func (r *Registry) Add(res Resort) error {
	if err := validate.Struct(res); err != nil {
		return fmt.Errorf("invalid resort: %w", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	unlock, err := lockFile(r.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	order, byKey, err := r.reload()
	if err != nil {
		return err
	}
	if _, exists := byKey[res.Key]; exists {
		r.publish(order, byKey)
		return fmt.Errorf("%w: %q", ErrDuplicateResort, res.Key)
	}
	order = append(order, res.Key)
	byKey[res.Key] = res

	if err := persist(r.path, order, byKey); err != nil {
		return err
	}
	r.publish(order, byKey)
	return nil
}

// reload decodes the current backing file, merging in any entry only held in
// memory. A missing file starts from the in-memory state.
func (r *Registry) reload() ([]string, map[string]Resort, error) {
	var (
		order []string
		byKey map[string]Resort
	)
	f, err := os.Open(r.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		byKey = make(map[string]Resort)
	case err != nil:
		return nil, nil, fmt.Errorf("failed to open resort registry: %w", err)
	default:
		order, byKey, err = decode(f)
		f.Close()
		if err != nil {
			return nil, nil, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.order {
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
			byKey[k] = r.byKey[k]
		}
	}
	return order, byKey, nil
}

func (r *Registry) publish(order []string, byKey map[string]Resort) {
	r.mu.Lock()
	r.order = order
	r.byKey = byKey
	r.mu.Unlock()
}

const (
	lockRetryInterval = 20 * time.Millisecond
	lockTimeout       = 5 * time.Second
	// staleLockAge frees a lock left behind by a crashed writer.
	staleLockAge = 30 * time.Second
)

// lockFile creates path exclusively, waiting for another holder to release it.
func lockFile(path string) (func(), error) {
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to lock resort registry: %w", err)
		}
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			os.Remove(path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("failed to lock resort registry: %s is held", path)
		}
		time.Sleep(lockRetryInterval)
	}
}

// persist writes the registry next to path and renames it into place.
func persist(path string, order []string, byKey map[string]Resort) error {
	data, err := encode(order, byKey)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary registry file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close registry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}

// encode renders the registry as a 4-space indented object in key order.
func encode(order []string, byKey map[string]Resort) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(byKey[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "    "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
