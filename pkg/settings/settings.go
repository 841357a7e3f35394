package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Repository provides typed access to named settings. Values are stored as
// loosely typed data because they may originate from hand-edited files,
// environment variables, or the admin API.
type Repository interface {
	// Get returns the raw value for a setting, or nil when absent.
	Get(name string) any

	// GetString returns the value rendered as a string, or "" when absent.
	GetString(name string) string

	// Has reports whether the setting is present.
	Has(name string) bool

	// Set stores a value under the given name.
	Set(name string, value any)

	// Delete removes a setting if present.
	Delete(name string)

	// Keys returns the names of all present settings.
	Keys() []string
}

// MapRepository is an in-memory Repository backed by a map. Safe for
// concurrent use.
type MapRepository struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMapRepository creates an empty in-memory repository.
func NewMapRepository() *MapRepository {
	return &MapRepository{values: make(map[string]any)}
}

// NewMapRepositoryFrom creates an in-memory repository seeded with the given
// values. The map is copied.
func NewMapRepositoryFrom(values map[string]any) *MapRepository {
	r := NewMapRepository()
	for k, v := range values {
		r.values[k] = v
	}
	return r
}

// Get returns the raw value for a setting, or nil when absent.
func (r *MapRepository) Get(name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[name]
}

// GetString returns the value rendered as a string, or "" when absent.
func (r *MapRepository) GetString(name string) string {
	return Render(r.Get(name))
}

// Has reports whether the setting is present.
func (r *MapRepository) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.values[name]
	return ok
}

// Set stores a value under the given name.
func (r *MapRepository) Set(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = value
}

// Delete removes a setting if present.
func (r *MapRepository) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, name)
}

// Keys returns the names of all present settings in sorted order.
func (r *MapRepository) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every setting from the repository.
func (r *MapRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = make(map[string]any)
}

// Render converts a raw setting value to its string form. Nil renders as the
// empty string.
func Render(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		// yaml and json decode numbers as float64
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Truth coerces a loosely typed setting value to a boolean. An actual boolean
// passes through unchanged; absent, nil, or the case-insensitive literal
// "false" yield false; every other value yields true. An empty string is a
// present value that is not "false", so it yields true.
func Truth(value any) bool {
	if b, ok := value.(bool); ok {
		return b
	}
	if value == nil {
		return false
	}
	return strings.ToLower(Render(value)) != "false"
}

// Seconds interprets a setting value as a duration in whole seconds, falling
// back to the given default when the value is absent or malformed.
func Seconds(value any, fallback time.Duration) time.Duration {
	if value == nil {
		return fallback
	}
	secs, err := strconv.Atoi(Render(value))
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
