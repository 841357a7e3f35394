package settings

import "sort"

// Layered merges three repositories in priority order: temporary admin edits
// shadow the configured file, which shadows the factory defaults. Writes land
// in the temporary layer so that nothing reaches durable storage until the
// administrator applies the pending changes.
type Layered struct {
	temporary  *MapRepository
	configured Repository
	defaults   Repository
}

// NewLayered creates a layered repository over the configured store and the
// defaults. The temporary layer starts empty.
func NewLayered(configured, defaults Repository) *Layered {
	return &Layered{
		temporary:  NewMapRepository(),
		configured: configured,
		defaults:   defaults,
	}
}

// Get returns the value from the highest-priority layer that has it.
func (l *Layered) Get(name string) any {
	if l.temporary.Has(name) {
		return l.temporary.Get(name)
	}
	if l.configured.Has(name) {
		return l.configured.Get(name)
	}
	return l.defaults.Get(name)
}

// GetString returns the merged value rendered as a string.
func (l *Layered) GetString(name string) string {
	return Render(l.Get(name))
}

// Has reports whether any layer has the setting.
func (l *Layered) Has(name string) bool {
	return l.temporary.Has(name) || l.configured.Has(name) || l.defaults.Has(name)
}

// Set stores a pending value in the temporary layer.
func (l *Layered) Set(name string, value any) {
	l.temporary.Set(name, value)
}

// Delete removes a pending value. Values in the configured or defaults layers
// are untouched; deleting a configured setting is an apply-time operation.
func (l *Layered) Delete(name string) {
	l.temporary.Delete(name)
}

// Keys returns the union of names across all layers, sorted.
func (l *Layered) Keys() []string {
	seen := make(map[string]struct{})
	for _, layer := range []Repository{l.temporary, l.configured, l.defaults} {
		for _, k := range layer.Keys() {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Pending returns the temporary layer holding unapplied admin edits.
func (l *Layered) Pending() *MapRepository {
	return l.temporary
}

// Apply copies every pending edit into the configured layer and clears the
// temporary layer. The caller is responsible for persisting the configured
// repository afterwards.
func (l *Layered) Apply() {
	for _, k := range l.temporary.Keys() {
		l.configured.Set(k, l.temporary.Get(k))
	}
	l.temporary.Clear()
}
