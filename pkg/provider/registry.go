package provider

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/authbridge/authbridge/pkg/observability"
	"github.com/authbridge/authbridge/pkg/settings"
)

// Registry is the authoritative view of configured identity providers. It
// materializes the AUTH_PROVIDERS setting into normalized entries and writes
// administrative changes back in anonymized form.
type Registry struct {
	mu       sync.Mutex
	settings settings.Repository
	logger   *observability.Logger
}

// NewRegistry creates a registry over the given settings repository.
func NewRegistry(repo settings.Repository, logger *observability.Logger) *Registry {
	return &Registry{settings: repo, logger: logger}
}

// Providers returns the normalized provider list. The list is rebuilt from
// settings on every call so that applied configuration changes are visible
// immediately.
func (r *Registry) Providers() ([]Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Find returns the provider with the given identifier, or ErrUnknownProvider.
func (r *Registry) Find(id string) (Provider, error) {
	providers, err := r.Providers()
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
}

// Default returns the provider to use when a login request does not name
// one. With a single provider configured that provider wins; otherwise the
// caller must present a choice.
func (r *Registry) Default() (Provider, error) {
	providers, err := r.Providers()
	if err != nil {
		return nil, err
	}
	if len(providers) == 1 {
		return providers[0], nil
	}
	return nil, fmt.Errorf("%w: no single default", ErrUnknownProvider)
}

// fieldNewEntry marks the entry being created while the merged list is
// renumbered. It is removed before persistence and never leaves Add.
const fieldNewEntry = "newEntry"

// Add validates and stores a new provider, returning its assigned
// identifier. The merged list is renumbered from scratch, the same
// assignment a reload of the persisted form produces, so the returned
// identifier is the one the entry will carry from now on. Legacy entries
// keep their protocol-named identifier.
func (r *Registry) Add(p Provider) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := Validate(p); err != nil {
		return "", err
	}
	current, err := r.load()
	if err != nil {
		return "", err
	}
	merged := make([]Provider, 0, len(current)+1)
	for _, existing := range current {
		clone := existing.Clone()
		if !clone.IsLegacy() {
			delete(clone, FieldID)
		}
		merged = append(merged, clone)
	}
	entry := p.Clone()
	delete(entry, FieldID)
	entry[fieldNewEntry] = true
	merged = append(merged, entry)

	normalized, err := Normalize(merged)
	if err != nil {
		return "", err
	}
	assigned := ""
	for _, candidate := range normalized {
		if candidate.Has(fieldNewEntry) {
			delete(candidate, fieldNewEntry)
			assigned = candidate.ID()
			break
		}
	}
	if assigned == "" {
		return "", fmt.Errorf("%w: entry did not survive normalization", ErrInvalidProvider)
	}
	if err := r.persist(normalized); err != nil {
		return "", err
	}
	r.logger.WithField("provider", assigned).Info("provider added")
	return assigned, nil
}

// Update replaces the provider carrying the same identifier. The identifier
// must refer to an existing entry; updates never create.
func (r *Registry) Update(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := Validate(p); err != nil {
		return err
	}
	current, err := r.load()
	if err != nil {
		return err
	}
	found := false
	for i, existing := range current {
		if existing.ID() == p.ID() {
			current[i] = p.Clone()
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, p.ID())
	}
	if err := r.persist(current); err != nil {
		return err
	}
	r.logger.WithField("provider", p.ID()).Info("provider updated")
	return nil
}

// Delete removes the provider with the given identifier.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, err := r.load()
	if err != nil {
		return err
	}
	remaining := make([]Provider, 0, len(current))
	for _, existing := range current {
		if existing.ID() != id {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) == len(current) {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	if err := r.persist(remaining); err != nil {
		return err
	}
	r.logger.WithField("provider", id).Info("provider deleted")
	return nil
}

func (r *Registry) load() ([]Provider, error) {
	var raw []Provider
	var err error
	if r.settings.Has(settings.AuthProviders) {
		raw, err = parseProviders(r.settings.Get(settings.AuthProviders))
		if err != nil {
			return nil, err
		}
	} else {
		raw = r.convertClassic()
	}
	for _, p := range raw {
		r.fillDefaults(p)
	}
	return Normalize(raw)
}

func (r *Registry) persist(providers []Provider) error {
	serialized, err := MarshalList(Anonymize(providers, settings.Defaults()))
	if err != nil {
		return err
	}
	r.settings.Set(settings.AuthProviders, serialized)
	return nil
}

// fillDefaults backfills fields omitted by the anonymizer from the default
// settings. Only defaults apply here; configured classic settings belong to
// the auto-converted entry alone.
func (r *Registry) fillDefaults(p Provider) {
	defaults := settings.Defaults()
	for key, field := range NameMapping(p.Protocol()) {
		if !p.Has(field) && defaults.Has(key) {
			p[field] = defaults.Get(key)
		}
	}
}

// convertClassic builds provider entries from the per-protocol settings that
// predate AUTH_PROVIDERS. Each converted entry carries its protocol as the
// identifier, the marker that exempts it from positional renumbering.
func (r *Registry) convertClassic() []Provider {
	var converted []Provider
	defaults := settings.Defaults()
	for _, protocol := range []string{ProtocolOIDC, ProtocolSAML} {
		p := Provider{FieldProtocol: protocol}
		for key, field := range NameMapping(protocol) {
			if !r.settings.Has(key) {
				continue
			}
			// defaulted keys count only when explicitly overridden,
			// otherwise every deployment would grow a phantom entry
			if defaults.Has(key) && r.settings.GetString(key) == defaults.GetString(key) {
				continue
			}
			p[field] = r.settings.Get(key)
		}
		if Validate(p) == nil {
			p[FieldID] = protocol
			converted = append(converted, p)
		}
	}
	return converted
}

// parseProviders accepts the AUTH_PROVIDERS value in any of its historical
// shapes: a JSON string, a bare list, or an object wrapping the list.
func parseProviders(value any) ([]Provider, error) {
	switch v := value.(type) {
	case string:
		var wrapper struct {
			Providers []Provider `json:"providers"`
		}
		if err := json.Unmarshal([]byte(v), &wrapper); err == nil && wrapper.Providers != nil {
			return wrapper.Providers, nil
		}
		var list []Provider
		if err := json.Unmarshal([]byte(v), &list); err != nil {
			return nil, fmt.Errorf("%w: malformed providers: %v", ErrInvalidProvider, err)
		}
		return list, nil
	case []any:
		list := make([]Provider, 0, len(v))
		for _, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: provider entry is not an object", ErrInvalidProvider)
			}
			list = append(list, Provider(entry))
		}
		return list, nil
	case []Provider:
		return v, nil
	case map[string]any:
		if inner, ok := v["providers"]; ok {
			return parseProviders(inner)
		}
		return nil, fmt.Errorf("%w: missing providers list", ErrInvalidProvider)
	default:
		return nil, fmt.Errorf("%w: unsupported providers shape %T", ErrInvalidProvider, value)
	}
}
