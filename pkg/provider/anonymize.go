package provider

import (
	"encoding/json"
	"reflect"
	"strconv"

	"github.com/authbridge/authbridge/pkg/settings"
)

// Anonymize prepares providers for persistence: runtime identifiers are
// removed, as are fields whose values merely restate the default settings.
// Stripped fields are reintroduced from defaults on the next load, so the
// persisted form stays minimal and default changes take effect without
// rewriting stored entries.
func Anonymize(providers []Provider, defaults settings.Repository) []Provider {
	anonymized := make([]Provider, 0, len(providers))
	for _, p := range providers {
		clone := p.Clone()
		delete(clone, FieldID)
		for key, field := range NameMapping(clone.Protocol()) {
			if !defaults.Has(key) || !clone.Has(field) {
				continue
			}
			if looseEquals(defaults.Get(key), clone[field]) {
				delete(clone, field)
			}
		}
		anonymized = append(anonymized, clone)
	}
	return anonymized
}

// MarshalList renders providers in the stored AUTH_PROVIDERS shape, an
// object wrapping the list.
func MarshalList(providers []Provider) (string, error) {
	wrapper := map[string]any{"providers": providers}
	raw, err := json.Marshal(wrapper)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// looseEquals compares a default setting against a provider field value,
// tolerating the string representations that hand-edited configuration
// introduces. A string default matches the rendered value, so the default
// "false" strips a boolean false field. The comparison is deliberately not
// symmetric: a boolean default only matches a boolean value.
func looseEquals(defawlt, value any) bool {
	if reflect.DeepEqual(defawlt, value) {
		return true
	}
	switch d := defawlt.(type) {
	case string:
		return d == settings.Render(value)
	case bool:
		return false
	case int, int32, int64, float32, float64:
		dn, err := strconv.ParseFloat(settings.Render(defawlt), 64)
		if err != nil {
			return false
		}
		vn, err := strconv.ParseFloat(settings.Render(value), 64)
		if err != nil {
			return false
		}
		return dn == vn
	default:
		return false
	}
}
