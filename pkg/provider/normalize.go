package provider

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	samltypes "github.com/russellhaering/gosaml2/types"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/authbridge/authbridge/pkg/settings"
)

// Normalize prepares raw provider entries for general use: it infers missing
// protocols, derives labels, assigns stable identifiers in label-sorted
// order, coerces boolean fields, and drops entries that fail validation —
// especially the incomplete entries synthesized purely from default
// settings.
//
// The result is a new, label-sorted slice of cloned entries; the input and
// its elements are never mutated. Identifier assignment is deterministic
// given the same input set in any order, so independent service instances
// converge on identical identifiers without coordination.
func Normalize(providers []Provider) ([]Provider, error) {
	tidied := make([]Provider, 0, len(providers))
	for _, p := range providers {
		tidied = append(tidied, p.Clone())
	}
	ensureProtocol(tidied)
	if err := ensureLabels(tidied); err != nil {
		return nil, err
	}
	ensureIdentifiers(tidied)
	ensureBooleans(tidied)

	valid := make([]Provider, 0, len(tidied))
	for _, p := range tidied {
		if Validate(p) == nil {
			valid = append(valid, p)
		}
	}
	return valid, nil
}

// protocol inference: OIDC always has an issuer URI whereas SAML does not
func ensureProtocol(providers []Provider) {
	for _, p := range providers {
		if !p.Has(FieldProtocol) {
			if p.GetString(FieldIssuerURI) != "" {
				p[FieldProtocol] = ProtocolOIDC
			} else {
				p[FieldProtocol] = ProtocolSAML
			}
		}
	}
}

func ensureLabels(providers []Provider) error {
	for _, p := range providers {
		switch p.Protocol() {
		case ProtocolOIDC:
			ensureLabel(p, FieldIssuerURI)
		case ProtocolSAML:
			ensureLabel(p, FieldMetadataURL)
			ensureLabel(p, FieldIDPEntityID)
			ensureLabel(p, FieldSignonURL)
			if p.Label() == "" && p.Has(FieldMetadataFile) {
				contents, err := os.ReadFile(p.GetString(FieldMetadataFile))
				if err != nil {
					return fmt.Errorf("failed to read provider metadata file: %w", err)
				}
				p[FieldMetadata] = strings.TrimSpace(string(contents))
				delete(p, FieldMetadataFile)
			}
			if p.Label() == "" && p.Has(FieldMetadata) {
				if entityID := metadataEntityID(p.GetString(FieldMetadata)); entityID != "" {
					p[FieldLabel] = entityID
				}
			}
		}
	}
	return nil
}

// a label set by a prior administrative edit is never overwritten
func ensureLabel(p Provider, field string) {
	if p.Label() != "" || !p.Has(field) {
		return
	}
	value := p.GetString(field)
	if u, err := url.Parse(value); err == nil && u.Hostname() != "" {
		p[FieldLabel] = u.Hostname()
	} else {
		// maybe not a URL but an entity ID
		p[FieldLabel] = value
	}
}

// ensureIdentifiers sorts entries by label and numbers unidentified entries
// by their sorted position. The sort-then-index scheme is what keeps login
// URLs consistent across instances that loaded the same configuration set.
func ensureIdentifiers(providers []Provider) {
	collator := collate.New(language.English)
	sort.SliceStable(providers, func(i, j int) bool {
		a, b := providers[i].Label(), providers[j].Label()
		if a == "" || b == "" {
			// unlabeled entries sort as equal among themselves
			return false
		}
		return collator.CompareString(a, b) < 0
	})
	for idx, p := range providers {
		if p.IsLegacy() {
			// auto-converted classic entries keep their identifier; giving
			// them numbered ids would create a "multi" login scenario when
			// it would not be appropriate
			continue
		}
		if p.Has(FieldID) && !p.Has(FieldLabel) {
			// default-derived noise, the identifier is meaningless
			delete(p, FieldID)
		} else if p.Label() != "" && !p.Has(FieldID) {
			p[FieldID] = fmt.Sprintf("%s-%d", p.Protocol(), idx)
		}
	}
}

func ensureBooleans(providers []Provider) {
	for _, p := range providers {
		p[FieldForceAuthn] = settings.Truth(p[FieldForceAuthn])
		switch p.Protocol() {
		case ProtocolOIDC:
			p[FieldSelectAccount] = settings.Truth(p[FieldSelectAccount])
		case ProtocolSAML:
			p[FieldWantAssertionSigned] = settings.Truth(p[FieldWantAssertionSigned])
			p[FieldWantResponseSigned] = settings.Truth(p[FieldWantResponseSigned])
		}
	}
}

// metadataEntityID extracts the entity id declared by inline IdP metadata.
func metadataEntityID(metadata string) string {
	var entity samltypes.EntityDescriptor
	if err := xml.Unmarshal([]byte(metadata), &entity); err != nil {
		return ""
	}
	return entity.EntityID
}
