// Package provider manages the identity provider registry: parsing the
// configured entries, inferring protocols and labels, assigning stable
// identifiers, and stripping runtime and default-derived fields before
// persistence.
//
// Identifier assignment is positional over the label-sorted list, so any two
// service instances that load the same configuration produce the same
// identifiers regardless of entry order. Entries whose identifier equals
// their protocol are auto-conversions of classic single-provider settings
// and are never renumbered.
package provider
