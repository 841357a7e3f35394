// Package settings provides typed access to the service's named settings.
//
// # Overview
//
// Settings originate from three layers merged in priority order:
//
//  1. Temporary admin edits (POST /settings), held in memory until applied
//  2. The configured YAML settings file
//  3. Factory defaults
//
// The Repository interface abstracts the origin so consumers such as the
// client-certificate authorization engine and the provider registry do not
// care which layer a value came from.
//
// # Usage Example
//
//	configured, err := settings.NewFileRepository("/etc/authbridge/settings.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	repo := settings.NewLayered(configured, settings.Defaults())
//
//	if settings.Truth(repo.Get(settings.AssumeClientAuthorized)) {
//		// client certificate checks are bypassed
//	}
package settings
