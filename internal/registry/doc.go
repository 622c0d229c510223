// Package registry provides the central "glue" between manifests and Go code.
//
// The Registry stores mappings between the string identifiers used in
// manifests (e.g., "Printer" or "envconfig") and the compiled Go types,
// factories, tokens and dynamic-module builders that implement them. Compiled
// modules declare their metadata into the registry's table when they
// register.
//
// During application startup, the registry is populated and then validated to
// ensure that the Go code and the public-facing manifests are perfectly in
// sync, preventing a wide class of runtime errors.
package registry
