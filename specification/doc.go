// Package specification resolves OMOP CDM catalogs: which tables exist,
// their columns, types, nullability and primary keys.
//
// A Manager fetches the OHDSI field-level CSV for a CDM version from a
// configurable base URL (or reads a local override file), parses it into a
// CDMSpecification and caches the result as JSON through a cache.Store.
// Remote fetches are retried with resilience.Retry and concurrent fetches
// of the same key are collapsed into one.
//
// The compiler consumes catalogs through the Resolver interface only.
package specification
