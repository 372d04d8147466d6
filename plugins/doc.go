// Package plugins is a registry of named factories for pluggable
// components.
//
// Plugin packages register their factories from init, and the program
// selects one at run time by name:
//
//	import _ "example.com/omopetl-snowflake" // registers "snowflake"
//
//	dialect, err := plugins.ResolveDialect("snowflake", cfg)
//
// Resolving a name nobody registered fails with DISCOVERY_ERROR.
package plugins
