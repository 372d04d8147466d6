package plugins

import "github.com/CoReason-AI/omopcloudetl-core/generator"

var dialects = NewRegistry[generator.Dialect]("dialect")

// Dialects returns the process-wide dialect registry.
func Dialects() *Registry[generator.Dialect] { return dialects }

// RegisterDialect registers a dialect factory with the process-wide
// registry. Dialect packages call it from init.
func RegisterDialect(name string, factory Factory[generator.Dialect]) {
	dialects.Register(name, factory)
}

// ResolveDialect instantiates a registered dialect.
func ResolveDialect(name string, cfg map[string]any) (generator.Dialect, error) {
	return dialects.Resolve(name, cfg)
}

// DialectNames lists the registered dialects.
func DialectNames() []string { return dialects.Names() }
