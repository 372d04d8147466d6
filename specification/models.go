package specification

import (
	"context"
	"sort"
)

// Resolver returns the catalog for a CDM version. A non-empty
// localOverride names a CSV file to read instead of the remote source.
type Resolver interface {
	Fetch(ctx context.Context, version, localOverride string) (*CDMSpecification, error)
}

// CDMFieldSpec describes one column of a CDM table.
type CDMFieldSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// CDMTableSpec describes one CDM table.
type CDMTableSpec struct {
	Name       string         `json:"name"`
	Fields     []CDMFieldSpec `json:"fields"`
	PrimaryKey []string       `json:"primary_key"`
	// Optimizations carries dialect hints keyed by dialect name
	// (e.g. clustering or distribution keys).
	Optimizations map[string]map[string]any `json:"optimizations,omitempty"`
}

// Field returns the named column.
func (t *CDMTableSpec) Field(name string) (CDMFieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return CDMFieldSpec{}, false
}

// CDMSpecification is the catalog of one CDM version, keyed by lowercase
// table name.
type CDMSpecification struct {
	Version string                  `json:"version"`
	Tables  map[string]CDMTableSpec `json:"tables"`
}

// Table returns the named table.
func (s *CDMSpecification) Table(name string) (CDMTableSpec, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

// TableNames returns the table names in sorted order.
func (s *CDMSpecification) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of s. Optimization values are copied one
// level deep.
func (s *CDMSpecification) Clone() *CDMSpecification {
	if s == nil {
		return nil
	}
	out := &CDMSpecification{Version: s.Version, Tables: make(map[string]CDMTableSpec, len(s.Tables))}
	for name, t := range s.Tables {
		ct := CDMTableSpec{
			Name:       t.Name,
			Fields:     append([]CDMFieldSpec(nil), t.Fields...),
			PrimaryKey: append([]string(nil), t.PrimaryKey...),
		}
		if t.Optimizations != nil {
			ct.Optimizations = make(map[string]map[string]any, len(t.Optimizations))
			for dialect, opts := range t.Optimizations {
				inner := make(map[string]any, len(opts))
				for k, v := range opts {
					inner[k] = v
				}
				ct.Optimizations[dialect] = inner
			}
		}
		out.Tables[name] = ct
	}
	return out
}
