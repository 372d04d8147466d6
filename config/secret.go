package config

import "encoding/json"

const redacted = "********"

// Secret is a string that never prints its value.
type Secret string

// String returns a redacted placeholder unless the secret is empty.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string { return s.String() }

// MarshalJSON encodes the redacted placeholder.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalYAML encodes the redacted placeholder.
func (s Secret) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Reveal returns the secret value.
func (s Secret) Reveal() string { return string(s) }
