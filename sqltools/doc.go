// Package sqltools holds the text utilities of the compilation pipeline:
// strict template rendering, query tagging and statement splitting.
//
// Templates use text/template with missing keys treated as errors. Every
// top-level context key is also callable as a bare name, so both
// {{ .schemas.source }} and {{ schemas.source }} resolve the same value.
//
// SplitScript is driven by a small SQL Tokenizer that understands line and
// block comments, single-quoted strings, double-quoted and backtick
// identifiers and dollar-quoted blocks, so semicolons inside any of them
// never end a statement.
package sqltools
