// Package secrets resolves secret identifiers (such as a database password
// reference) to values.
//
// Providers are looked up by type through a plugins.Registry. Two types
// are built in: "env" reads environment variables and "file" reads one
// file per secret from a directory, the layout used by mounted
// Kubernetes and Docker secrets.
package secrets
