// Package version reports build information of the omopetl binaries.
//
// Version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/CoReason-AI/omopcloudetl-core/version.Version=1.2.0"
//
// Unset values are filled from the module build info when available.
package version
