// Package cache provides the byte caches that keep downloaded CDM
// specifications between runs: a file-backed store for a single machine
// and a Redis store shared by several runners.
package cache
