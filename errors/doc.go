// Package errors provides the error taxonomy of the workflow compiler.
// Every failure raised by the compilation pipeline is an *AppError carrying
// a machine-readable code, the offending step and file where known, and the
// underlying cause so that errors.Is and errors.As keep working across
// package boundaries.
package errors
