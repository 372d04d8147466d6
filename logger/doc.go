// Package logger provides structured logging on top of zerolog.
//
// Loggers are plain values passed to the components that need them; there
// is no package-level logger. The CLI builds one from the project
// configuration and hands it to the compiler, and library code that is
// given no logger falls back to Nop.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg, "omopetl").WithComponent("compiler")
//	log.Info("plan compiled", logger.Fields(logger.FieldWorkflow, name))
package logger
