// Package config loads and validates the project configuration: the
// target connection, the orchestrator, the logical-to-physical schema
// mapping, the secrets provider and the ambient settings (logging,
// specification fetching, telemetry).
//
// # Usage
//
//	cfg, err := config.LoadProjectConfig("project.yaml")
//
// The YAML file is read with viper. A .env file next to it (or the one
// given with WithEnvFile) is loaded first; variables already set in the
// environment win. Connection fields can be overridden with
// OMOPCLOUDETL_CONN_<FIELD> variables, e.g. OMOPCLOUDETL_CONN_HOST, and
// nested extra settings with a double underscore:
// OMOPCLOUDETL_CONN_EXTRA_SETTINGS__WAREHOUSE.
//
// A connection password can be given directly or as a secret reference
// (password_secret_id) resolved through the configured secrets provider.
// A direct password takes precedence.
package config
