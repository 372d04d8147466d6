// Package workflow defines the user-facing workflow configuration and the
// compiled plan handed to an executor.
//
// A workflow is an ordered list of steps. Each step has a unique name, an
// optional list of dependencies and a type-specific body selected by its
// "type" key (dml, bulk_load, ddl or sql). The compiled plan contains only
// two step kinds: sql steps carrying fully rendered and tagged statements,
// and bulk_load steps carrying resolved load parameters.
package workflow
