// Package compiler turns a workflow definition into an execution-ready
// plan.
//
// Compile validates the step graph, then compiles each step in declaration
// order:
//
//   - dml: render the DML file, parse it and ask the SQL generator for one
//     idempotent statement
//   - ddl: fetch the CDM catalog and ask the DDL generator for statements
//   - sql: render the SQL file and split it into statements
//   - bulk_load: render the source URI and resolve the target schema
//
// Every statement carries a query tag identifying the execution, workflow
// and step. The first failure aborts compilation; no partial plan is
// returned. Compilation performs no I/O besides reading workflow files and
// the specification lookup.
package compiler
