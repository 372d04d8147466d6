// Package dml defines the declarative model of a DML transformation: the
// target table, its idempotency keys, the source tables and joins, and the
// ordered field mappings. Definitions are written in YAML (after template
// rendering) and handed to a dialect SQL generator.
//
// Mappings are a closed set of variants selected by their "type" key:
//
//	mappings:
//	  - type: direct
//	    target_field: person_id
//	    source_field: p.patient_id
//	  - type: expression
//	    target_field: gender_concept_id
//	    sql: COALESCE(g.concept_id, 0)
//	  - type: constant
//	    target_field: race_concept_id
//	    value: 0
package dml
