package workflow

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func samplePlan() *CompiledPlan {
	return &CompiledPlan{
		ExecutionID:  uuid.MustParse("6f1c3d52-3b0a-4a59-9d8e-2c7d5c1e9a10"),
		WorkflowName: "nightly",
		Concurrency:  2,
		Steps: CompiledSteps{
			&CompiledSQLStep{Name: "ddl", DependsOn: []string{}, SQLStatements: []string{"CREATE TABLE a (id int)"}},
			&CompiledBulkLoadStep{
				Name:                "load",
				DependsOn:           []string{"ddl"},
				SourceURI:           "s3://b/x.csv",
				TargetSchema:        "raw",
				TargetTable:         "person",
				SourceFormatOptions: map[string]any{"delimiter": ","},
				LoadOptions:         map[string]any{},
			},
		},
		ContextSnapshot: map[string]any{"workflow": "nightly"},
	}
}

func TestCompiledPlan_JSONRoundTrip(t *testing.T) {
	plan := samplePlan()
	data, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"type":"sql"`, `"type":"bulk_load"`, `"execution_id":"6f1c3d52-3b0a-4a59-9d8e-2c7d5c1e9a10"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %s in %s", want, data)
		}
	}

	var decoded CompiledPlan
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(plan, &decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalCompiledStep_UnknownType(t *testing.T) {
	if _, err := UnmarshalCompiledStep([]byte(`{"type":"dml","name":"x"}`)); err == nil {
		t.Fatal("expected error for a type that never appears in a plan")
	}
	var steps CompiledSteps
	if err := json.Unmarshal([]byte(`[{"type":"sql","name":"a"},{"name":"b"}]`), &steps); err == nil ||
		!strings.Contains(err.Error(), "steps[1]") {
		t.Fatalf("expected indexed error, got %v", err)
	}
}

func TestCompiledPlan_Lookup(t *testing.T) {
	plan := samplePlan()
	s, ok := plan.Step("load")
	if !ok || s.Kind() != StepBulkLoad {
		t.Fatalf("expected bulk load step, got %v %v", s, ok)
	}
	if _, ok := plan.Step("missing"); ok {
		t.Error("expected lookup miss")
	}
	if plan.StatementCount() != 1 {
		t.Errorf("expected 1 statement, got %d", plan.StatementCount())
	}
}
