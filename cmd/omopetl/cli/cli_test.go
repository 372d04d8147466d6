package cli

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/CoReason-AI/omopcloudetl-core/dml"
	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/generator"
	"github.com/CoReason-AI/omopcloudetl-core/plugins"
	"github.com/CoReason-AI/omopcloudetl-core/specification"
	"github.com/CoReason-AI/omopcloudetl-core/sqltools"
	"github.com/CoReason-AI/omopcloudetl-core/workflow"
)

const specCSV = "cdmTableName,cdmFieldName,isRequired,cdmDatatype,isPrimaryKey\n" +
	"person,person_id,Yes,integer,Yes\n" +
	"death,person_id,Yes,integer,No\n"

func init() {
	plugins.RegisterDialect("testsql", func(map[string]any) (generator.Dialect, error) {
		sql := generator.SQLGeneratorFunc(func(def *dml.Definition, vars map[string]any) (string, error) {
			schemas := vars["schemas"].(map[string]string)
			return fmt.Sprintf("MERGE INTO %s.%s", schemas[def.TargetSchemaRef], def.TargetTable), nil
		})
		ddl := generator.DDLGeneratorFunc(func(spec *specification.CDMSpecification, schema string, _ map[string]any) ([]string, error) {
			var out []string
			for _, name := range spec.TableNames() {
				out = append(out, fmt.Sprintf("CREATE TABLE %s.%s (person_id integer)", schema, name))
			}
			return out, nil
		})
		return generator.NewDialect("testsql", sql, ddl), nil
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// setupProject writes a project and a workflow exercising every step type.
func setupProject(t *testing.T) (projectPath, workflowPath string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "OMOP_CDM_v5.4_Field_Level.csv") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(specCSV))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	projectPath = filepath.Join(dir, "project.yaml")
	writeFile(t, projectPath, fmt.Sprintf(`
connection:
  provider_type: testsql
orchestrator:
  type: local
schemas:
  source: raw
  cdm: cdm54
logging:
  level: error
specification:
  base_url: %s
  cache:
    dir: %s
`, srv.URL, filepath.Join(dir, "cache")))

	wfDir := filepath.Join(dir, "workflows")
	workflowPath = filepath.Join(wfDir, "nightly.yaml")
	writeFile(t, workflowPath, `
workflow_name: nightly
concurrency: 2
steps:
  - name: create
    type: ddl
    cdm_version: "5.4"
    target_schema_ref: cdm
  - name: load
    type: bulk_load
    source_uri_pattern: "s3://landing/{{ workflow }}/"
    target_table: patients
    target_schema_ref: source
  - name: person
    type: dml
    dml_file: dml/person.yaml
    depends_on: [create, load]
  - name: qa
    type: sql
    sql_file: sql/qa.sql
    depends_on: [person]
`)
	writeFile(t, filepath.Join(wfDir, "dml/person.yaml"), `
target_table: person
target_schema_ref: cdm
idempotency_keys: [person_id]
primary_source: {table: patients, alias: p, schema_ref: source}
mappings:
  - type: direct
    target_field: person_id
    source_field: p.id
`)
	writeFile(t, filepath.Join(wfDir, "sql/qa.sql"), "-- checks\nSELECT COUNT(*) FROM {{ schemas.cdm }}.person;\n")
	return projectPath, workflowPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCompileCommand(t *testing.T) {
	project, wf := setupProject(t)

	out, err := run(t, "compile", "-p", project, "-w", wf, "-d", "testsql")
	if err != nil {
		t.Fatalf("compile: %v\n%s", err, out)
	}

	var plan workflow.CompiledPlan
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("decoding plan: %v\n%s", err, out)
	}
	if plan.WorkflowName != "nightly" || plan.Concurrency != 2 || len(plan.Steps) != 4 {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	bodies := func(name string) []string {
		step, ok := plan.Step(name)
		if !ok {
			t.Fatalf("step %s missing", name)
		}
		var out []string
		for _, stmt := range step.(*workflow.CompiledSQLStep).SQLStatements {
			_, body, err := sqltools.ExtractQueryTag(stmt)
			if err != nil {
				t.Fatalf("step %s: %v", name, err)
			}
			out = append(out, body)
		}
		return out
	}

	if diff := cmp.Diff([]string{
		"CREATE TABLE cdm54.death (person_id integer)",
		"CREATE TABLE cdm54.person (person_id integer)",
	}, bodies("create")); diff != "" {
		t.Errorf("ddl mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"MERGE INTO cdm54.person"}, bodies("person")); diff != "" {
		t.Errorf("dml mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"SELECT COUNT(*) FROM cdm54.person"}, bodies("qa")); diff != "" {
		t.Errorf("sql mismatch (-want +got):\n%s", diff)
	}

	load, _ := plan.Step("load")
	if got := load.(*workflow.CompiledBulkLoadStep).SourceURI; got != "s3://landing/nightly/" {
		t.Errorf("unexpected source uri %q", got)
	}
}

func TestCompileCommand_Levels(t *testing.T) {
	project, wf := setupProject(t)
	output := filepath.Join(t.TempDir(), "plan.json")

	if out, err := run(t, "compile", "-p", project, "-w", wf, "-d", "testsql", "--levels", "-o", output); err != nil {
		t.Fatalf("compile: %v\n%s", err, out)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Levels [][]string `json:"levels"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"create", "load"}, {"person"}, {"qa"}}
	if diff := cmp.Diff(want, got.Levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileCommand_Errors(t *testing.T) {
	project, wf := setupProject(t)

	tests := []struct {
		name     string
		args     []string
		wantCode errors.ErrorCode
	}{
		{"unknown dialect", []string{"compile", "-p", project, "-w", wf, "-d", "nope"}, errors.ErrCodeDiscovery},
		{"missing project", []string{"compile", "-p", project + ".missing", "-w", wf}, errors.ErrCodeConfiguration},
		{"missing workflow", []string{"compile", "-p", project, "-w", wf + ".missing"}, errors.ErrCodeWorkflowValidation},
		{"dml without dialect", []string{"compile", "-p", project, "-w", wf}, errors.ErrCodeGenerator},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			if !errors.IsCode(err, tc.wantCode) {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}
}

type closeFailer struct {
	bytes.Buffer
	closed bool
}

func (c *closeFailer) Close() error {
	c.closed = true
	return stderrors.New("disk full")
}

func TestWriteAndClose_ReportsCloseError(t *testing.T) {
	wc := &closeFailer{}
	err := writeAndClose(wc, map[string]int{"steps": 2})
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("expected close error, got %v", err)
	}
	if !wc.closed {
		t.Error("writer was not closed")
	}
	if !strings.Contains(wc.String(), `"steps": 2`) {
		t.Errorf("plan not written: %q", wc.String())
	}
}

func TestWriteAndClose_ClosesOnEncodeError(t *testing.T) {
	wc := &closeFailer{}
	err := writeAndClose(wc, map[string]any{"bad": make(chan int)})
	if err == nil || err.Error() == "disk full" {
		t.Fatalf("expected encode error, got %v", err)
	}
	if !wc.closed {
		t.Error("writer was not closed")
	}
}

func TestWritePlan_CreateFails(t *testing.T) {
	output := filepath.Join(t.TempDir(), "missing", "plan.json")
	if err := writePlan(map[string]int{}, output, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestPluginsCommand(t *testing.T) {
	out, err := run(t, "plugins")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"testsql", "env", "file"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if info["version"] == "" {
		t.Error("expected a version")
	}
}
