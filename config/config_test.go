package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

const projectYAML = `
connection:
  provider_type: snowflake
  host: acme.snowflakecomputing.com
  user: etl
  extra_settings:
    warehouse: LOAD_WH
orchestrator:
  type: local
  configuration:
    max_workers: 4
schemas:
  source: raw
  cdm: cdm54
logging:
  level: debug
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

type staticProvider map[string]string

func (p staticProvider) GetSecret(id string) (string, error) {
	v, ok := p[id]
	if !ok {
		return "", errors.SecretAccess(id)
	}
	return v, nil
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.yaml", projectYAML)

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Connection.ProviderType != "snowflake" || cfg.Connection.Host != "acme.snowflakecomputing.com" {
		t.Errorf("unexpected connection: %+v", cfg.Connection)
	}
	if diff := cmp.Diff(map[string]string{"source": "raw", "cdm": "cdm54"}, cfg.Schemas); diff != "" {
		t.Errorf("schemas mismatch (-want +got):\n%s", diff)
	}
	if cfg.Orchestrator.Type != "local" {
		t.Errorf("unexpected orchestrator: %+v", cfg.Orchestrator)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.ServiceName != ServiceName {
		t.Errorf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.Specification.BaseURL == "" || cfg.Specification.Retry.MaxAttempts != 3 {
		t.Errorf("expected specification defaults, got %+v", cfg.Specification)
	}
}

func TestLoadProjectConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.yaml", projectYAML)

	t.Setenv("OMOPCLOUDETL_CONN_HOST", "override.example.com")
	t.Setenv("omopcloudetl_conn_user", "loader")
	t.Setenv("OMOPCLOUDETL_CONN_EXTRA_SETTINGS__ROLE", "ETL_ROLE")

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Connection.Host != "override.example.com" {
		t.Errorf("expected host override, got %q", cfg.Connection.Host)
	}
	if cfg.Connection.User != "loader" {
		t.Errorf("expected user override, got %q", cfg.Connection.User)
	}
	want := map[string]any{"warehouse": "LOAD_WH", "role": "ETL_ROLE"}
	if diff := cmp.Diff(want, cfg.Connection.ExtraSettings); diff != "" {
		t.Errorf("extra settings mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadProjectConfig_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.yaml", projectYAML)
	writeFile(t, dir, ".env", "OMOPCLOUDETL_CONN_PASSWORD=from-dotenv\n")
	// t.Setenv restores the variable afterwards; it must be unset for
	// godotenv to apply the file value.
	t.Setenv("OMOPCLOUDETL_CONN_PASSWORD", "")
	_ = os.Unsetenv("OMOPCLOUDETL_CONN_PASSWORD")

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Connection.Password.Reveal() != "from-dotenv" {
		t.Errorf("expected password from .env, got %q", cfg.Connection.Password.Reveal())
	}
}

func TestLoadProjectConfig_SecretResolution(t *testing.T) {
	dir := t.TempDir()
	content := projectYAML + `
secrets:
  provider_type: env
`
	content = strings.Replace(content, "  user: etl\n", "  user: etl\n  password_secret_id: OMOPETL_TEST_DB_PASSWORD\n", 1)
	path := writeFile(t, dir, "project.yaml", content)

	t.Run("env provider from project file", func(t *testing.T) {
		t.Setenv("OMOPETL_TEST_DB_PASSWORD", "pa55")
		cfg, err := LoadProjectConfig(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Connection.Password.Reveal() != "pa55" {
			t.Errorf("expected resolved password, got %q", cfg.Connection.Password.Reveal())
		}
	})

	t.Run("explicit provider", func(t *testing.T) {
		cfg, err := LoadProjectConfig(path, WithSecretsProvider(staticProvider{"OMOPETL_TEST_DB_PASSWORD": "static"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Connection.Password.Reveal() != "static" {
			t.Errorf("expected static password, got %q", cfg.Connection.Password.Reveal())
		}
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := LoadProjectConfig(path, WithSecretsProvider(staticProvider{}))
		if !errors.IsCode(err, errors.ErrCodeSecretAccess) {
			t.Fatalf("expected SECRET_ACCESS, got %v", err)
		}
	})
}

func TestLoadProjectConfig_UnknownSecretsProvider(t *testing.T) {
	dir := t.TempDir()
	content := strings.Replace(projectYAML, "  user: etl\n", "  user: etl\n  password_secret_id: DB_PASS\n", 1) +
		"secrets:\n  provider_type: vault\n"
	path := writeFile(t, dir, "project.yaml", content)

	_, err := LoadProjectConfig(path)
	if !errors.IsCode(err, errors.ErrCodeDiscovery) {
		t.Fatalf("expected DISCOVERY_ERROR, got %v", err)
	}
}

func TestLoadProjectConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"invalid yaml", "connection: [unterminated", "error parsing YAML"},
		{"missing provider type", strings.Replace(projectYAML, "provider_type: snowflake", "host2: x", 1), "validation failed"},
		{"missing schemas", strings.Replace(projectYAML, "schemas:\n  source: raw\n  cdm: cdm54\n", "", 1), "validation failed"},
		{
			"secret id without secrets config",
			strings.Replace(projectYAML, "  user: etl\n", "  user: etl\n  password_secret_id: DB_PASS\n", 1),
			"no 'secrets' provider",
		},
		{"bad logging level", strings.Replace(projectYAML, "level: debug", "level: loud", 1), "logging.level"},
		{"bad sample rate", projectYAML + "telemetry:\n  traces:\n    sample_rate: 2\n", "sample_rate"},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, fmt.Sprintf("p%d.yaml", i), tc.content)
			_, err := LoadProjectConfig(path)
			appErr, ok := errors.AsAppError(err)
			if !ok || appErr.Code != errors.ErrCodeConfiguration {
				t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("expected %q in %q", tc.wantMsg, err.Error())
			}
		})
	}
}

func TestLoadProjectConfig_MissingFile(t *testing.T) {
	_, err := LoadProjectConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.IsCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func TestLoadProjectConfig_ExplicitEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.yaml", projectYAML)

	fs := &mockFS{files: map[string]bool{path: true, "/etc/omopetl/prod.env": true}}
	if _, err := LoadProjectConfig(path, WithFileSystem(fs), WithEnvFile("/etc/omopetl/prod.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"/etc/omopetl/prod.env"}, fs.loaded); diff != "" {
		t.Errorf("loaded env files mismatch (-want +got):\n%s", diff)
	}

	fs = &mockFS{files: map[string]bool{path: true}}
	if _, err := LoadProjectConfig(path, WithFileSystem(fs), WithEnvFile("/missing.env")); !errors.IsCode(err, errors.ErrCodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR for a missing explicit env file, got %v", err)
	}
}

func baseConfig() *ProjectConfig {
	return &ProjectConfig{
		Connection:   ConnectionConfig{ProviderType: "snowflake", ExtraSettings: map[string]any{"warehouse": "WH"}},
		Orchestrator: OrchestratorConfig{Type: "local"},
		Schemas:      map[string]string{"cdm": "cdm54"},
		Secrets:      &SecretsConfig{ProviderType: "env"},
	}
}

func TestResolveSecrets(t *testing.T) {
	provider := staticProvider{"DB_PASS": "resolved"}

	t.Run("resolves without mutating input", func(t *testing.T) {
		in := baseConfig()
		in.Connection.PasswordSecretID = "DB_PASS"

		out, err := ResolveSecrets(in, provider, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Connection.Password.Reveal() != "resolved" {
			t.Errorf("expected resolved password, got %q", out.Connection.Password.Reveal())
		}
		if in.Connection.Password != "" {
			t.Error("input config must not be modified")
		}
		out.Schemas["cdm"] = "changed"
		out.Connection.ExtraSettings["warehouse"] = "changed"
		if in.Schemas["cdm"] != "cdm54" || in.Connection.ExtraSettings["warehouse"] != "WH" {
			t.Error("output must not share maps with the input")
		}
	})

	t.Run("direct password wins", func(t *testing.T) {
		in := baseConfig()
		in.Connection.Password = "direct"
		in.Connection.PasswordSecretID = "DB_PASS"

		out, err := ResolveSecrets(in, provider, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Connection.Password.Reveal() != "direct" {
			t.Errorf("expected direct password, got %q", out.Connection.Password.Reveal())
		}
	})

	t.Run("no secret reference", func(t *testing.T) {
		out, err := ResolveSecrets(baseConfig(), nil, nil)
		if err != nil || out.Connection.Password != "" {
			t.Errorf("unexpected result: %+v, %v", out.Connection, err)
		}
	})

	t.Run("no secrets config", func(t *testing.T) {
		in := baseConfig()
		in.Secrets = nil
		in.Connection.PasswordSecretID = "DB_PASS"
		if _, err := ResolveSecrets(in, provider, nil); !errors.IsCode(err, errors.ErrCodeConfiguration) {
			t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
		}
	})
}

func TestProjectConfig_Schema(t *testing.T) {
	cfg := baseConfig()
	if name, err := cfg.Schema("cdm"); err != nil || name != "cdm54" {
		t.Errorf("unexpected result: %q, %v", name, err)
	}
	if _, err := cfg.Schema("vocab"); !errors.IsCode(err, errors.ErrCodeSchemaRefNotFound) {
		t.Errorf("expected SCHEMA_REF_NOT_FOUND, got %v", err)
	}
	for _, blank := range []string{"", "  "} {
		cfg.Schemas["staging"] = blank
		if _, err := cfg.Schema("staging"); !errors.IsCode(err, errors.ErrCodeSchemaRefNotFound) {
			t.Errorf("blank mapping %q: expected SCHEMA_REF_NOT_FOUND, got %v", blank, err)
		}
	}
}

func TestSecret_Redacts(t *testing.T) {
	s := Secret("hunter2")
	if s.String() != redacted || fmt.Sprintf("%v %s %#v", s, s, s) != strings.Repeat(redacted+" ", 2)+redacted {
		t.Errorf("secret leaked through formatting")
	}
	data, err := json.Marshal(ConnectionConfig{ProviderType: "x", Password: s})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("secret leaked through json: %s", data)
	}
	if Secret("").String() != "" {
		t.Error("empty secret should print empty")
	}
}
