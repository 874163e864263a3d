package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
data:
  source: file
  dir: ./history
dashboard:
  default_stack: rsbuild
  repo_url: https://github.com/rspack-contrib/rstack-ecosystem-ci
defaults:
  timeout: "20m"
  install: "pnpm install --frozen-lockfile"
stacks:
  - id: rspack
    repo: web-infra-dev/rspack
    suites:
      - name: modernjs
        command: "pnpm test:modernjs"
      - name: plugins
        command: "pnpm vitest run --reporter=json"
        parser: vitest
        timeout: "45m"
  - id: rsbuild
    label: Rsbuild
    repo: web-infra-dev/rsbuild
    branch: next
    dir: website
    suites:
      - name: build
        command: "pnpm build"
        install: "pnpm install"
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ecosystem.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Stacks) != 2 {
		t.Fatalf("len(Stacks) = %d, want 2", len(cfg.Stacks))
	}
	if cfg.Data.Dir != "./history" {
		t.Errorf("Data.Dir = %q, want ./history", cfg.Data.Dir)
	}
	if got := cfg.StackIDs(); strings.Join(got, ",") != "rspack,rsbuild" {
		t.Errorf("StackIDs() = %v", got)
	}
	st, ok := cfg.Stack("rsbuild")
	if !ok {
		t.Fatal("Stack(rsbuild) not found")
	}
	if st.Dir != "website" {
		t.Errorf("rsbuild.Dir = %q, want website", st.Dir)
	}
	if _, ok := cfg.Stack("nope"); ok {
		t.Error("Stack(nope) should not be found")
	}
}

func TestDefaultsMerge(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	rspack := cfg.Stacks[0]
	if rspack.Branch != "main" {
		t.Errorf("rspack.Branch = %q, want main (default)", rspack.Branch)
	}
	if rspack.Label != "Rspack" {
		t.Errorf("rspack.Label = %q, want Rspack (derived)", rspack.Label)
	}

	modernjs := rspack.Suites[0]
	if modernjs.Parser != "generic" {
		t.Errorf("modernjs.Parser = %q, want generic", modernjs.Parser)
	}
	if modernjs.Timeout != "20m" {
		t.Errorf("modernjs.Timeout = %q, want 20m (from defaults)", modernjs.Timeout)
	}
	if modernjs.Install != "pnpm install --frozen-lockfile" {
		t.Errorf("modernjs.Install = %q, want defaults.install", modernjs.Install)
	}

	plugins := rspack.Suites[1]
	if plugins.Timeout != "45m" || plugins.Parser != "vitest" {
		t.Errorf("plugins = %+v, explicit values should win", plugins)
	}

	rsbuild := cfg.Stacks[1]
	if rsbuild.Branch != "next" {
		t.Errorf("rsbuild.Branch = %q, want next (explicit)", rsbuild.Branch)
	}
	if rsbuild.Suites[0].Install != "pnpm install" {
		t.Errorf("rsbuild build install = %q, want explicit value", rsbuild.Suites[0].Install)
	}
}

func TestDefaultsWhenEmpty(t *testing.T) {
	path := writeTestConfig(t, `
stacks:
  - id: rslib
    repo: web-infra-dev/rslib
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Data.Source != SourceFile {
		t.Errorf("Data.Source = %q, want file", cfg.Data.Source)
	}
	if cfg.Data.Dir != "data" {
		t.Errorf("Data.Dir = %q, want data", cfg.Data.Dir)
	}
	if cfg.Dashboard.DefaultStack != "rslib" {
		t.Errorf("DefaultStack = %q, want first stack", cfg.Dashboard.DefaultStack)
	}
	if cfg.Defaults.Timeout != "30m" {
		t.Errorf("Defaults.Timeout = %q, want 30m", cfg.Defaults.Timeout)
	}
}

func TestValidateValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	errs := Validate(cfg)
	if len(errs) != 0 {
		t.Errorf("Validate() returned %d errors for valid config:", len(errs))
		for _, e := range errs {
			t.Errorf("  - %s", e)
		}
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "no stacks",
			yaml:  "data:\n  source: file\n",
			field: "stacks",
		},
		{
			name: "missing repo",
			yaml: `
stacks:
  - id: rspack
`,
			field: "stacks[0].repo",
		},
		{
			name: "bad repo",
			yaml: `
stacks:
  - id: rspack
    repo: https://github.com/web-infra-dev/rspack
`,
			field: "stacks[0].repo",
		},
		{
			name: "duplicate stack",
			yaml: `
stacks:
  - id: rspack
    repo: a/b
  - id: rspack
    repo: a/c
`,
			field: "stacks[1].id",
		},
		{
			name: "bad stack id",
			yaml: `
stacks:
  - id: "../etc"
    repo: a/b
`,
			field: "stacks[0].id",
		},
		{
			name: "duplicate suite",
			yaml: `
stacks:
  - id: rspack
    repo: a/b
    suites:
      - name: build
        command: x
      - name: build
        command: y
`,
			field: "stacks[0].suites[1].name",
		},
		{
			name: "missing command",
			yaml: `
stacks:
  - id: rspack
    repo: a/b
    suites:
      - name: build
`,
			field: "stacks[0].suites[0].command",
		},
		{
			name: "unknown parser",
			yaml: `
stacks:
  - id: rspack
    repo: a/b
    suites:
      - name: build
        command: x
        parser: eslint
`,
			field: "stacks[0].suites[0].parser",
		},
		{
			name: "bad timeout",
			yaml: `
stacks:
  - id: rspack
    repo: a/b
    suites:
      - name: build
        command: x
        timeout: soon
`,
			field: "stacks[0].suites[0].timeout",
		},
		{
			name: "unknown default stack",
			yaml: `
dashboard:
  default_stack: rstest
stacks:
  - id: rspack
    repo: a/b
`,
			field: "dashboard.default_stack",
		},
		{
			name: "unknown source",
			yaml: `
data:
  source: s3
stacks:
  - id: rspack
    repo: a/b
`,
			field: "data.source",
		},
		{
			name: "remote without url",
			yaml: `
data:
  source: remote
stacks:
  - id: rspack
    repo: a/b
`,
			field: "data.remote_url",
		},
		{
			name: "postgres without dsn",
			yaml: `
data:
  source: postgres
stacks:
  - id: rspack
    repo: a/b
`,
			field: "data.postgres_dsn",
		},
		{
			name: "bad timezone",
			yaml: `
dashboard:
  timezone: Mars/Olympus
stacks:
  - id: rspack
    repo: a/b
`,
			field: "dashboard.timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeTestConfig(t, tt.yaml))
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			errs := Validate(cfg)
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected validation error on %s, got %v", tt.field, errs)
			}
		})
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "stacks[0].repo", Message: "is required"}
	if e.Error() != "stacks[0].repo: is required" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTestConfig(t, "not: [valid: yaml: !!!")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadDefaultNotFound(t *testing.T) {
	orig, _ := os.Getwd()
	dir := t.TempDir()
	os.Chdir(dir)
	defer os.Chdir(orig)
	t.Setenv("HOME", dir)

	_, err := LoadDefault()
	if err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestLoadDefaultFromCurrentDir(t *testing.T) {
	orig, _ := os.Getwd()
	dir := t.TempDir()
	os.Chdir(dir)
	defer os.Chdir(orig)

	content := `
stacks:
  - id: rstest
    repo: web-infra-dev/rstest
`
	os.WriteFile(filepath.Join(dir, "ecosystem.yaml"), []byte(content), 0644)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if cfg.Stacks[0].ID != "rstest" {
		t.Errorf("Stacks[0].ID = %q, want rstest", cfg.Stacks[0].ID)
	}
}
