package config

import (
	"os"
	"strings"
	"testing"
)

func setRecordEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STACK", "rspack")
	t.Setenv("SOURCE_REPO", "web-infra-dev/rspack")
	t.Setenv("SOURCE_COMMIT", " abc123 ")
	t.Setenv("GITHUB_RUN_ID", "42")
	t.Setenv("GITHUB_REPOSITORY", "rspack-contrib/rstack-ecosystem-ci")
	t.Setenv("GITHUB_TOKEN", "secret")
	for _, key := range []string{"OUTPUT_DIR", "DATA_BRANCH", "JOB_PREFIX"} {
		unsetEnv(t, key)
	}
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadRecordEnv(t *testing.T) {
	setRecordEnv(t)

	e, err := LoadRecordEnv()
	if err != nil {
		t.Fatalf("LoadRecordEnv() error: %v", err)
	}
	if e.Stack != "rspack" || e.RunID != "42" {
		t.Errorf("unexpected env: %+v", e)
	}
	if e.SourceCommit != "abc123" {
		t.Errorf("SourceCommit = %q, want trimmed", e.SourceCommit)
	}
	if e.OutputDir != "data-artifacts" {
		t.Errorf("OutputDir = %q, want default", e.OutputDir)
	}
	if e.JobPrefix != "execute-all " {
		t.Errorf("JobPrefix = %q, want default", e.JobPrefix)
	}
	if got := e.DataURL(); got != "https://raw.githubusercontent.com/rspack-contrib/rstack-ecosystem-ci/data" {
		t.Errorf("DataURL() = %q", got)
	}
	if _, ok := os.LookupEnv("GITHUB_TOKEN"); ok {
		t.Error("GITHUB_TOKEN should be unset after parsing")
	}
}

func TestLoadRecordEnvMissing(t *testing.T) {
	setRecordEnv(t)
	unsetEnv(t, "STACK")

	_, err := LoadRecordEnv()
	if err == nil {
		t.Fatal("expected error for missing STACK")
	}
	if !strings.Contains(err.Error(), "STACK") {
		t.Errorf("error %q should name the missing variable", err)
	}
}

func TestLoadRecordEnvBadRepo(t *testing.T) {
	setRecordEnv(t)
	t.Setenv("SOURCE_REPO", "rspack")

	if _, err := LoadRecordEnv(); err == nil {
		t.Fatal("expected error for malformed SOURCE_REPO")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ECOSYSTEM_CI_DATA_SOURCE", "mock")
	e, err := LoadServeEnv()
	if err != nil {
		t.Fatalf("LoadServeEnv() error: %v", err)
	}
	cfg := &EcosystemConfig{Data: DataConfig{Source: SourceFile}}
	cfg.ApplyEnv(e)
	if cfg.Data.Source != SourceMock {
		t.Errorf("Data.Source = %q, want mock", cfg.Data.Source)
	}
}
