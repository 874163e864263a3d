package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// RecordEnv is the environment a GitHub Actions job provides to `record`.
// It is parsed once at process start and passed down explicitly.
type RecordEnv struct {
	Stack            string `env:"STACK,required"`
	SourceRepo       string `env:"SOURCE_REPO,required"`
	SourceCommit     string `env:"SOURCE_COMMIT,required"`
	RunID            string `env:"GITHUB_RUN_ID,required"`
	GitHubRepository string `env:"GITHUB_REPOSITORY,required"`
	Token            string `env:"GITHUB_TOKEN,required,unset"`
	OutputDir        string `env:"OUTPUT_DIR"  envDefault:"data-artifacts"`
	DataBranch       string `env:"DATA_BRANCH" envDefault:"data"`
	JobPrefix        string `env:"JOB_PREFIX"  envDefault:"execute-all "`
}

// DataURL is the raw base URL of the branch holding persisted histories.
func (e RecordEnv) DataURL() string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s", e.GitHubRepository, e.DataBranch)
}

// ServeEnv holds environment overrides for the dashboard and deploy hook.
type ServeEnv struct {
	DataSource   string `env:"ECOSYSTEM_CI_DATA_SOURCE"`
	BuildHookURL string `env:"NETLIFY_BUILD_HOOK_URL,unset"`
	GitHubToken  string `env:"GITHUB_TOKEN,unset"`
	ConfigFile   string `env:"ECOSYSTEM_CI_CONFIG"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadRecordEnv parses and sanity-checks the record environment.
func LoadRecordEnv() (RecordEnv, error) {
	var e RecordEnv
	if err := ParseEnv(&e); err != nil {
		return RecordEnv{}, err
	}
	if !repoRe.MatchString(e.SourceRepo) {
		return RecordEnv{}, fmt.Errorf("SOURCE_REPO must be owner/name, got %q", e.SourceRepo)
	}
	if !repoRe.MatchString(e.GitHubRepository) {
		return RecordEnv{}, fmt.Errorf("GITHUB_REPOSITORY must be owner/name, got %q", e.GitHubRepository)
	}
	if !stackIDRe.MatchString(e.Stack) {
		return RecordEnv{}, fmt.Errorf("invalid STACK %q", e.Stack)
	}
	e.SourceCommit = strings.TrimSpace(e.SourceCommit)
	return e, nil
}

// LoadServeEnv parses the optional dashboard environment.
func LoadServeEnv() (ServeEnv, error) {
	var e ServeEnv
	if err := ParseEnv(&e); err != nil {
		return ServeEnv{}, err
	}
	return e, nil
}

// ApplyEnv overrides file settings with environment values where set.
func (c *EcosystemConfig) ApplyEnv(e ServeEnv) {
	if e.DataSource != "" {
		c.Data.Source = e.DataSource
	}
}
