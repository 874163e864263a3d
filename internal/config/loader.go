package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultBranch  = "main"
	defaultTimeout = "30m"
	defaultParser  = "generic"
	defaultDataDir = "data"
)

// Load reads and parses an ecosystem configuration from the given YAML file path.
// After parsing, it applies defaults to stacks and suites that don't specify their own values.
func Load(path string) (*EcosystemConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg EcosystemConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for an ecosystem config in standard locations and loads the
// first one found. Search order: ./ecosystem.yaml, ~/.ecosystem-ci/config.yaml
func LoadDefault() (*EcosystemConfig, error) {
	candidates := []string{"ecosystem.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".ecosystem-ci", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no ecosystem config found (searched: %v)", candidates)
}

// applyDefaults fills in branch, label, parser, timeout and data settings
// that were left empty.
func applyDefaults(cfg *EcosystemConfig) {
	if cfg.Defaults.Timeout == "" {
		cfg.Defaults.Timeout = defaultTimeout
	}
	if cfg.Defaults.Parser == "" {
		cfg.Defaults.Parser = defaultParser
	}

	if cfg.Data.Source == "" {
		cfg.Data.Source = SourceFile
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = defaultDataDir
	}
	cfg.Data.RemoteURL = strings.TrimRight(cfg.Data.RemoteURL, "/")

	if cfg.Dashboard.Title == "" {
		cfg.Dashboard.Title = "Ecosystem CI"
	}
	if cfg.Dashboard.DefaultStack == "" && len(cfg.Stacks) > 0 {
		cfg.Dashboard.DefaultStack = cfg.Stacks[0].ID
	}

	for i := range cfg.Stacks {
		st := &cfg.Stacks[i]
		if st.Branch == "" {
			st.Branch = defaultBranch
		}
		if st.Label == "" {
			st.Label = titleCase(st.ID)
		}
		for j := range st.Suites {
			su := &st.Suites[j]
			if su.Parser == "" {
				su.Parser = cfg.Defaults.Parser
			}
			if su.Timeout == "" {
				su.Timeout = cfg.Defaults.Timeout
			}
			if su.Install == "" {
				su.Install = cfg.Defaults.Install
			}
		}
	}
}

func titleCase(id string) string {
	if id == "" {
		return ""
	}
	return strings.ToUpper(id[:1]) + id[1:]
}
