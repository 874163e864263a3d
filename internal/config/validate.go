package config

import (
	"fmt"
	"regexp"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedParsers is the set of valid parser names for suites.
var recognizedParsers = map[string]bool{
	"generic": true,
	"vitest":  true,
}

var recognizedSources = map[string]bool{
	SourceFile:     true,
	SourceRemote:   true,
	SourceMock:     true,
	SourceSQLite:   true,
	SourcePostgres: true,
}

// stackIDRe keeps stack ids usable as file names and URL path segments.
var stackIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

var repoRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Validate checks an EcosystemConfig for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *EcosystemConfig) []ValidationError {
	var errs []ValidationError

	validateData(cfg.Data, &errs)

	if len(cfg.Stacks) == 0 {
		errs = append(errs, ValidationError{Field: "stacks", Message: "at least one stack is required"})
	}

	if _, err := time.ParseDuration(cfg.Defaults.Timeout); cfg.Defaults.Timeout != "" && err != nil {
		errs = append(errs, ValidationError{Field: "defaults.timeout", Message: fmt.Sprintf("invalid duration %q", cfg.Defaults.Timeout)})
	}

	stackIDs := make(map[string]bool)
	for i, st := range cfg.Stacks {
		prefix := fmt.Sprintf("stacks[%d]", i)

		switch {
		case st.ID == "":
			errs = append(errs, ValidationError{Field: prefix + ".id", Message: "is required"})
		case !stackIDRe.MatchString(st.ID):
			errs = append(errs, ValidationError{Field: prefix + ".id", Message: fmt.Sprintf("invalid stack id %q", st.ID)})
		case stackIDs[st.ID]:
			errs = append(errs, ValidationError{Field: prefix + ".id", Message: fmt.Sprintf("duplicate stack ID %q", st.ID)})
		}
		stackIDs[st.ID] = true

		if st.Repo == "" {
			errs = append(errs, ValidationError{Field: prefix + ".repo", Message: "is required"})
		} else if !repoRe.MatchString(st.Repo) {
			errs = append(errs, ValidationError{Field: prefix + ".repo", Message: fmt.Sprintf("must be owner/name, got %q", st.Repo)})
		}

		suiteNames := make(map[string]bool)
		for j, su := range st.Suites {
			sp := fmt.Sprintf("%s.suites[%d]", prefix, j)
			if su.Name == "" {
				errs = append(errs, ValidationError{Field: sp + ".name", Message: "is required"})
			} else if suiteNames[su.Name] {
				errs = append(errs, ValidationError{Field: sp + ".name", Message: fmt.Sprintf("duplicate suite name %q", su.Name)})
			}
			suiteNames[su.Name] = true

			if su.Command == "" {
				errs = append(errs, ValidationError{Field: sp + ".command", Message: "is required"})
			}
			if su.Parser != "" && !recognizedParsers[su.Parser] {
				errs = append(errs, ValidationError{Field: sp + ".parser", Message: fmt.Sprintf("unrecognized parser %q", su.Parser)})
			}
			if su.Timeout != "" {
				if d, err := time.ParseDuration(su.Timeout); err != nil || d <= 0 {
					errs = append(errs, ValidationError{Field: sp + ".timeout", Message: fmt.Sprintf("invalid duration %q", su.Timeout)})
				}
			}
		}
	}

	if ds := cfg.Dashboard.DefaultStack; ds != "" && !stackIDs[ds] {
		errs = append(errs, ValidationError{Field: "dashboard.default_stack", Message: fmt.Sprintf("references undefined stack %q", ds)})
	}
	if tz := cfg.Dashboard.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, ValidationError{Field: "dashboard.timezone", Message: fmt.Sprintf("unknown timezone %q", tz)})
		}
	}

	return errs
}

func validateData(d DataConfig, errs *[]ValidationError) {
	if !recognizedSources[d.Source] {
		*errs = append(*errs, ValidationError{Field: "data.source", Message: fmt.Sprintf("unrecognized source %q", d.Source)})
		return
	}
	switch d.Source {
	case SourceRemote:
		if d.RemoteURL == "" {
			*errs = append(*errs, ValidationError{Field: "data.remote_url", Message: "is required for remote source"})
		}
	case SourceSQLite:
		if d.SQLitePath == "" {
			*errs = append(*errs, ValidationError{Field: "data.sqlite_path", Message: "is required for sqlite source"})
		}
	case SourcePostgres:
		if d.PostgresDSN == "" {
			*errs = append(*errs, ValidationError{Field: "data.postgres_dsn", Message: "is required for postgres source"})
		}
	}
}
