package config

// EcosystemConfig is the top-level configuration parsed from ecosystem.yaml.
type EcosystemConfig struct {
	Data      DataConfig      `yaml:"data"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Defaults  SuiteDefaults   `yaml:"defaults"`
	Stacks    []Stack         `yaml:"stacks"`
}

// DataConfig selects where stack histories are read from and written to.
type DataConfig struct {
	// Source is one of "file", "remote", "mock", "sqlite", "postgres".
	Source      string `yaml:"source"`
	Dir         string `yaml:"dir"`
	RemoteURL   string `yaml:"remote_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// DashboardConfig holds presentation settings for the web UI.
type DashboardConfig struct {
	Title        string `yaml:"title"`
	DefaultStack string `yaml:"default_stack"`
	RepoURL      string `yaml:"repo_url"`
	Timezone     string `yaml:"timezone"`
}

// SuiteDefaults holds values applied to suites that don't set their own.
type SuiteDefaults struct {
	Timeout string `yaml:"timeout"`
	Parser  string `yaml:"parser"`
	Install string `yaml:"install"`
}

// Stack is one tracked downstream project.
type Stack struct {
	ID     string  `yaml:"id"`
	Label  string  `yaml:"label"`
	Repo   string  `yaml:"repo"`
	Branch string  `yaml:"branch"`
	Dir    string  `yaml:"dir"`
	Suites []Suite `yaml:"suites"`
}

// Suite is one named test/build job run against a stack's checkout.
type Suite struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
	Parser  string `yaml:"parser"`
	Timeout string `yaml:"timeout"`
	Install string `yaml:"install"`
}

// Data source kinds.
const (
	SourceFile     = "file"
	SourceRemote   = "remote"
	SourceMock     = "mock"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Stack returns the stack with the given id.
func (c *EcosystemConfig) Stack(id string) (Stack, bool) {
	for _, s := range c.Stacks {
		if s.ID == id {
			return s, true
		}
	}
	return Stack{}, false
}

// StackIDs returns the configured stack ids in declaration order.
func (c *EcosystemConfig) StackIDs() []string {
	ids := make([]string, 0, len(c.Stacks))
	for _, s := range c.Stacks {
		ids = append(ids, s.ID)
	}
	return ids
}
