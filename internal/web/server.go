// Package web serves the ecosystem CI dashboard and its JSON API.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/lucasnoah/ecosystemci/internal/deploy"
	"github.com/lucasnoah/ecosystemci/internal/history"
	"github.com/lucasnoah/ecosystemci/internal/store"
)

//go:embed templates
var templateFS embed.FS

var funcMap = template.FuncMap{
	"badgeClass": func(status history.Status) string {
		return "badge badge-" + string(status)
	},
	"chipClass": func(status history.Status) string {
		return "chip chip-" + string(status)
	},
	"dotClass": func(status history.Status) string {
		return "dot dot-" + string(status)
	},
	"relTime": relTime,
}

// Options holds the optional parts of a Server.
type Options struct {
	Port int
	// BuildHookURL enables POST /api/deploy. Empty answers 500 there.
	BuildHookURL string
	// Mock marks the page as showing fixture data.
	Mock bool
	// HTTPClient is used for the build hook; nil uses a default client.
	HTTPClient deploy.HTTPDoer
}

// Server is the read-only dashboard server.
type Server struct {
	src       store.Source
	events    store.EventReader
	stacks    []config.Stack
	dashboard config.DashboardConfig
	loc       *time.Location
	opts      Options

	dashboardTmpl *template.Template
}

// NewServer creates a Server over src for the stacks in cfg.
func NewServer(src store.Source, cfg *config.EcosystemConfig, opts Options) *Server {
	loc := time.UTC
	if cfg.Dashboard.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Dashboard.Timezone); err == nil {
			loc = l
		} else {
			log.Printf("web: unknown timezone %q, using UTC", cfg.Dashboard.Timezone)
		}
	}
	s := &Server{
		src:           src,
		stacks:        cfg.Stacks,
		dashboard:     cfg.Dashboard,
		loc:           loc,
		opts:          opts,
		dashboardTmpl: mustParseTmpl("base.html", "dashboard.html"),
	}
	if er, ok := src.(store.EventReader); ok {
		s.events = er
	}
	if !opts.Mock {
		s.opts.Mock = store.IsMock(src)
	}
	return s
}

func mustParseTmpl(names ...string) *template.Template {
	patterns := make([]string, len(names))
	for i, n := range names {
		patterns[i] = "templates/" + n
	}
	return template.Must(template.New("").Funcs(funcMap).ParseFS(templateFS, patterns...))
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s.handleDashboard(w, r)
	})
	mux.HandleFunc("GET /api/history/{stack}", s.handleHistoryAPI)
	mux.HandleFunc("GET /api/stats", s.handleStatsAPI)
	mux.HandleFunc("GET /api/events", s.handleEventsAPI)
	mux.HandleFunc("GET /api/events/stream", s.handleEventStream)
	mux.Handle("POST /api/deploy", deploy.Handler(s.opts.BuildHookURL, s.opts.HTTPClient))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// Start registers routes and starts listening.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.opts.Port)
	log.Printf("%s: http://localhost%s", s.title(), addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) title() string {
	if s.dashboard.Title != "" {
		return s.dashboard.Title
	}
	return "Ecosystem CI"
}

// stack resolves a requested stack id, falling back to the default stack.
func (s *Server) stack(id string) (config.Stack, bool) {
	for _, st := range s.stacks {
		if st.ID == id {
			return st, true
		}
	}
	for _, st := range s.stacks {
		if st.ID == s.dashboard.DefaultStack {
			return st, false
		}
	}
	if len(s.stacks) > 0 {
		return s.stacks[0], false
	}
	return config.Stack{}, false
}

// relTime renders an RFC 3339 timestamp as a coarse age.
func relTime(ts string) string {
	t, err := history.ParseTimestamp(ts)
	if err != nil {
		formats := []string{"2006-01-02T15:04:05Z", "2006-01-02 15:04:05"}
		for _, f := range formats {
			if parsed, perr := time.Parse(f, ts); perr == nil {
				t, err = parsed, nil
				break
			}
		}
	}
	if err != nil {
		return ts
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// repoURL links a stack's repository.
func repoURL(repo string) string {
	if repo == "" || strings.Contains(repo, "://") {
		return repo
	}
	return "https://github.com/" + repo
}
