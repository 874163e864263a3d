package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/ecosystemci/internal/history"
	"github.com/lucasnoah/ecosystemci/internal/store"
	"github.com/lucasnoah/ecosystemci/internal/view"
)

// ---- view models ----

type DashboardData struct {
	Title       string
	Mock        bool
	RepoURL     string
	Stacks      []StackOption
	Selected    StackOption
	Stats       StatCards
	Suites      []SuiteOption
	SuiteFilter string
	Entries     []EntryView
	Events      []EventRow
	Error       string
}

type StackOption struct {
	ID        string
	Label     string
	RepoURL   string
	URL       string
	Runs      int
	RunsLabel string
	Selected  bool
	Failed    bool // history could not be loaded
}

type StatCards struct {
	TotalRuns   string
	PassRate    string
	LastUpdated string
}

type SuiteOption struct {
	Name     string
	Label    string
	URL      string
	Selected bool
}

type EntryView struct {
	SHA         string
	ShortSHA    string
	CommitURL   string
	Message     string
	Author      string
	AvatarURL   string
	Date        string
	WorkflowURL string
	Status      history.Status
	StatusLabel string
	Suites      []SuiteChip
}

type SuiteChip struct {
	Name     string
	Status   history.Status
	Label    string
	Duration string
	Link     string
	Notes    string
}

type EventRow struct {
	Stack    string
	ShortSHA string
	Kind     string
	Status   history.Status
	Detail   string
	Time     string
}

// recentEventLimit is how many audit events the dashboard lists.
const recentEventLimit = 10

// loadAll fetches every configured stack's history concurrently. A stack that
// fails to load maps to a nil history and its error.
func (s *Server) loadAll(ctx context.Context) (map[string]history.History, map[string]error) {
	hs := make([]history.History, len(s.stacks))
	errs := make([]error, len(s.stacks))
	var g errgroup.Group
	g.SetLimit(4)
	for i, st := range s.stacks {
		g.Go(func() error {
			hs[i], errs[i] = s.load(ctx, st.ID)
			return nil
		})
	}
	g.Wait()

	histories := make(map[string]history.History, len(s.stacks))
	failures := make(map[string]error)
	for i, st := range s.stacks {
		if errs[i] != nil {
			failures[st.ID] = errs[i]
			continue
		}
		histories[st.ID] = hs[i]
	}
	return histories, failures
}

// load reads and normalizes one stack's history.
func (s *Server) load(ctx context.Context, stack string) (history.History, error) {
	h, err := s.src.LoadHistory(ctx, stack)
	if err != nil {
		return nil, err
	}
	sorted, rejected := history.Sort(h)
	for _, rej := range rejected {
		log.Printf("web: %s: skipping record %s: %v", stack, rej.Record.CommitSHA, rej.Err)
	}
	return sorted, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	selected, _ := s.stack(q.Get("stack"))
	filter := q.Get("suite")
	if filter == "" {
		filter = view.AllSuites
	}

	histories, failures := s.loadAll(r.Context())
	data := DashboardData{
		Title:       s.title(),
		Mock:        s.opts.Mock,
		RepoURL:     s.dashboard.RepoURL,
		SuiteFilter: filter,
	}

	for _, st := range s.stacks {
		h := histories[st.ID]
		opt := StackOption{
			ID:        st.ID,
			Label:     st.Label,
			RepoURL:   repoURL(st.Repo),
			URL:       dashboardURL(st.ID, view.AllSuites),
			Runs:      len(h),
			RunsLabel: view.RunCountLabel(len(h)),
			Selected:  st.ID == selected.ID,
		}
		if err, ok := failures[st.ID]; ok {
			opt.Failed = true
			opt.RunsLabel = view.Placeholder
			log.Printf("web: load %s: %v", st.ID, err)
		}
		if opt.Selected {
			data.Selected = opt
		}
		data.Stacks = append(data.Stacks, opt)
	}

	if err, ok := failures[selected.ID]; ok {
		data.Error = "Could not load history for " + selected.Label + ": " + err.Error()
	}

	h := histories[selected.ID]
	stats := view.Summarize(h)
	data.Stats = StatCards{
		TotalRuns:   view.RunCountLabel(stats.Total),
		PassRate:    view.PassRateLabel(stats),
		LastUpdated: view.LastUpdatedLabel(stats, s.loc),
	}

	data.Suites = append(data.Suites, SuiteOption{
		Name:     view.AllSuites,
		Label:    "All suites",
		URL:      dashboardURL(selected.ID, view.AllSuites),
		Selected: filter == view.AllSuites,
	})
	for _, name := range view.SuiteNames(h) {
		data.Suites = append(data.Suites, SuiteOption{
			Name:     name,
			Label:    name,
			URL:      dashboardURL(selected.ID, name),
			Selected: filter == name,
		})
	}

	for _, rec := range view.Project(h, filter) {
		data.Entries = append(data.Entries, s.entryView(rec))
	}

	if s.events != nil {
		events, err := s.events.RecentEvents(r.Context(), recentEventLimit)
		if err != nil {
			log.Printf("web: recent events: %v", err)
		}
		for _, e := range events {
			data.Events = append(data.Events, EventRow{
				Stack:    e.Stack,
				ShortSHA: view.ShortSHA(e.CommitSHA),
				Kind:     e.Kind,
				Status:   e.Status,
				Detail:   e.Detail,
				Time:     e.Timestamp,
			})
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.dashboardTmpl.ExecuteTemplate(w, "base", data); err != nil {
		log.Printf("web: render dashboard: %v", err)
	}
}

func (s *Server) entryView(rec history.CommitRecord) EntryView {
	e := EntryView{
		SHA:         rec.CommitSHA,
		ShortSHA:    view.ShortSHA(rec.CommitSHA),
		CommitURL:   view.CommitURL(rec.Repository.FullName, rec.CommitSHA),
		Message:     rec.CommitMessage,
		Author:      view.AuthorLabel(rec.Author),
		AvatarURL:   rec.Author.AvatarURL,
		Date:        view.CommitDateLabel(rec, s.loc),
		WorkflowURL: rec.WorkflowRunURL,
		Status:      rec.OverallStatus,
		StatusLabel: view.StatusLabel(rec.OverallStatus),
	}
	for _, su := range rec.Suites {
		e.Suites = append(e.Suites, SuiteChip{
			Name:     su.Name,
			Status:   su.Status,
			Label:    view.SuiteStatusLabel(su.Status),
			Duration: view.DurationLabel(su.DurationMs),
			Link:     view.SuiteLink(su, rec),
			Notes:    su.Notes,
		})
	}
	return e
}

func dashboardURL(stack, suite string) string {
	q := url.Values{}
	q.Set("stack", stack)
	if suite != "" && suite != view.AllSuites {
		q.Set("suite", suite)
	}
	return "/?" + q.Encode()
}

// ---- JSON API ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (s *Server) handleHistoryAPI(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("stack")
	if _, ok := s.stack(id); !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "unknown stack " + id})
		return
	}
	h, err := s.load(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiError{Error: err.Error()})
		return
	}
	filter := r.URL.Query().Get("suite")
	out := view.Project(h, filter)
	if out == nil {
		out = history.History{}
	}
	writeJSON(w, http.StatusOK, out)
}

// StackStats is one entry of GET /api/stats.
type StackStats struct {
	Stack string     `json:"stack"`
	Label string     `json:"label"`
	Stats view.Stats `json:"stats"`
	Error string     `json:"error,omitempty"`
}

func (s *Server) handleStatsAPI(w http.ResponseWriter, r *http.Request) {
	histories, failures := s.loadAll(r.Context())
	out := make([]StackStats, 0, len(s.stacks))
	for _, st := range s.stacks {
		entry := StackStats{Stack: st.ID, Label: st.Label, Stats: view.Summarize(histories[st.ID])}
		if err, ok := failures[st.ID]; ok {
			entry.Error = err.Error()
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

type eventJSON struct {
	ID        int64          `json:"id"`
	Stack     string         `json:"stack"`
	CommitSHA string         `json:"commitSha"`
	Status    history.Status `json:"status,omitempty"`
	Kind      string         `json:"kind"`
	Detail    string         `json:"detail,omitempty"`
	Timestamp string         `json:"timestamp"`
}

func toEventJSON(events []store.Event) []eventJSON {
	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, eventJSON{
			ID:        e.ID,
			Stack:     e.Stack,
			CommitSHA: e.CommitSHA,
			Status:    e.Status,
			Kind:      e.Kind,
			Detail:    e.Detail,
			Timestamp: e.Timestamp,
		})
	}
	return out
}

func (s *Server) handleEventsAPI(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, []eventJSON{})
		return
	}
	events, err := s.events.RecentEvents(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toEventJSON(events))
}

