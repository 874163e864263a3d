// Package view derives read-only, display-ready projections from a stack's
// commit history: summary statistics, suite-filtered timelines and the
// label fallbacks the dashboard and CLI render.
package view

import (
	"sort"
	"time"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

// AllSuites is the filter value that selects every suite.
const AllSuites = "all"

// Stats summarizes a history for display.
type Stats struct {
	Total       int        `json:"total"`
	Passed      int        `json:"passed"`
	Failed      int        `json:"failed"`
	Cancelled   int        `json:"cancelled"`
	PassRate    float64    `json:"passRate"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

// Summarize computes Stats for h, which is expected to be sorted most recent
// first. PassRate is 0 for an empty history and LastUpdated is nil.
func Summarize(h history.History) Stats {
	st := Stats{Total: len(h)}
	if st.Total == 0 {
		return st
	}
	for _, r := range h {
		switch r.OverallStatus {
		case history.StatusSuccess:
			st.Passed++
		case history.StatusCancelled:
			st.Cancelled++
		default:
			st.Failed++
		}
	}
	st.PassRate = float64(st.Passed) / float64(st.Total)
	if t, err := history.ParseTimestamp(h[0].CommitTimestamp); err == nil {
		t = t.UTC()
		st.LastUpdated = &t
	}
	return st
}

// Project narrows h to a single suite. For AllSuites (or an empty filter) h
// is returned as is. Otherwise each record keeps only the suites named
// filter, and records left without suites are dropped. h is not modified.
func Project(h history.History, filter string) history.History {
	if filter == "" || filter == AllSuites {
		return h
	}
	out := make(history.History, 0, len(h))
	for _, r := range h {
		var kept []history.SuiteOutcome
		for _, s := range r.Suites {
			if s.Name == filter {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			continue
		}
		r.Suites = kept
		out = append(out, r)
	}
	return out
}

// SuiteNames returns the distinct suite names appearing in h, sorted.
func SuiteNames(h history.History) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range h {
		for _, s := range r.Suites {
			if s.Name == "" || seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}
