package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

func rec(sha, ts string, status history.Status, suites ...string) history.CommitRecord {
	r := history.CommitRecord{
		CommitSHA:       sha,
		CommitTimestamp: ts,
		OverallStatus:   status,
		WorkflowRunURL:  "https://github.com/org/ci/actions/runs/9",
	}
	for _, name := range suites {
		r.Suites = append(r.Suites, history.SuiteOutcome{Name: name, Status: status})
	}
	return r
}

func TestSummarize_Empty(t *testing.T) {
	st := Summarize(nil)
	assert.Equal(t, 0, st.Total)
	assert.Equal(t, 0.0, st.PassRate)
	assert.Nil(t, st.LastUpdated)
	assert.Equal(t, Placeholder, PassRateLabel(st))
	assert.Equal(t, Placeholder, LastUpdatedLabel(st, time.UTC))
}

func TestSummarize(t *testing.T) {
	h := history.History{
		rec("c", "2024-03-01T10:30:00Z", history.StatusSuccess, "build"),
		rec("b", "2024-02-01T00:00:00Z", history.StatusFailure, "build"),
		rec("a", "2024-01-01T00:00:00Z", history.StatusCancelled, "build"),
		rec("z", "2023-12-01T00:00:00Z", history.StatusSuccess, "build"),
	}
	st := Summarize(h)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.Passed)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Cancelled)
	assert.InDelta(t, 0.5, st.PassRate, 1e-9)
	require.NotNil(t, st.LastUpdated)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), *st.LastUpdated)

	assert.Equal(t, st, Summarize(h))
	assert.Equal(t, "50.0%", PassRateLabel(st))
	assert.Equal(t, "Mar 1, 2024, 10:30 AM UTC+0", LastUpdatedLabel(st, time.UTC))
}

func TestSummarize_UnparseableHeadHasNoLastUpdated(t *testing.T) {
	st := Summarize(history.History{rec("a", "garbage", history.StatusSuccess, "build")})
	assert.Equal(t, 1, st.Total)
	assert.Nil(t, st.LastUpdated)
}

func TestProject_All(t *testing.T) {
	h := history.History{rec("a", "2024-01-01T00:00:00Z", history.StatusSuccess, "lint", "build")}
	assert.Equal(t, h, Project(h, AllSuites))
	assert.Equal(t, h, Project(h, ""))
}

func TestProject_FiltersSuites(t *testing.T) {
	h := history.History{
		rec("a", "2024-01-02T00:00:00Z", history.StatusSuccess, "lint", "build"),
		rec("b", "2024-01-01T00:00:00Z", history.StatusSuccess, "build"),
	}
	got := Project(h, "lint")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].CommitSHA)
	require.Len(t, got[0].Suites, 1)
	assert.Equal(t, "lint", got[0].Suites[0].Name)

	// Input untouched.
	assert.Len(t, h[0].Suites, 2)
	assert.Len(t, Project(h, "build"), 2)
	assert.Empty(t, Project(h, "missing"))
}

func TestSuiteNames(t *testing.T) {
	h := history.History{
		rec("a", "2024-01-02T00:00:00Z", history.StatusSuccess, "lint", "build"),
		rec("b", "2024-01-01T00:00:00Z", history.StatusSuccess, "build", "e2e"),
	}
	assert.Equal(t, []string{"build", "e2e", "lint"}, SuiteNames(h))
}

func TestAuthorLabel(t *testing.T) {
	assert.Equal(t, "Jane (jdoe)", AuthorLabel(history.Author{Name: "Jane", Login: "jdoe"}))
	assert.Equal(t, "Jane", AuthorLabel(history.Author{Name: "Jane"}))
	assert.Equal(t, "jdoe", AuthorLabel(history.Author{Login: "jdoe"}))
	assert.Equal(t, "Unknown author", AuthorLabel(history.Author{}))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "abcdef1", ShortSHA("abcdef1234567"))
	assert.Equal(t, "abc", ShortSHA("abc"))
	assert.Equal(t, "https://github.com/o/r/commit/abc", CommitURL("o/r", "abc"))

	assert.Equal(t, "", DurationLabel(nil))
	assert.Equal(t, "2s", DurationLabel(history.Int64(1500)))
	assert.Equal(t, "0s", DurationLabel(history.Int64(0)))

	assert.Equal(t, "Passed", StatusLabel(history.StatusSuccess))
	assert.Equal(t, "Cancelled", StatusLabel(history.StatusCancelled))
	assert.Equal(t, "Failed", StatusLabel("weird"))
	assert.Equal(t, "Skipped", SuiteStatusLabel(history.StatusCancelled))

	r := rec("a", "2024-01-01T00:00:00Z", history.StatusSuccess, "build")
	assert.Equal(t, r.WorkflowRunURL, SuiteLink(r.Suites[0], r))
	r.Suites[0].LogURL = "https://logs/1"
	assert.Equal(t, "https://logs/1", SuiteLink(r.Suites[0], r))

	assert.Equal(t, "No runs", RunCountLabel(0))
	assert.Equal(t, "1 run", RunCountLabel(1))
	assert.Equal(t, "1,234 runs", RunCountLabel(1234))
}

func TestFormatTimestamp_Offsets(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	assert.Equal(t, "Jan 2, 2024, 11:04 AM UTC+8", FormatTimestamp(ts, time.FixedZone("CST", 8*3600)))
	assert.Equal(t, "Jan 1, 2024, 9:34 PM UTC-5.5", FormatTimestamp(ts, time.FixedZone("X", -(5*3600+1800))))
}
