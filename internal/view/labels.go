package view

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

// Placeholder is rendered for values that are absent.
const Placeholder = "—"

var printer = message.NewPrinter(language.English)

// AuthorLabel renders an author as "name (login)", falling back to the
// login alone and then to "Unknown author".
func AuthorLabel(a history.Author) string {
	switch {
	case a.Name != "" && a.Login != "":
		return fmt.Sprintf("%s (%s)", a.Name, a.Login)
	case a.Name != "":
		return a.Name
	case a.Login != "":
		return a.Login
	default:
		return "Unknown author"
	}
}

// ShortSHA returns the 7-character abbreviation of sha.
func ShortSHA(sha string) string {
	if len(sha) <= 7 {
		return sha
	}
	return sha[:7]
}

// CommitURL links to a commit on GitHub.
func CommitURL(repoFullName, sha string) string {
	return fmt.Sprintf("https://github.com/%s/commit/%s", repoFullName, sha)
}

// DurationLabel renders a duration in whole seconds, or "" when unknown.
func DurationLabel(ms *int64) string {
	if ms == nil {
		return ""
	}
	return fmt.Sprintf("%ds", int64(math.Round(float64(*ms)/1000)))
}

// StatusLabel is the commit-level badge text.
func StatusLabel(s history.Status) string {
	switch s {
	case history.StatusSuccess:
		return "Passed"
	case history.StatusCancelled:
		return "Cancelled"
	default:
		return "Failed"
	}
}

// SuiteStatusLabel is the suite-level badge text; cancelled suites read as skipped.
func SuiteStatusLabel(s history.Status) string {
	if s == history.StatusCancelled {
		return "Skipped"
	}
	return StatusLabel(s)
}

// SuiteLink points at the suite's log, or the workflow run when there is none.
func SuiteLink(s history.SuiteOutcome, r history.CommitRecord) string {
	if s.LogURL != "" {
		return s.LogURL
	}
	return r.WorkflowRunURL
}

// PassRateLabel renders st.PassRate as a percentage, or Placeholder when
// there are no runs.
func PassRateLabel(st Stats) string {
	if st.Total == 0 {
		return Placeholder
	}
	return printer.Sprintf("%.1f%%", st.PassRate*100)
}

// RunCountLabel renders a run count the way the stack selector shows it.
func RunCountLabel(n int) string {
	if n == 0 {
		return "No runs"
	}
	if n == 1 {
		return "1 run"
	}
	return printer.Sprintf("%d runs", n)
}

// FormatTimestamp renders t in loc as "Jan 2, 2006, 3:04 PM UTC+8".
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	_, offset := t.Zone()
	hours := float64(offset) / 3600
	sign := "+"
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	return fmt.Sprintf("%s UTC%s%s", t.Format("Jan 2, 2006, 3:04 PM"), sign, formatHours(hours))
}

// LastUpdatedLabel renders st.LastUpdated in loc, or Placeholder.
func LastUpdatedLabel(st Stats, loc *time.Location) string {
	if st.LastUpdated == nil {
		return Placeholder
	}
	return FormatTimestamp(*st.LastUpdated, loc)
}

// CommitDateLabel renders a record's timestamp, or the raw value when it
// does not parse.
func CommitDateLabel(r history.CommitRecord, loc *time.Location) string {
	t, err := history.ParseTimestamp(r.CommitTimestamp)
	if err != nil {
		return r.CommitTimestamp
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Jan 2, 2006, 3:04 PM")
}

func formatHours(h float64) string {
	if h == math.Trunc(h) {
		return fmt.Sprintf("%d", int(h))
	}
	return fmt.Sprintf("%g", h)
}
