// Package history holds the per-stack commit history model and the
// reconciliation rules that merge a newly observed CI run into it.
//
// Everything here is pure: functions take values and return new values,
// never touching storage or the inputs they were given.
package history

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrMissingSuiteData is returned when a record carries no suite outcomes.
// It signals an upstream collection failure, not a mergeable record.
var ErrMissingSuiteData = errors.New("no suite outcomes observed")

// ErrInvalidTimestamp is the sentinel wrapped by InvalidTimestampError.
var ErrInvalidTimestamp = errors.New("invalid commit timestamp")

// InvalidTimestampError reports a record whose commitTimestamp does not parse.
type InvalidTimestampError struct {
	CommitSHA string
	Value     string
	Err       error
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("commit %s: invalid commit timestamp %q", e.CommitSHA, e.Value)
}

func (e *InvalidTimestampError) Unwrap() []error {
	return []error{ErrInvalidTimestamp, e.Err}
}

// RejectedRecord is a record excluded from an ordered result, with the reason.
type RejectedRecord struct {
	Record CommitRecord
	Err    error
}

// ReconcileResult is the outcome of ReconcileDetailed.
type ReconcileResult struct {
	History  History
	Rejected []RejectedRecord
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseTimestamp parses an ISO-8601 instant as written by GitHub and by Record.
func ParseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// OverallStatus derives a commit's status from its suites: failure wins over
// cancelled, which wins over success.
func OverallStatus(suites []SuiteOutcome) Status {
	cancelled := false
	for _, s := range suites {
		switch s.Status {
		case StatusFailure:
			return StatusFailure
		case StatusCancelled:
			cancelled = true
		case StatusSuccess:
		default:
			// Unknown states count as failures.
			return StatusFailure
		}
	}
	if cancelled {
		return StatusCancelled
	}
	return StatusSuccess
}

// Reconcile merges incoming into existing and returns the new history; use
// ReconcileDetailed to learn which existing records were rejected.
// A record already present for incoming's sha is replaced, not duplicated.
// Existing records with unparseable timestamps are dropped.
func Reconcile(existing History, incoming CommitRecord) (History, error) {
	res, err := ReconcileDetailed(existing, incoming)
	if err != nil {
		return nil, err
	}
	return res.History, nil
}

// ReconcileDetailed is Reconcile that also reports rejected existing records.
func ReconcileDetailed(existing History, incoming CommitRecord) (ReconcileResult, error) {
	if len(incoming.Suites) == 0 {
		return ReconcileResult{}, fmt.Errorf("commit %s: %w", incoming.CommitSHA, ErrMissingSuiteData)
	}
	for _, su := range incoming.Suites {
		if err := su.Validate(); err != nil {
			return ReconcileResult{}, fmt.Errorf("commit %s: %w", incoming.CommitSHA, err)
		}
	}
	if _, err := ParseTimestamp(incoming.CommitTimestamp); err != nil {
		return ReconcileResult{}, &InvalidTimestampError{
			CommitSHA: incoming.CommitSHA,
			Value:     incoming.CommitTimestamp,
			Err:       err,
		}
	}

	incoming.Suites = append([]SuiteOutcome(nil), incoming.Suites...)
	incoming.OverallStatus = OverallStatus(incoming.Suites)

	merged := make(History, 0, len(existing)+1)
	merged = append(merged, incoming)
	for _, r := range existing {
		if r.CommitSHA == incoming.CommitSHA {
			continue
		}
		merged = append(merged, r)
	}

	sorted, rejected := sortByTimestamp(merged)
	return ReconcileResult{History: sorted, Rejected: rejected}, nil
}

// Sort normalizes a loaded collection: the first record seen for each sha
// wins, records with unparseable timestamps are rejected, and the rest are
// stably ordered most recent first.
func Sort(h History) (History, []RejectedRecord) {
	seen := make(map[string]bool, len(h))
	deduped := make(History, 0, len(h))
	for _, r := range h {
		if seen[r.CommitSHA] {
			continue
		}
		seen[r.CommitSHA] = true
		deduped = append(deduped, r)
	}
	return sortByTimestamp(deduped)
}

// IsSorted reports whether h is ordered by timestamp descending.
// Records with unparseable timestamps make it unsorted.
func IsSorted(h History) bool {
	var prev time.Time
	for i, r := range h {
		t, err := ParseTimestamp(r.CommitTimestamp)
		if err != nil {
			return false
		}
		if i > 0 && t.After(prev) {
			return false
		}
		prev = t
	}
	return true
}

type stamped struct {
	at     time.Time
	record CommitRecord
}

func sortByTimestamp(h History) (History, []RejectedRecord) {
	var rejected []RejectedRecord
	items := make([]stamped, 0, len(h))
	for _, r := range h {
		t, err := ParseTimestamp(r.CommitTimestamp)
		if err != nil {
			rejected = append(rejected, RejectedRecord{
				Record: r,
				Err:    &InvalidTimestampError{CommitSHA: r.CommitSHA, Value: r.CommitTimestamp, Err: err},
			})
			continue
		}
		items = append(items, stamped{at: t, record: r})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].at.After(items[j].at)
	})

	out := make(History, len(items))
	for i, it := range items {
		out[i] = it.record
	}
	return out, rejected
}
