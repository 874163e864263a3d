// Package store loads and persists per-stack commit histories. Every backend
// treats a stack's history as one document: it is read whole and replaced whole.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

// ErrNotFound is returned by sources that distinguish a missing stack from
// an empty one. LoadHistory implementations map it to an empty history.
var ErrNotFound = errors.New("history not found")

// ErrReadOnly is returned when saving to a source that cannot be written.
var ErrReadOnly = errors.New("history source is read-only")

// Source reads a stack's history.
type Source interface {
	LoadHistory(ctx context.Context, stack string) (history.History, error)
}

// Sink replaces a stack's persisted history.
type Sink interface {
	SaveHistory(ctx context.Context, stack string, h history.History) error
}

// Store is a Source that can also be written.
type Store interface {
	Source
	Sink
}

// Event describes one reconciliation for backends that keep an audit trail.
type Event struct {
	// ID is assigned by the backend and increases with each event.
	ID        int64
	Stack     string
	CommitSHA string
	Status    history.Status
	Kind      string // "recorded", "rejected", "failed"
	Detail    string
	Timestamp string
}

// EventLogger is implemented by backends that record reconciliation events.
type EventLogger interface {
	LogEvent(ctx context.Context, e Event) error
}

// EventReader is implemented by backends that can list recent events.
type EventReader interface {
	RecentEvents(ctx context.Context, limit int) ([]Event, error)
}

var stackRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidateStack rejects stack names that are unsafe as file names or URL segments.
func ValidateStack(stack string) error {
	if !stackRe.MatchString(stack) {
		return fmt.Errorf("invalid stack name %q", stack)
	}
	return nil
}
