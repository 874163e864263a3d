package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

//go:embed mock/*.json
var mockFS embed.FS

// MockSource serves the fixture histories embedded in the binary. It backs
// the dashboard's mock mode so the UI can be developed without CI data.
type MockSource struct {
	fsys fs.FS
}

// NewMockSource returns a MockSource over the embedded fixtures.
func NewMockSource() *MockSource {
	return &MockSource{fsys: mockFS}
}

// LoadHistory returns the fixture for stack, or an empty history if there is none.
func (s *MockSource) LoadHistory(ctx context.Context, stack string) (history.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateStack(stack); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(s.fsys, path.Join("mock", stack+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return history.History{}, nil
		}
		return nil, fmt.Errorf("read mock %s: %w", stack, err)
	}
	return history.Unmarshal(data)
}

// Stacks lists the stacks with a fixture.
func (s *MockSource) Stacks() ([]string, error) {
	matches, err := fs.Glob(s.fsys, "mock/*.json")
	if err != nil {
		return nil, err
	}
	stacks := make([]string, 0, len(matches))
	for _, m := range matches {
		stacks = append(stacks, strings.TrimSuffix(path.Base(m), ".json"))
	}
	sort.Strings(stacks)
	return stacks, nil
}

// IsMock reports whether src serves fixture data.
func IsMock(src Source) bool {
	_, ok := src.(*MockSource)
	return ok
}
