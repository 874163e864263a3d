package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

// FileStore keeps one <stack>.json document per stack in a directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// BaseDir returns the store's root directory.
func (s *FileStore) BaseDir() string {
	return s.baseDir
}

// Path returns the document path for a stack.
func (s *FileStore) Path(stack string) string {
	return filepath.Join(s.baseDir, stack+".json")
}

// LoadHistory reads a stack's history. A missing document is an empty history.
func (s *FileStore) LoadHistory(ctx context.Context, stack string) (history.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateStack(stack); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(stack))
	if err != nil {
		if os.IsNotExist(err) {
			return history.History{}, nil
		}
		return nil, fmt.Errorf("read %s history: %w", stack, err)
	}
	h, err := history.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path(stack), err)
	}
	return h, nil
}

// SaveHistory atomically replaces a stack's document.
func (s *FileStore) SaveHistory(ctx context.Context, stack string, h history.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateStack(stack); err != nil {
		return err
	}
	data, err := history.Marshal(h)
	if err != nil {
		return err
	}
	return s.replace(stack, data)
}

// replace swaps in a stack's new document through a temp file and rename, so
// readers never see a partial history.
func (s *FileStore) replace(stack string, data []byte) error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("create history dir %s: %w", s.baseDir, err)
	}
	tmp, err := os.CreateTemp(s.baseDir, "."+stack+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("write %s history: %w", stack, err)
	}
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s history: %w", stack, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s history: %w", stack, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write %s history: %w", stack, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(stack)); err != nil {
		return fmt.Errorf("replace %s history: %w", stack, err)
	}
	committed = true
	return nil
}

// Stacks lists the stacks that have a document, sorted.
func (s *FileStore) Stacks() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}
	var stacks []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		stack := strings.TrimSuffix(name, ".json")
		if ValidateStack(stack) != nil {
			continue
		}
		stacks = append(stacks, stack)
	}
	sort.Strings(stacks)
	return stacks, nil
}
