package store

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

func rec(sha, ts string) history.CommitRecord {
	return history.CommitRecord{
		CommitSHA:       sha,
		CommitTimestamp: ts,
		CommitMessage:   "msg " + sha,
		Author:          history.Author{Name: "dev"},
		Repository:      history.Repository{FullName: "web-infra-dev/rspack", Name: "rspack"},
		OverallStatus:   history.StatusSuccess,
		Suites:          []history.SuiteOutcome{{Name: "nx", Status: history.StatusSuccess}},
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestFileStoreMissingIsEmpty(t *testing.T) {
	s := NewFileStore(t.TempDir())
	h, err := s.LoadHistory(context.Background(), "rspack")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if h == nil || len(h) != 0 {
		t.Errorf("LoadHistory = %v, want empty non-nil history", h)
	}
}

func TestFileStoreSaveAndLoad(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()
	want := history.History{rec("b", "2025-06-02T00:00:00Z"), rec("a", "2025-06-01T00:00:00Z")}

	if err := s.SaveHistory(ctx, "rspack", want); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	got, err := s.LoadHistory(ctx, "rspack")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 2 || got[0].CommitSHA != "b" || got[1].CommitSHA != "a" {
		t.Errorf("LoadHistory = %+v, want [b a]", got)
	}

	data, err := os.ReadFile(s.Path("rspack"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "]\n") {
		t.Error("document should end with a newline")
	}
	if !strings.Contains(string(data), "\n  {") {
		t.Error("document should be indented with two spaces")
	}
}

func TestFileStoreNoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	if err := s.SaveHistory(context.Background(), "rsbuild", history.History{}); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "rsbuild.json" {
		t.Errorf("dir entries = %v, want only rsbuild.json", entries)
	}
}

func TestFileStoreFailedReplaceKeepsNoTempFile(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory where the document belongs makes the rename fail.
	blocker := filepath.Join(dir, "rspack.json")
	if err := os.MkdirAll(filepath.Join(blocker, "keep"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := NewFileStore(dir).SaveHistory(context.Background(), "rspack", history.History{})
	if err == nil {
		t.Fatal("expected SaveHistory to fail")
	}
	if !strings.Contains(err.Error(), "rspack history") {
		t.Errorf("error %q should name the stack", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir entries = %v, want only the blocking directory", entries)
	}
}

func TestFileStoreRejectsBadStack(t *testing.T) {
	s := NewFileStore(t.TempDir())
	for _, stack := range []string{"", "../etc", "Rspack", "a/b"} {
		if _, err := s.LoadHistory(context.Background(), stack); err == nil {
			t.Errorf("LoadHistory(%q) should fail", stack)
		}
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rspack.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(dir).LoadHistory(context.Background(), "rspack"); err == nil {
		t.Fatal("expected error for corrupt document")
	}
}

func TestFileStoreStacks(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"rsbuild.json", "rspack.json", "notes.txt", "Bad Name.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stacks, err := NewFileStore(dir).Stacks()
	if err != nil {
		t.Fatalf("Stacks: %v", err)
	}
	if strings.Join(stacks, ",") != "rsbuild,rspack" {
		t.Errorf("Stacks = %v, want [rsbuild rspack]", stacks)
	}

	none, err := NewFileStore(filepath.Join(dir, "missing")).Stacks()
	if err != nil || len(none) != 0 {
		t.Errorf("Stacks on missing dir = %v, %v", none, err)
	}
}

func TestRemoteSourceLoad(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path != "/data/rspack.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"commitSha":"abc","commitTimestamp":"2025-06-01T00:00:00Z","overallStatus":"success","suites":[]}]`))
	}))
	defer srv.Close()

	src := NewRemoteSource(srv.URL+"/data/", "tok", srv.Client())
	h, err := src.LoadHistory(context.Background(), "rspack")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(h) != 1 || h[0].CommitSHA != "abc" {
		t.Errorf("LoadHistory = %+v", h)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotUA != "rstack-ecosystem-ci" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestRemoteSourceNotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h, err := NewRemoteSource(srv.URL, "", srv.Client()).LoadHistory(context.Background(), "rslib")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(h) != 0 {
		t.Errorf("LoadHistory = %v, want empty", h)
	}
}

func TestRemoteSourceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewRemoteSource(srv.URL, "", srv.Client()).LoadHistory(context.Background(), "rspack")
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error %q should carry status and body", err)
	}
}

func TestRemoteSourceIsReadOnly(t *testing.T) {
	var src Source = NewRemoteSource("http://example.invalid", "", nil)
	if _, ok := src.(Sink); ok {
		t.Error("RemoteSource should not implement Sink")
	}
}

func TestMockSource(t *testing.T) {
	src := NewMockSource()
	ctx := context.Background()

	h, err := src.LoadHistory(ctx, "rspack")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(h) == 0 {
		t.Fatal("rspack fixture should not be empty")
	}
	if !history.IsSorted(h) {
		t.Error("rspack fixture should be newest first")
	}

	empty, err := src.LoadHistory(ctx, "unknown-stack")
	if err != nil {
		t.Fatalf("LoadHistory unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown stack = %v, want empty", empty)
	}

	stacks, err := src.Stacks()
	if err != nil {
		t.Fatalf("Stacks: %v", err)
	}
	if len(stacks) < 2 || stacks[0] != "rsbuild" {
		t.Errorf("Stacks = %v", stacks)
	}
	if !IsMock(src) {
		t.Error("IsMock should report true")
	}
}

// mapSource serves fixed histories and fails for stacks listed in fail.
type mapSource struct {
	data  map[string]history.History
	fail  map[string]bool
	calls atomic.Int32
}

func (m *mapSource) LoadHistory(_ context.Context, stack string) (history.History, error) {
	m.calls.Add(1)
	if m.fail[stack] {
		return nil, errors.New("boom")
	}
	return m.data[stack], nil
}

func TestMirrorWritesAll(t *testing.T) {
	dst := NewFileStore(t.TempDir())
	src := &mapSource{data: map[string]history.History{
		"rspack":  {rec("a", "2025-06-01T00:00:00Z")},
		"rsbuild": {},
	}}

	if err := Mirror(context.Background(), src, dst, []string{"rspack", "rsbuild"}, quietLogger()); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	h, err := dst.LoadHistory(context.Background(), "rspack")
	if err != nil || len(h) != 1 {
		t.Errorf("rspack after mirror = %v, %v", h, err)
	}
	if _, err := os.Stat(dst.Path("rsbuild")); err != nil {
		t.Errorf("rsbuild.json should exist: %v", err)
	}
}

func TestMirrorKeepsExistingOnFailure(t *testing.T) {
	dst := NewFileStore(t.TempDir())
	ctx := context.Background()
	old := history.History{rec("old", "2025-01-01T00:00:00Z")}
	if err := dst.SaveHistory(ctx, "rspack", old); err != nil {
		t.Fatal(err)
	}

	src := &mapSource{
		data: map[string]history.History{"rspack": {rec("new", "2025-06-01T00:00:00Z")}},
		fail: map[string]bool{"rsbuild": true},
	}
	if err := Mirror(ctx, src, dst, []string{"rspack", "rsbuild"}, quietLogger()); err == nil {
		t.Fatal("expected mirror error")
	}

	h, err := dst.LoadHistory(ctx, "rspack")
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 1 || h[0].CommitSHA != "old" {
		t.Errorf("rspack = %+v, want untouched old history", h)
	}
	if _, err := os.Stat(dst.Path("rsbuild")); !os.IsNotExist(err) {
		t.Error("rsbuild.json should not be created on failure")
	}
}

func TestMirrorRejectsBadStack(t *testing.T) {
	src := &mapSource{}
	if err := Mirror(context.Background(), src, NewFileStore(t.TempDir()), []string{"../x"}, quietLogger()); err == nil {
		t.Fatal("expected error for invalid stack")
	}
	if src.calls.Load() != 0 {
		t.Error("no fetch should happen for invalid stacks")
	}
}
