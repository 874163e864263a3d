package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

const userAgent = "rstack-ecosystem-ci"

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 2048

// HTTPDoer is the subset of *http.Client used by RemoteSource.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteSource reads <baseURL>/<stack>.json over HTTP, typically the raw
// view of the branch CI publishes histories to.
type RemoteSource struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// NewRemoteSource creates a RemoteSource. token may be empty for public data.
func NewRemoteSource(baseURL, token string, client HTTPDoer) *RemoteSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

// URL returns the document URL for a stack.
func (s *RemoteSource) URL(stack string) string {
	return fmt.Sprintf("%s/%s.json", s.baseURL, stack)
}

// LoadHistory fetches a stack's history. 404 is an empty history.
func (s *RemoteSource) LoadHistory(ctx context.Context, stack string) (history.History, error) {
	if err := ValidateStack(stack); err != nil {
		return nil, err
	}
	url := s.URL(stack)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return history.History{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("failed to read existing history (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return history.Unmarshal(data)
}
