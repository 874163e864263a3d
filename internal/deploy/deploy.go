// Package deploy triggers a rebuild of the hosted dashboard through a build hook.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMissingHook is returned when no build hook URL is configured.
var ErrMissingHook = errors.New("missing NETLIFY_BUILD_HOOK_URL environment variable")

// HTTPDoer is the subset of *http.Client used to call the hook.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HookError is a non-2xx response from the build hook.
type HookError struct {
	StatusCode int
	Body       string
}

func (e *HookError) Error() string {
	return fmt.Sprintf("failed to trigger build hook (%d): %s", e.StatusCode, e.Body)
}

const maxBody = 4096

// TriggerBuildHook POSTs to hookURL. A nil client uses a 30s-timeout http.Client.
func TriggerBuildHook(ctx context.Context, client HTTPDoer, hookURL string) error {
	if strings.TrimSpace(hookURL) == "" {
		return ErrMissingHook
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hookURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call build hook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		return &HookError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

// Handler exposes the hook as an HTTP endpoint. A missing hook answers 500,
// a failing hook answers with the hook's own status.
func Handler(hookURL string, client HTTPDoer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := TriggerBuildHook(r.Context(), client, hookURL)
		var hookErr *HookError
		switch {
		case err == nil:
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "Triggered deploy successfully.")
		case errors.Is(err, ErrMissingHook):
			http.Error(w, "Missing NETLIFY_BUILD_HOOK_URL environment variable.", http.StatusInternalServerError)
		case errors.As(err, &hookErr):
			http.Error(w, "Failed to trigger build hook: "+hookErr.Body, hookErr.StatusCode)
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
	}
}
