/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"remedyops.dev/remedy/remediation"
)

const defaultTimeout = 10 * time.Second

// Tag keys checked, in order, when extracting an issue id from a target.
var issueIDTagKeys = []string{
	"sentry_issue_id",
	"sentry_id",
	"issue_id",
	"sentryIssueId",
	"issueId",
}

var issueURLPattern = regexp.MustCompile(`sentry\.io/.*/issues/(\d+)`)

// ExtractIssueID returns the external diagnostic issue id carried by the
// target, or "" when none is present. Tags are checked under several common
// spellings, then the description is scanned for an embedded issue URL.
func ExtractIssueID(t *remediation.Target) string {
	for _, key := range issueIDTagKeys {
		if v := t.Tag(key); v != "" {
			return v
		}
	}
	if m := issueURLPattern.FindStringSubmatch(t.Description); m != nil {
		return m[1]
	}
	return ""
}

// Option customizes the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client, including its timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout bounds the single fetch attempt.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.Timeout = d }
}

// Fetcher reads issue evidence from a Sentry-compatible API.
type Fetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

// New constructs a Fetcher for the given API base URL (e.g.
// "https://sentry.io/api/0") and bearer token.
func New(baseURL, token string, opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type issuePayload struct {
	Permalink string `json:"permalink"`
	Culprit   string `json:"culprit"`
	Metadata  struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"metadata"`
}

type eventPayload struct {
	Exception struct {
		Values []struct {
			Stacktrace struct {
				Frames []struct {
					Filename string `json:"filename"`
					Function string `json:"function"`
					Lineno   int    `json:"lineno"`
				} `json:"frames"`
			} `json:"stacktrace"`
		} `json:"values"`
	} `json:"exception"`
}

// Fetch makes one bounded attempt to retrieve evidence for the issue. The
// returned error is always a *remediation.EvidenceFetchError; callers treat
// it as non-terminal.
func (f *Fetcher) Fetch(ctx context.Context, issueID string) (*remediation.EvidenceBundle, error) {
	var issue issuePayload
	if err := f.getJSON(ctx, fmt.Sprintf("%s/issues/%s/", f.baseURL, issueID), &issue); err != nil {
		return nil, &remediation.EvidenceFetchError{IssueID: issueID, Err: err}
	}

	bundle := &remediation.EvidenceBundle{
		IssueID:       issueID,
		IssueURL:      issue.Permalink,
		ExceptionType: issue.Metadata.Type,
		Message:       issue.Metadata.Value,
	}
	if bundle.IssueURL == "" {
		bundle.IssueURL = fmt.Sprintf("%s/issues/%s/", f.baseURL, issueID)
	}

	// The top stack frame comes from the latest event. Losing it degrades
	// the bundle, not the fetch.
	var event eventPayload
	if err := f.getJSON(ctx, fmt.Sprintf("%s/issues/%s/events/latest/", f.baseURL, issueID), &event); err != nil {
		clog.FromContext(ctx).Warnf("Fetching latest event for issue %s: %v", issueID, err)
		return bundle, nil
	}
	bundle.TopStackFrame = topFrame(&event)

	return bundle, nil
}

// getJSON makes exactly one bounded request. Evidence is an enrichment, not a
// dependency, so transient failures are not retried here.
func (f *Fetcher) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("issuing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// topFrame formats the innermost frame of the most recent exception as
// "file:line in function".
func topFrame(event *eventPayload) string {
	values := event.Exception.Values
	if len(values) == 0 {
		return ""
	}
	frames := values[len(values)-1].Stacktrace.Frames
	if len(frames) == 0 {
		return ""
	}
	top := frames[len(frames)-1]
	file := top.Filename
	if file == "" {
		file = "unknown"
	}
	fn := top.Function
	if fn == "" {
		fn = "unknown"
	}
	return fmt.Sprintf("%s:%d in %s", file, top.Lineno, fn)
}
