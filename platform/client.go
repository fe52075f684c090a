/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"remedyops.dev/remedy/remediation"
	"remedyops.dev/remedy/retry"
)

const defaultTimeout = 10 * time.Second

// Option customizes the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithRetryConfig overrides the backoff applied to transient upstream errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(cl *Client) { cl.retry = cfg }
}

// Client is an HTTP remediation.TargetSource.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	retry   retry.Config
}

var _ remediation.TargetSource = (*Client)(nil)

// New constructs a Client for the platform API at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
		retry:   retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errTransient marks failures worth retrying: network errors and 5xx/429
// responses.
var errTransient = errors.New("transient upstream error")

// Target implements remediation.TargetSource.
func (c *Client) Target(ctx context.Context, typ remediation.TargetType, id string) (*remediation.Target, error) {
	return retry.Do(ctx, c.retry, "fetch_target",
		func(err error) bool { return errors.Is(err, errTransient) },
		func() (*remediation.Target, error) {
			return c.target(ctx, typ, id)
		})
}

func (c *Client) target(ctx context.Context, typ remediation.TargetType, id string) (*remediation.Target, error) {
	url := fmt.Sprintf("%s/api/v1/%ss/%s", c.baseURL, typ, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s (%w): %v", typ, id, errTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, remediation.ErrTargetNotFound
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetching %s %s: status %d: %w", typ, id, resp.StatusCode, errTransient)
	default:
		return nil, fmt.Errorf("fetching %s %s: unexpected status %d", typ, id, resp.StatusCode)
	}

	var target remediation.Target
	if err := json.NewDecoder(resp.Body).Decode(&target); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", typ, id, err)
	}
	target.Type = typ
	if target.ID == "" {
		target.ID = id
	}
	return &target, nil
}
