/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package ghapp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"

	"remedyops.dev/remedy/remediation"
)

// refreshSkew is how close to expiry a cached token may get before it is
// refreshed rather than reused.
const refreshSkew = 5 * time.Minute

// LoadKey resolves private key material from an inline value or a file path.
// Inline values may be raw PEM or base64-encoded PEM. Exactly one source must
// yield a key.
func LoadKey(inline, path string) ([]byte, error) {
	if inline != "" {
		if decoded, err := base64.StdEncoding.DecodeString(inline); err == nil && strings.Contains(string(decoded), "PRIVATE KEY") {
			return decoded, nil
		}
		return []byte(inline), nil
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading private key file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("no private key material provided")
}

// InstallationToken is a short-lived credential scoped to one repository's
// installation.
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}

// Option customizes the Provider.
type Option func(*Provider)

// WithBaseURL points the provider at a non-default GitHub API endpoint
// (useful for tests and GitHub Enterprise). The URL must not have a trailing
// slash.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// Provider exchanges an application identity for installation tokens.
type Provider struct {
	appID   int64
	baseURL string
	now     func() time.Time

	client *github.Client // JWT-authenticated app client

	mu     sync.Mutex
	tokens map[string]*InstallationToken // keyed by owner/name
}

// New constructs a Provider from the application id and private key PEM.
// Malformed key material yields a *remediation.AuthError.
func New(appID int64, privateKey []byte, opts ...Option) (*Provider, error) {
	p := &Provider{
		appID:  appID,
		now:    time.Now,
		tokens: map[string]*InstallationToken{},
	}
	for _, opt := range opts {
		opt(p)
	}

	tr, err := ghinstallation.NewAppsTransport(http.DefaultTransport, appID, privateKey)
	if err != nil {
		return nil, &remediation.AuthError{Reason: "failed to generate token", Err: err}
	}

	p.client = github.NewClient(&http.Client{Transport: tr})
	if p.baseURL != "" {
		tr.BaseURL = p.baseURL
		base, err := url.Parse(p.baseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		p.client.BaseURL = base
	}

	return p, nil
}

// InstallationToken returns a token scoped to the installation covering the
// repository, minting a fresh one only when no cached token exists or the
// cached token is near expiry.
func (p *Provider) InstallationToken(ctx context.Context, repo remediation.RepositoryReference) (*InstallationToken, error) {
	key := repo.String()

	p.mu.Lock()
	if tok, ok := p.tokens[key]; ok && p.now().Before(tok.ExpiresAt.Add(-refreshSkew)) {
		p.mu.Unlock()
		return tok, nil
	}
	p.mu.Unlock()

	inst, resp, err := p.client.Apps.FindRepositoryInstallation(ctx, repo.Owner, repo.Name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &remediation.AuthError{Reason: "installation not found", Err: err}
		}
		return nil, &remediation.AuthError{Reason: "failed to generate token", Err: err}
	}

	created, _, err := p.client.Apps.CreateInstallationToken(ctx, inst.GetID(), &github.InstallationTokenOptions{
		Repositories: []string{repo.Name},
	})
	if err != nil {
		return nil, &remediation.AuthError{Reason: "failed to generate token", Err: err}
	}

	tok := &InstallationToken{
		Token:     created.GetToken(),
		ExpiresAt: created.GetExpiresAt().Time,
	}

	p.mu.Lock()
	p.tokens[key] = tok
	p.mu.Unlock()

	clog.FromContext(ctx).Infof("Minted installation token for %s (installation %d, expires %s)",
		repo, inst.GetID(), tok.ExpiresAt.Format(time.RFC3339))

	return tok, nil
}
