/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chainguard-dev/clog"
	"gopkg.in/yaml.v3"

	"remedyops.dev/remedy/remediation"
)

// Tag keys consulted, in priority order.
const (
	TagRepo       = "repo"
	TagGitHubRepo = "github_repo"
)

// ServiceMapping is a read-only mapping from service name to "owner/name".
type ServiceMapping map[string]string

// ParseMappingJSON parses an inline JSON object of service → owner/name
// pairs, the form the mapping takes when supplied via environment variable.
func ParseMappingJSON(s string) (ServiceMapping, error) {
	if s == "" {
		return nil, nil
	}
	var m ServiceMapping
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("parsing service mapping JSON: %w", err)
	}
	return m, nil
}

// LoadMappingFile reads a YAML file of service → owner/name pairs.
func LoadMappingFile(path string) (ServiceMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading service mapping file: %w", err)
	}
	var m ServiceMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing service mapping file %s: %w", path, err)
	}
	return m, nil
}

// Option customizes the Resolver.
type Option func(*Resolver)

// WithServiceMapping installs the service-name lookup used as the lowest
// priority strategy. Later options merge over earlier ones.
func WithServiceMapping(m ServiceMapping) Option {
	return func(r *Resolver) {
		if r.mapping == nil {
			r.mapping = ServiceMapping{}
		}
		for k, v := range m {
			r.mapping[k] = v
		}
	}
}

// Resolver maps targets to repositories using the fixed strategy order.
type Resolver struct {
	mapping ServiceMapping
}

// New constructs a Resolver with the provided options.
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the repository for the target, or
// remediation.ErrRepositoryNotFound when every strategy is exhausted.
func (r *Resolver) Resolve(ctx context.Context, t *remediation.Target) (remediation.RepositoryReference, error) {
	log := clog.FromContext(ctx)

	for _, key := range []string{TagRepo, TagGitHubRepo} {
		raw := t.Tag(key)
		if raw == "" {
			continue
		}
		repo, err := remediation.ParseRepository(raw)
		if err != nil {
			log.Warnf("Skipping malformed %s tag %q: %v", key, raw, err)
			continue
		}
		log.Infof("Repository %s resolved from %s tag", repo, key)
		return repo, nil
	}

	if t.Service != "" {
		if raw, ok := r.mapping[t.Service]; ok {
			repo, err := remediation.ParseRepository(raw)
			if err != nil {
				return remediation.RepositoryReference{}, fmt.Errorf("service mapping for %q: %w", t.Service, err)
			}
			log.Infof("Repository %s resolved from service mapping for %s", repo, t.Service)
			return repo, nil
		}
	}

	return remediation.RepositoryReference{}, remediation.ErrRepositoryNotFound
}
