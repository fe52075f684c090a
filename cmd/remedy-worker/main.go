/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs a remediation worker that consumes jobs from the durable
// queue and executes them.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/sync/errgroup"

	"remedyops.dev/remedy/enrichment"
	"remedyops.dev/remedy/evidence"
	"remedyops.dev/remedy/executor"
	"remedyops.dev/remedy/ghapp"
	"remedyops.dev/remedy/platform"
	"remedyops.dev/remedy/proposal"
	"remedyops.dev/remedy/rca"
	"remedyops.dev/remedy/resolver"
)

type config struct {
	MetricsPort int `env:"METRICS_PORT,default=2112"`

	CreateProposals bool `env:"CREATE_PROPOSALS,default=false"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	PlatformBaseURL string `env:"PLATFORM_BASE_URL,required"`
	PlatformToken   string `env:"PLATFORM_TOKEN"`

	ServiceRepoMapping     string `env:"SERVICE_REPO_MAPPING"`
	ServiceRepoMappingPath string `env:"SERVICE_REPO_MAPPING_PATH"`

	GitHubAppID          int64  `env:"GITHUB_APP_ID"`
	GitHubPrivateKey     string `env:"GITHUB_APP_PRIVATE_KEY"`
	GitHubPrivateKeyPath string `env:"GITHUB_APP_PRIVATE_KEY_PATH"`
	GitHubBaseURL        string `env:"GITHUB_BASE_URL"`

	EvidenceBaseURL string        `env:"EVIDENCE_BASE_URL"`
	EvidenceToken   string        `env:"EVIDENCE_API_TOKEN"`
	EvidenceTimeout time.Duration `env:"EVIDENCE_TIMEOUT,default=10s"`

	EntityLinkBase string `env:"ENTITY_LINK_BASE"`

	Queue executor.QueueConfig
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	store, err := enrichment.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		clog.FatalContextf(ctx, "initializing enrichment store: %v", err)
	}
	defer store.Close()

	pipeline, err := newPipeline(cfg, store)
	if err != nil {
		clog.FatalContextf(ctx, "building pipeline: %v", err)
	}

	queue, err := executor.NewQueue(ctx, cfg.Queue)
	if err != nil {
		clog.FatalContextf(ctx, "connecting to job queue: %v", err)
	}
	defer queue.Close()

	metrics := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.Handler(),
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		clog.InfoContextf(ctx, "Starting remediation worker (proposals enabled: %t)", cfg.CreateProposals)
		return executor.NewWorker(queue, pipeline).Run(ctx)
	})
	eg.Go(func() error {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		return metrics.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		clog.FatalContextf(ctx, "worker failed: %v", err)
	}
}

func newPipeline(cfg config, store enrichment.Store) (*executor.Pipeline, error) {
	mapping := resolver.ServiceMapping{}
	var err error
	switch {
	case cfg.ServiceRepoMappingPath != "":
		mapping, err = resolver.LoadMappingFile(cfg.ServiceRepoMappingPath)
	case cfg.ServiceRepoMapping != "":
		mapping, err = resolver.ParseMappingJSON(cfg.ServiceRepoMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("loading service repository mapping: %w", err)
	}

	var opts []executor.PipelineOption
	if cfg.EvidenceBaseURL != "" {
		opts = append(opts, executor.WithEvidenceFetcher(
			evidence.New(cfg.EvidenceBaseURL, cfg.EvidenceToken, evidence.WithTimeout(cfg.EvidenceTimeout))))
	}
	if cfg.CreateProposals {
		key, err := ghapp.LoadKey(cfg.GitHubPrivateKey, cfg.GitHubPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("loading GitHub App key: %w", err)
		}
		var ghOpts []ghapp.Option
		var issuerOpts []proposal.Option
		if cfg.GitHubBaseURL != "" {
			ghOpts = append(ghOpts, ghapp.WithBaseURL(cfg.GitHubBaseURL))
			issuerOpts = append(issuerOpts, proposal.WithBaseURL(cfg.GitHubBaseURL))
		}
		if cfg.EntityLinkBase != "" {
			issuerOpts = append(issuerOpts, proposal.WithEntityLinkBase(cfg.EntityLinkBase))
		}
		tokens, err := ghapp.New(cfg.GitHubAppID, key, ghOpts...)
		if err != nil {
			return nil, fmt.Errorf("initializing GitHub App: %w", err)
		}
		opts = append(opts, executor.WithProposals(tokens, proposal.New(issuerOpts...)))
	}

	targets := platform.New(cfg.PlatformBaseURL, cfg.PlatformToken)
	res := resolver.New(resolver.WithServiceMapping(mapping))
	return executor.NewPipeline(store, targets, res, rca.New(), opts...), nil
}
