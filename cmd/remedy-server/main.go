/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the remediation API server. It admits jobs and, in
// in-process mode, executes them on a local worker pool.
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
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/sync/errgroup"

	"remedyops.dev/remedy/api"
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
	Port        int `env:"PORT,default=8080"`
	MetricsPort int `env:"METRICS_PORT,default=2112"`

	EnableRemediation bool `env:"ENABLE_REMEDIATION,default=false"`
	CreateProposals   bool `env:"CREATE_PROPOSALS,default=false"`

	// ExecutorMode is "queue" (durable, multi-replica) or "inprocess"
	// (single replica, jobs lost on restart).
	ExecutorMode string `env:"EXECUTOR_MODE,required"`
	WorkerCount  int    `env:"WORKER_COUNT,default=4"`
	QueueBuffer  int    `env:"QUEUE_BUFFER,default=64"`

	DatabaseURL string `env:"DATABASE_URL"`

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

	store, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		clog.FatalContextf(ctx, "initializing enrichment store: %v", err)
	}
	defer cleanup()

	targets := platform.New(cfg.PlatformBaseURL, cfg.PlatformToken)

	eg, ctx := errgroup.WithContext(ctx)

	var exec executor.Executor
	switch cfg.ExecutorMode {
	case "queue":
		queue, err := executor.NewQueue(ctx, cfg.Queue)
		if err != nil {
			clog.FatalContextf(ctx, "connecting to job queue: %v", err)
		}
		defer queue.Close()
		exec = queue

	case "inprocess":
		clog.WarnContextf(ctx, "Running in in-process executor mode: queued jobs do not survive restarts")
		pipeline, err := newPipeline(cfg, store, targets)
		if err != nil {
			clog.FatalContextf(ctx, "building pipeline: %v", err)
		}
		inproc := executor.NewInProcess(pipeline, cfg.QueueBuffer)
		eg.Go(func() error { return inproc.Start(ctx, cfg.WorkerCount) })
		exec = inproc

	default:
		clog.FatalContextf(ctx, "EXECUTOR_MODE must be %q or %q, got %q", "queue", "inprocess", cfg.ExecutorMode)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	api.NewHandler(store, exec, targets, cfg.EnableRemediation).Register(e)

	metrics := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.Handler(),
	}

	eg.Go(func() error {
		clog.InfoContextf(ctx, "Starting remediation API on port %d (remediation enabled: %t)", cfg.Port, cfg.EnableRemediation)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
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
		_ = metrics.Shutdown(shutdownCtx)
		return e.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}
}

func newStore(ctx context.Context, cfg config) (enrichment.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		if cfg.ExecutorMode == "queue" {
			return nil, nil, errors.New("queue executor mode requires DATABASE_URL: workers in other processes cannot see an in-memory store")
		}
		clog.InfoContextf(ctx, "Using in-memory enrichment store")
		return enrichment.NewMemoryStore(), func() {}, nil
	}
	pg, err := enrichment.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func newPipeline(cfg config, store enrichment.Store, targets *platform.Client) (*executor.Pipeline, error) {
	res, err := newResolver(cfg)
	if err != nil {
		return nil, err
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

	return executor.NewPipeline(store, targets, res, rca.New(), opts...), nil
}

func newResolver(cfg config) (*resolver.Resolver, error) {
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
	return resolver.New(resolver.WithServiceMapping(mapping)), nil
}
