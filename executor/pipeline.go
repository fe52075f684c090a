/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"remedyops.dev/remedy/enrichment"
	"remedyops.dev/remedy/evidence"
	"remedyops.dev/remedy/ghapp"
	"remedyops.dev/remedy/proposal"
	"remedyops.dev/remedy/rca"
	"remedyops.dev/remedy/remediation"
	"remedyops.dev/remedy/resolver"
)

// EvidenceFetcher pulls diagnostic evidence for an issue ID.
type EvidenceFetcher interface {
	Fetch(ctx context.Context, issueID string) (*remediation.EvidenceBundle, error)
}

// TokenProvider mints repository-scoped installation tokens.
type TokenProvider interface {
	InstallationToken(ctx context.Context, repo remediation.RepositoryReference) (*ghapp.InstallationToken, error)
}

// ProposalIssuer opens a draft change proposal and returns its URL.
type ProposalIssuer interface {
	CreateProposal(ctx context.Context, token string, in *proposal.Input) (string, error)
}

// Runner executes one admitted job to a terminal state.
type Runner interface {
	Run(ctx context.Context, job remediation.Job) error
}

// PipelineOption customizes the Pipeline.
type PipelineOption func(*Pipeline)

// WithEvidenceFetcher enables evidence collection. Without it the pipeline
// synthesizes from target metadata alone.
func WithEvidenceFetcher(f EvidenceFetcher) PipelineOption {
	return func(p *Pipeline) { p.evidence = f }
}

// WithProposals enables draft proposal creation using the given credential
// provider and issuer.
func WithProposals(tokens TokenProvider, issuer ProposalIssuer) PipelineOption {
	return func(p *Pipeline) {
		p.tokens = tokens
		p.issuer = issuer
	}
}

// WithPipelineClock overrides the time source, for tests.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline is the job lifecycle. Every run ends in a terminal record state;
// the enrichment store is the only place outcomes are reported.
type Pipeline struct {
	store    enrichment.Store
	targets  remediation.TargetSource
	resolver *resolver.Resolver
	synth    *rca.Synthesizer

	evidence EvidenceFetcher
	tokens   TokenProvider
	issuer   ProposalIssuer

	now func() time.Time
}

var _ Runner = (*Pipeline)(nil)

// NewPipeline constructs a Pipeline over the given store, target source, and
// resolver.
func NewPipeline(store enrichment.Store, targets remediation.TargetSource, res *resolver.Resolver, synth *rca.Synthesizer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:    store,
		targets:  targets,
		resolver: res,
		synth:    synth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run implements Runner. Failures that prevent analysis mark the record
// failed with an operator-readable message and return nil: the job reached a
// terminal state, so it must not be retried. A non-nil error means the store
// itself failed.
func (p *Pipeline) Run(ctx context.Context, job remediation.Job) error {
	log := clog.FromContext(ctx).With("job", job.ID, "target", job.TargetID)
	ctx = clog.WithLogger(ctx, log)

	start := p.now()
	defer func() { jobDuration.Observe(p.now().Sub(start).Seconds()) }()

	if err := p.store.MarkProcessing(ctx, job, p.now()); err != nil {
		return fmt.Errorf("marking job processing: %w", err)
	}

	target, err := p.targets.Target(ctx, job.TargetType, job.TargetID)
	if err != nil {
		return p.fail(ctx, job, fmt.Sprintf("loading %s %s: %v", job.TargetType, job.TargetID, err))
	}

	repo, err := p.resolver.Resolve(ctx, target)
	if err != nil {
		if errors.Is(err, remediation.ErrRepositoryNotFound) {
			return p.fail(ctx, job, "could not determine target repository: no repository tag and no service mapping entry")
		}
		return p.fail(ctx, job, fmt.Sprintf("resolving repository: %v", err))
	}
	log.Infof("Resolved %s to repository %s", job.TargetID, repo)

	// Evidence is best effort: a fetch failure degrades the analysis but
	// never fails the job.
	var bundle *remediation.EvidenceBundle
	if p.evidence != nil {
		if issueID := evidence.ExtractIssueID(target); issueID != "" {
			bundle, err = p.evidence.Fetch(ctx, issueID)
			if err != nil {
				log.Warnf("Collecting evidence for issue %s: %v", issueID, err)
				bundle = nil
			}
		}
	}

	report := p.synth.Synthesize(target, repo, bundle)

	var prURL string
	if p.issuer != nil {
		prURL, err = p.propose(ctx, job, target, repo, report)
		if err != nil {
			return p.fail(ctx, job, fmt.Sprintf("creating proposal: %v", err))
		}
	}

	res := enrichment.Result{
		Summary:    report.Summary,
		FullReport: report.Markdown,
		Repository: repo.String(),
		PRURL:      prURL,
	}
	if err := p.store.Complete(ctx, job, res, p.now()); err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	jobsTotal.WithLabelValues("success").Inc()
	log.Infof("Remediation job %s succeeded", job.ID)
	return nil
}

func (p *Pipeline) propose(ctx context.Context, job remediation.Job, target *remediation.Target, repo remediation.RepositoryReference, report *remediation.Report) (string, error) {
	tok, err := p.tokens.InstallationToken(ctx, repo)
	if err != nil {
		return "", err
	}
	return p.issuer.CreateProposal(ctx, tok.Token, &proposal.Input{
		Job:      job,
		Repo:     repo,
		Title:    target.Title(),
		Severity: target.Severity,
		Service:  target.Service,
		Report:   report,
	})
}

func (p *Pipeline) fail(ctx context.Context, job remediation.Job, msg string) error {
	clog.FromContext(ctx).Errorf("Remediation job %s failed: %s", job.ID, msg)
	if err := p.store.Fail(ctx, job, msg, p.now()); err != nil {
		return fmt.Errorf("failing job: %w", err)
	}
	jobsTotal.WithLabelValues("failed").Inc()
	return nil
}
