/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package proposal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"

	"remedyops.dev/remedy/remediation"
)

const (
	// ArtifactPath is where the report lands on the proposal branch.
	ArtifactPath = "REMEDIATION.md"

	fallbackBranch = "main"
)

// Input carries everything needed to open one proposal.
type Input struct {
	Job      remediation.Job
	Repo     remediation.RepositoryReference
	Title    string
	Severity string
	Service  string
	Report   *remediation.Report
}

// Option customizes the Issuer.
type Option func(*Issuer)

// WithBaseURL points the issuer at a non-default GitHub API endpoint.
func WithBaseURL(u string) Option {
	return func(i *Issuer) { i.baseURL = u }
}

// WithEntityLinkBase sets the monitoring platform URL used to link the
// proposal back to its triggering alert or incident.
func WithEntityLinkBase(u string) Option {
	return func(i *Issuer) { i.entityLinkBase = strings.TrimRight(u, "/") }
}

// Issuer opens draft pull requests. It is stateless; each call constructs a
// client around the provided short-lived token so tokens are never shared
// across repositories.
type Issuer struct {
	baseURL        string
	entityLinkBase string
}

// New constructs an Issuer with the provided options.
func New(opts ...Option) *Issuer {
	i := &Issuer{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// BranchName returns the proposal branch for a job, derived from the target
// so that re-runs land on the same branch.
func BranchName(job remediation.Job) string {
	return fmt.Sprintf("remedy/%s-%s-rca", job.TargetType, shortID(job.TargetID))
}

// CreateProposal creates the branch, commits the report artifact, and opens
// a draft pull request. It returns the pull request URL.
func (i *Issuer) CreateProposal(ctx context.Context, token string, in *Input) (string, error) {
	log := clog.FromContext(ctx)

	gh, err := i.newClient(ctx, token)
	if err != nil {
		return "", &remediation.ProposalError{Stage: "branch", Err: err}
	}

	owner, name := in.Repo.Owner, in.Repo.Name

	baseBranch := fallbackBranch
	if repoInfo, _, err := gh.Repositories.Get(ctx, owner, name); err != nil {
		log.Warnf("Looking up default branch for %s, assuming %q: %v", in.Repo, fallbackBranch, err)
	} else if b := repoInfo.GetDefaultBranch(); b != "" {
		baseBranch = b
	}

	baseRef, _, err := gh.Git.GetRef(ctx, owner, name, "heads/"+baseBranch)
	if err != nil {
		return "", &remediation.ProposalError{Stage: "branch", Err: fmt.Errorf("reading base ref %s: %w", baseBranch, err)}
	}

	branch := BranchName(in.Job)
	newRef := github.CreateRef{
		Ref: "refs/heads/" + branch,
		SHA: baseRef.GetObject().GetSHA(),
	}
	if _, resp, err := gh.Git.CreateRef(ctx, owner, name, newRef); err != nil {
		// 422 means the branch already exists, typically left behind by an
		// earlier run for the same target. Reuse it.
		if resp == nil || resp.StatusCode != http.StatusUnprocessableEntity {
			return "", &remediation.ProposalError{Stage: "branch", Err: fmt.Errorf("creating branch %s: %w", branch, err)}
		}
		log.Infof("Branch %s already exists, reusing it", branch)
	}

	fileOpts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(fmt.Sprintf("[Remedy] Add root cause analysis for %s", in.Title)),
		Content: []byte(in.Report.Markdown),
		Branch:  github.Ptr(branch),
	}
	// A reused branch (or base) may already carry the artifact; committing
	// over it requires the existing blob SHA.
	if existing, _, resp, err := gh.Repositories.GetContents(ctx, owner, name, ArtifactPath, &github.RepositoryContentGetOptions{Ref: branch}); err == nil && existing != nil {
		fileOpts.SHA = existing.SHA
	} else if err != nil && (resp == nil || resp.StatusCode != http.StatusNotFound) {
		return "", &remediation.ProposalError{Stage: "commit", Err: fmt.Errorf("checking for existing %s: %w", ArtifactPath, err)}
	}

	_, _, err = gh.Repositories.CreateFile(ctx, owner, name, ArtifactPath, fileOpts)
	if err != nil {
		return "", &remediation.ProposalError{Stage: "commit", Err: fmt.Errorf("committing %s: %w", ArtifactPath, err)}
	}

	pr, _, err := gh.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title:               github.Ptr(fmt.Sprintf("[Remedy] Remediation for %s %s", in.Job.TargetType, shortID(in.Job.TargetID))),
		Head:                github.Ptr(branch),
		Base:                github.Ptr(baseBranch),
		Body:                github.Ptr(i.prBody(in)),
		Draft:               github.Ptr(true),
		MaintainerCanModify: github.Ptr(true),
	})
	if err != nil {
		return "", &remediation.ProposalError{Stage: "pull_request", Err: err}
	}

	log.Infof("Opened draft proposal %s for %s", pr.GetHTMLURL(), in.Repo)
	return pr.GetHTMLURL(), nil
}

func (i *Issuer) newClient(ctx context.Context, token string) (*github.Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	gh := github.NewClient(httpClient)
	if i.baseURL != "" {
		base, err := url.Parse(i.baseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		gh.BaseURL = base
	}
	return gh, nil
}

func (i *Issuer) prBody(in *Input) string {
	entity := fmt.Sprintf("%s %s", in.Job.TargetType, in.Job.TargetID)
	if i.entityLinkBase != "" {
		entity = fmt.Sprintf("[%s %s](%s/%ss/%s)", in.Job.TargetType, in.Job.TargetID, i.entityLinkBase, in.Job.TargetType, in.Job.TargetID)
	}

	var b strings.Builder
	b.WriteString("## Automated Remediation Proposal\n\n")
	fmt.Fprintf(&b, "This draft was opened by Remedy for %s.\n\n", entity)
	b.WriteString("### Root Cause Analysis\n\n")
	b.WriteString(in.Report.Summary)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "**Severity**: %s  \n", in.Severity)
	fmt.Fprintf(&b, "**Service**: %s  \n\n", in.Service)
	fmt.Fprintf(&b, "See [%s](./%s) for the full analysis.\n\n", ArtifactPath, ArtifactPath)
	b.WriteString("### Next Steps\n\n")
	b.WriteString("1. Review the analysis and validate the ranked hypotheses\n")
	b.WriteString("2. Implement the recommended fix\n")
	b.WriteString("3. Mark this pull request ready for review once validated\n")
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
