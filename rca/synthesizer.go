/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rca

import (
	"fmt"
	"strings"
	"time"

	"remedyops.dev/remedy/remediation"
)

const attribution = "*This root cause analysis was generated by Remedy's deterministic triage rules. Validate the findings before acting on them.*"

// Option customizes the Synthesizer.
type Option func(*Synthesizer)

// WithClock overrides the generation-time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// Synthesizer produces RCA reports. It holds no per-job state and is safe for
// concurrent use.
type Synthesizer struct {
	now func() time.Time
}

// New constructs a Synthesizer with the provided options.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds the summary and full markdown report for a target. The
// evidence bundle may be nil, in which case the Evidence section is omitted
// entirely. Output is identical across calls with identical arguments except
// for the generation timestamp.
func (s *Synthesizer) Synthesize(t *remediation.Target, repo remediation.RepositoryReference, ev *remediation.EvidenceBundle) *remediation.Report {
	generatedAt := s.now().UTC()

	matched := matchRules(corpus(t, ev))
	hypotheses := make([]Hypothesis, 0, len(matched)+1)
	for i, r := range matched {
		hypotheses = append(hypotheses, Hypothesis{Rank: i + 1, Likelihood: r.likelihood, Description: r.hypothesis})
	}
	hypotheses = append(hypotheses, Hypothesis{Rank: len(matched) + 1, Likelihood: fallbackRule.likelihood, Description: fallbackRule.hypothesis})

	fixCategory := fallbackRule.fixCategory
	if len(matched) > 0 {
		fixCategory = matched[0].fixCategory
	}

	summary := summarize(t, ev)

	return &remediation.Report{
		Summary:     summary,
		Markdown:    renderMarkdown(t, repo, ev, summary, hypotheses, fixCategory, generatedAt),
		FixCategory: fixCategory,
		GeneratedAt: generatedAt,
	}
}

// corpus is the lowercased text the keyword table is evaluated against.
func corpus(t *remediation.Target, ev *remediation.EvidenceBundle) string {
	parts := []string{t.Description}
	if ev != nil {
		parts = append(parts, ev.ExceptionType, ev.Message, ev.TopStackFrame)
	}
	return strings.ToLower(strings.Join(parts, "\n"))
}

func summarize(t *remediation.Target, ev *remediation.EvidenceBundle) string {
	service := t.Service
	if service == "" {
		service = "an unidentified service"
	}
	if ev != nil && ev.ExceptionType != "" {
		return fmt.Sprintf("%s: %s raised in %s.", t.Title(), ev.ExceptionType, service)
	}
	return fmt.Sprintf("%s detected in %s.", t.Title(), service)
}

func renderMarkdown(t *remediation.Target, repo remediation.RepositoryReference, ev *remediation.EvidenceBundle, summary string, hypotheses []Hypothesis, fixCategory string, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Root Cause Analysis: %s\n\n", t.Title())
	fmt.Fprintf(&b, "**Generated**: %s  \n", generatedAt.Format("2006-01-02 15:04:05 UTC"))
	if !repo.IsZero() {
		fmt.Fprintf(&b, "**Repository**: %s  \n", repo)
	}
	fmt.Fprintf(&b, "**Severity**: %s  \n", orUnknown(t.Severity))
	fmt.Fprintf(&b, "**Service**: %s  \n", orUnknown(t.Service))
	b.WriteString("\n---\n\n## Summary\n\n")
	b.WriteString(summary)
	b.WriteString("\n")

	if ev != nil {
		b.WriteString("\n## Evidence\n\n")
		fmt.Fprintf(&b, "- **Issue**: [%s](%s)\n", ev.IssueID, ev.IssueURL)
		if ev.ExceptionType != "" {
			fmt.Fprintf(&b, "- **Exception Type**: %s\n", ev.ExceptionType)
		}
		if ev.Message != "" {
			fmt.Fprintf(&b, "- **Message**: %s\n", ev.Message)
		}
		if ev.TopStackFrame != "" {
			fmt.Fprintf(&b, "- **Top Stack Frame**: `%s`\n", ev.TopStackFrame)
		}
	}

	b.WriteString("\n## Root Cause Hypotheses (Ranked)\n\n")
	for _, h := range hypotheses {
		fmt.Fprintf(&b, "%d. **%s**: %s\n", h.Rank, h.Likelihood, h.Description)
	}

	fmt.Fprintf(&b, "\n## Recommended Fix Category\n\n**%s**\n", fixCategory)

	b.WriteString("\n## Suggested Actions\n\n")
	fmt.Fprintf(&b, "- [ ] Review the ranked hypotheses against recent changes to %s\n", orUnknown(t.Service))
	fmt.Fprintf(&b, "- [ ] Apply the recommended fix category: %s\n", fixCategory)
	b.WriteString("- [ ] Reproduce the failure in a non-production environment\n")
	b.WriteString("- [ ] Add or extend monitoring for the failing code path\n")

	b.WriteString("\n---\n\n")
	b.WriteString(attribution)
	b.WriteString("\n")

	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
