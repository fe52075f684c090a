/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package rca synthesizes root-cause-analysis reports from target fields and
// optional diagnostic evidence.
//
// Synthesis is deterministic: identical inputs produce byte-identical output
// except for the generation timestamp, which comes from an injectable clock.
// Hypothesis ranking is an ordered keyword table evaluated against the
// target's description and any evidence text; the table, not ad hoc
// branching, is the unit of correctness here. The markdown report has a fixed
// section order: header, summary, evidence (omitted entirely when no bundle
// was collected), ranked hypotheses, recommended fix category, suggested
// actions, attribution footer.
package rca
