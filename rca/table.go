/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rca

import "strings"

// Likelihood labels, in decreasing order of confidence.
const (
	LikelihoodLikely   = "Likely"
	LikelihoodPossible = "Possible"
	LikelihoodUnlikely = "Unlikely"
)

// Hypothesis is one ranked root-cause candidate.
type Hypothesis struct {
	Rank        int
	Likelihood  string
	Description string
}

// rule maps a keyword class to a hypothesis and fix category. Rules are
// evaluated in table order against the combined target/evidence text; the
// first match also decides the recommended fix category.
type rule struct {
	keywords    []string
	likelihood  string
	hypothesis  string
	fixCategory string
}

// hypothesisTable is the ordered keyword → hypothesis mapping. Order is the
// ranking: earlier rows outrank later ones when several match.
var hypothesisTable = []rule{{
	keywords:    []string{"nullpointerexception", "null pointer", "nil pointer", "nilpointer", "undefined is not", "null", "undefined", "nonetype"},
	likelihood:  LikelihoodLikely,
	hypothesis:  "Null or undefined value access in application code",
	fixCategory: "Null check / defensive programming",
}, {
	keywords:    []string{"timeout", "timed out", "deadline exceeded", "slow response", "latency"},
	likelihood:  LikelihoodPossible,
	hypothesis:  "External dependency failure or slow downstream call",
	fixCategory: "Timeout / retry configuration",
}, {
	keywords:    []string{"connection refused", "unavailable", "econnrefused", "upstream", "dns", "no route to host"},
	likelihood:  LikelihoodPossible,
	hypothesis:  "Unreachable external dependency or network partition",
	fixCategory: "Dependency health / connectivity fix",
}, {
	keywords:    []string{"out of memory", "oom", "memory", "heap"},
	likelihood:  LikelihoodPossible,
	hypothesis:  "Memory exhaustion or resource leak",
	fixCategory: "Memory optimization / resource limits",
}}

// fallbackRule is appended as the lowest-ranked hypothesis, and stands alone
// when nothing in the table matches.
var fallbackRule = rule{
	likelihood:  LikelihoodUnlikely,
	hypothesis:  "Configuration or environment mismatch",
	fixCategory: "Configuration review / investigation",
}

// matchRules returns the table rows whose keywords appear in text, in table
// order. Text must already be lowercased.
func matchRules(text string) []rule {
	var matched []rule
	for _, r := range hypothesisTable {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, r)
				break
			}
		}
	}
	return matched
}
