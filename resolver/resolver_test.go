/*
Copyright 2026 RemedyOps, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"remedyops.dev/remedy/remediation"
)

func TestResolve(t *testing.T) {
	mapping := ServiceMapping{
		"payments-api": "myorg/payments-service",
		"search":       "myorg/search",
	}

	tests := []struct {
		name    string
		target  *remediation.Target
		want    remediation.RepositoryReference
		wantErr error
	}{{
		name: "repo tag wins over everything",
		target: &remediation.Target{
			Service: "payments-api",
			Tags: map[string]string{
				"repo":        "acme/checkout",
				"github_repo": "acme/other",
			},
		},
		want: remediation.RepositoryReference{Owner: "acme", Name: "checkout"},
	}, {
		name: "github_repo tag when repo tag absent",
		target: &remediation.Target{
			Service: "payments-api",
			Tags:    map[string]string{"github_repo": "acme/other"},
		},
		want: remediation.RepositoryReference{Owner: "acme", Name: "other"},
	}, {
		name: "repo tag beats matching service mapping",
		target: &remediation.Target{
			Service: "payments-api",
			Tags:    map[string]string{"repo": "acme/checkout"},
		},
		want: remediation.RepositoryReference{Owner: "acme", Name: "checkout"},
	}, {
		name:   "service mapping fallback",
		target: &remediation.Target{Service: "payments-api"},
		want:   remediation.RepositoryReference{Owner: "myorg", Name: "payments-service"},
	}, {
		name: "malformed repo tag falls through to mapping",
		target: &remediation.Target{
			Service: "search",
			Tags:    map[string]string{"repo": "not-a-repo"},
		},
		want: remediation.RepositoryReference{Owner: "myorg", Name: "search"},
	}, {
		name:    "unmapped service with no tags",
		target:  &remediation.Target{Service: "unmapped-service"},
		wantErr: remediation.ErrRepositoryNotFound,
	}, {
		name:    "no service and no tags",
		target:  &remediation.Target{Description: "something broke"},
		wantErr: remediation.ErrRepositoryNotFound,
	}}

	r := New(WithServiceMapping(mapping))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tc.target)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveEmptyMapping(t *testing.T) {
	r := New()
	_, err := r.Resolve(context.Background(), &remediation.Target{Service: "unmapped-service"})
	if !errors.Is(err, remediation.ErrRepositoryNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrRepositoryNotFound", err)
	}
}

func TestParseMappingJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		m, err := ParseMappingJSON(`{"svc": "acme/svc"}`)
		if err != nil {
			t.Fatalf("ParseMappingJSON() error = %v", err)
		}
		if m["svc"] != "acme/svc" {
			t.Errorf("m[svc] = %q, want %q", m["svc"], "acme/svc")
		}
	})

	t.Run("empty string is nil mapping", func(t *testing.T) {
		m, err := ParseMappingJSON("")
		if err != nil {
			t.Fatalf("ParseMappingJSON() error = %v", err)
		}
		if m != nil {
			t.Errorf("ParseMappingJSON(\"\") = %v, want nil", m)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if _, err := ParseMappingJSON("{nope"); err == nil {
			t.Fatal("ParseMappingJSON() should error on invalid JSON")
		}
	})
}

func TestLoadMappingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	if err := os.WriteFile(path, []byte("payments-api: myorg/payments-service\nsearch: myorg/search\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMappingFile(path)
	if err != nil {
		t.Fatalf("LoadMappingFile() error = %v", err)
	}
	want := ServiceMapping{
		"payments-api": "myorg/payments-service",
		"search":       "myorg/search",
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("LoadMappingFile() mismatch (-want +got):\n%s", diff)
	}

	if _, err := LoadMappingFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadMappingFile() should error on missing file")
	}
}
