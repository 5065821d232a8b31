// Package evidence models scanner-produced compliance findings and reads
// them from the externally-owned append-only evidence log. The core never
// writes evidence.
package evidence

import (
	"context"
	"strings"
	"time"
)

// Source identifies the scanner that produced a record.
type Source string

const (
	SourceGitHub Source = "github"
	SourceGoogle Source = "google"
	SourceAWS    Source = "aws"
)

// Sources lists every known scanner source in scan order.
var Sources = []Source{SourceGitHub, SourceGoogle, SourceAWS}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceGitHub, SourceGoogle, SourceAWS:
		return true
	}
	return false
}

// Status is the outcome of one scanner check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusPartial Status = "partial"
)

// Summary is the scanner's verdict for one record.
type Summary struct {
	Status Status   `json:"status"`
	Issues []string `json:"issues,omitempty"`
}

// Record is one scanner finding about a specific system or resource.
// Read-only to this module; the format is owned by the scanners.
type Record struct {
	Source    Source                 `json:"source"`
	Type      string                 `json:"type"`
	CheckedAt time.Time              `json:"checkedAt"`
	Summary   Summary                `json:"summary"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IsOrganizationSummary reports whether the record is a rollup of other
// records. Summaries never contribute findings; their underlying records
// already did.
func (r Record) IsOrganizationSummary() bool {
	t := strings.ToLower(r.Type)
	return strings.Contains(t, "organization") && strings.Contains(t, "summary")
}

// scopeKeys are the metadata keys that identify the affected resource, in
// preference order. Scanners use different names per source (repo for
// GitHub, domain for Google Workspace, account for AWS).
var scopeKeys = []string{"repo", "repository", "domain", "account", "accountId", "project"}

// Scope returns the affected resource identifier, or "" when the record
// carries none.
func (r Record) Scope() string {
	for _, key := range scopeKeys {
		if v, ok := r.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Query bounds a ListEvidence call.
type Query struct {
	// Source filters to one scanner; empty means all sources.
	Source Source

	// Limit bounds the result count; <=0 applies the store default.
	Limit int
}

// Store reads previously collected evidence, most-recent-first.
type Store interface {
	ListEvidence(ctx context.Context, q Query) ([]Record, error)
}
