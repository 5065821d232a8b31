package risk

import "strings"

// ControlMapping ties an issue keyword to a compliance control. The slice
// order is the match priority: the first case-insensitive substring hit
// wins.
type ControlMapping struct {
	Keyword     string
	ControlID   string
	ControlName string
}

// DefaultControlMappings returns the production issue-to-control table
// (ISO 27001:2022 Annex A identifiers). Injected at engine construction so
// tests can substitute their own tables.
func DefaultControlMappings() []ControlMapping {
	return []ControlMapping{
		{Keyword: "branch protection", ControlID: "A.8.25", ControlName: "Secure development life cycle"},
		{Keyword: "without review", ControlID: "A.8.25", ControlName: "Secure development life cycle"},
		{Keyword: "secret", ControlID: "A.8.12", ControlName: "Data leakage prevention"},
		{Keyword: "cve", ControlID: "A.8.8", ControlName: "Management of technical vulnerabilities"},
		{Keyword: "dependabot", ControlID: "A.8.8", ControlName: "Management of technical vulnerabilities"},
		{Keyword: "vulnerabilit", ControlID: "A.8.8", ControlName: "Management of technical vulnerabilities"},
		{Keyword: "2fa", ControlID: "A.8.5", ControlName: "Secure authentication"},
		{Keyword: "mfa", ControlID: "A.8.5", ControlName: "Secure authentication"},
		{Keyword: "two-factor", ControlID: "A.8.5", ControlName: "Secure authentication"},
		{Keyword: "encrypt", ControlID: "A.8.24", ControlName: "Use of cryptography"},
		{Keyword: "public", ControlID: "A.8.3", ControlName: "Information access restriction"},
		{Keyword: "permission", ControlID: "A.5.15", ControlName: "Access control"},
		{Keyword: "access", ControlID: "A.5.15", ControlName: "Access control"},
		{Keyword: "logging", ControlID: "A.8.15", ControlName: "Logging"},
		{Keyword: "audit log", ControlID: "A.8.15", ControlName: "Logging"},
		{Keyword: "backup", ControlID: "A.8.13", ControlName: "Information backup"},
	}
}

// MatchControl resolves an issue to a control via first-hit substring
// matching over the ordered table. ok is false when nothing matches.
func MatchControl(mappings []ControlMapping, issue string) (ControlMapping, bool) {
	lower := strings.ToLower(issue)
	for _, m := range mappings {
		if strings.Contains(lower, m.Keyword) {
			return m, true
		}
	}
	return ControlMapping{}, false
}

// RecommendedAction ties an issue keyword to a remediation step used in
// task descriptions.
type RecommendedAction struct {
	Keyword string
	Action  string
}

// DefaultRecommendedActions returns the production remediation lookup
// table.
func DefaultRecommendedActions() []RecommendedAction {
	return []RecommendedAction{
		{Keyword: "branch protection", Action: "Enable branch protection on the default branch and require pull request reviews"},
		{Keyword: "without review", Action: "Require at least one approving review before merging"},
		{Keyword: "secret", Action: "Rotate the exposed credential and move secrets into a managed secret store"},
		{Keyword: "cve", Action: "Upgrade the affected dependencies and enable automated vulnerability alerts"},
		{Keyword: "vulnerabilit", Action: "Upgrade the affected dependencies and enable automated vulnerability alerts"},
		{Keyword: "2fa", Action: "Enforce two-factor authentication for all organization members"},
		{Keyword: "mfa", Action: "Enforce multi-factor authentication for all organization members"},
		{Keyword: "encrypt", Action: "Enable encryption at rest and in transit for the affected resources"},
		{Keyword: "public", Action: "Restrict public access and review exposure of the affected resources"},
		{Keyword: "backup", Action: "Configure automated backups and verify restore procedures"},
	}
}

// fallbackAction is appended when no keyword in the table matches an
// aggregated finding's issues.
const fallbackAction = "Review and remediate the reported issues"

// matchActions collects every action whose keyword hits any of the issues.
// All hits are kept (one issue can span several remediation categories);
// duplicates are collapsed while preserving table order.
func matchActions(actions []RecommendedAction, issues []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, a := range actions {
		for _, issue := range issues {
			if strings.Contains(strings.ToLower(issue), a.Keyword) {
				if _, dup := seen[a.Action]; !dup {
					seen[a.Action] = struct{}{}
					out = append(out, a.Action)
				}
				break
			}
		}
	}
	if len(out) == 0 {
		out = append(out, fallbackAction)
	}
	return out
}
