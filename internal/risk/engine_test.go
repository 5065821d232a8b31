package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compliancehq/comply-agent/internal/comply"
	"github.com/compliancehq/comply-agent/internal/events"
	"github.com/compliancehq/comply-agent/internal/evidence"
)

type fakeStore struct {
	records map[evidence.Source][]evidence.Record
}

func (s *fakeStore) ListEvidence(_ context.Context, q evidence.Query) ([]evidence.Record, error) {
	recs := s.records[q.Source]
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[:q.Limit]
	}
	return recs, nil
}

type fakeWriter struct {
	riskCalls  int
	taskCalls  int
	riskErrOn  map[string]error // risk name -> error
	taskErr    error
	riskInputs []comply.CreateRiskInput
	taskInputs []comply.CreateTaskInput
}

func (w *fakeWriter) CreateRisk(_ context.Context, input comply.CreateRiskInput) (*comply.Risk, error) {
	w.riskCalls++
	w.riskInputs = append(w.riskInputs, input)
	if err := w.riskErrOn[input.Name]; err != nil {
		return nil, err
	}
	return &comply.Risk{
		ID:         fmt.Sprintf("risk-%d", w.riskCalls),
		Name:       input.Name,
		Likelihood: input.Likelihood,
		Impact:     input.Impact,
	}, nil
}

func (w *fakeWriter) CreateTask(_ context.Context, input comply.CreateTaskInput) (*comply.Task, error) {
	w.taskCalls++
	w.taskInputs = append(w.taskInputs, input)
	if w.taskErr != nil {
		return nil, w.taskErr
	}
	return &comply.Task{ID: fmt.Sprintf("task-%d", w.taskCalls), Name: input.Name}, nil
}

func githubRecord(repo string, status evidence.Status, issues ...string) evidence.Record {
	return evidence.Record{
		Source:   evidence.SourceGitHub,
		Type:     "repo_scan",
		Summary:  evidence.Summary{Status: status, Issues: issues},
		Metadata: map[string]interface{}{"repo": repo},
	}
}

func newTestEngine(store evidence.Store, writer RiskWriter) *Engine {
	return NewEngine(store, writer, DefaultConfig(), events.NopSink{})
}

func TestEngine_Run_BranchProtectionAndCVE(t *testing.T) {
	store := &fakeStore{records: map[evidence.Source][]evidence.Record{
		evidence.SourceGitHub: {
			githubRecord("api", evidence.StatusFail, "no branch protection on main"),
			githubRecord("web", evidence.StatusFail, "Dependabot alert: critical CVE"),
		},
	}}
	writer := &fakeWriter{}

	result, err := newTestEngine(store, writer).Run(context.Background(), RunRequest{
		OrganizationID: "org-1",
		Source:         evidence.SourceGitHub,
	})
	require.NoError(t, err)

	// Medium severity bypasses the 3-resource rule; both risks open.
	require.Len(t, result.Risks, 2)
	assert.Empty(t, result.Skipped)
	assert.Len(t, result.Tasks, 2)

	assert.Equal(t, "A.8.25", result.Risks[0].ControlID)
	assert.Equal(t, "[A.8.25] Secure development life cycle - Compliance Gap", result.Risks[0].Name)
	assert.Equal(t, "A.8.8", result.Risks[1].ControlID)

	// Severity mapping: medium -> 3/3, high -> 4/4, axes always equal.
	assert.Equal(t, 3, writer.riskInputs[0].Likelihood)
	assert.Equal(t, 3, writer.riskInputs[0].Impact)
	assert.Equal(t, 4, writer.riskInputs[1].Likelihood)
	assert.Equal(t, 4, writer.riskInputs[1].Impact)
	assert.Equal(t, defaultTreatment, writer.riskInputs[0].Treatment)
}

func TestEngine_Run_IgnoresPassAndSummaries(t *testing.T) {
	store := &fakeStore{records: map[evidence.Source][]evidence.Record{
		evidence.SourceGitHub: {
			githubRecord("api", evidence.StatusPass, "secret committed to repo"),
			{
				Source:   evidence.SourceGitHub,
				Type:     "organization_summary",
				Summary:  evidence.Summary{Status: evidence.StatusFail, Issues: []string{"critical CVE everywhere"}},
				Metadata: map[string]interface{}{"repo": "all"},
			},
		},
	}}
	writer := &fakeWriter{}

	result, err := newTestEngine(store, writer).Run(context.Background(), RunRequest{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Empty(t, result.Risks)
	assert.Empty(t, result.Skipped)
	assert.Zero(t, writer.riskCalls)
}

func TestEngine_Run_DeduplicatesIssuesAcrossRecords(t *testing.T) {
	store := &fakeStore{records: map[evidence.Source][]evidence.Record{
		evidence.SourceGitHub: {
			githubRecord("api", evidence.StatusFail, "no branch protection on main"),
			githubRecord("web", evidence.StatusFail, "no branch protection on main"),
			githubRecord("infra", evidence.StatusPartial, "no branch protection on main"),
		},
	}}
	writer := &fakeWriter{}
	engine := newTestEngine(store, writer)

	findings, err := engine.correlate(context.Background(), []evidence.Source{evidence.SourceGitHub})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Len(t, findings[0].Issues, 1, "repeated issue strings collapse")
	assert.Len(t, findings[0].Scopes, 3)
}

func TestEngine_SeverityOnlyEscalates(t *testing.T) {
	f := newAggregatedFinding(ControlMapping{ControlID: "A.8.8", ControlName: "x"})
	f.merge("minor config drift", "api", SeverityLow)
	assert.Equal(t, SeverityLow, f.Severity)
	f.merge("critical CVE", "web", SeverityHigh)
	assert.Equal(t, SeverityHigh, f.Severity)
	f.merge("another low thing", "db", SeverityLow)
	assert.Equal(t, SeverityHigh, f.Severity, "severity never downgrades")
}

func TestEngine_Run_SuppressesIsolatedLowFindings(t *testing.T) {
	store := &fakeStore{records: map[evidence.Source][]evidence.Record{
		evidence.SourceGitHub: {
			githubRecord("api", evidence.StatusFail, "stale backup configuration"),
		},
	}}
	writer := &fakeWriter{}

	result, err := newTestEngine(store, writer).Run(context.Background(), RunRequest{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Empty(t, result.Risks)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "A.8.13", result.Skipped[0].ControlID)
	assert.Contains(t, result.Skipped[0].Reason, "low severity")
	assert.Zero(t, writer.riskCalls)
}

func TestEngine_Run_LowSeverityWideSpreadSurvives(t *testing.T) {
	store := &fakeStore{records: map[evidence.Source][]evidence.Record{
		evidence.SourceGitHub: {
			githubRecord("api", evidence.StatusFail, "stale backup configuration"),
			githubRecord("web", evidence.StatusFail, "stale backup configuration"),
			githubRecord("infra", evidence.StatusFail, "stale backup configuration"),
		},
	}}
	writer := &fakeWriter{}

	result, err := newTestEngine(store, writer).Run(context.Background(), RunRequest{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, result.Risks, 1)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, 2, writer.riskInputs[0].Likelihood, "low severity maps to 2/2")
}

func TestEngine_Run_DryRunMakesNoAPICalls(t *testing.T) {
	records := map[evidence.Source][]evidence.Record{
		evidence.SourceGitHub: {
			githubRecord("api", evidence.StatusFail, "no branch protection on main"),
			githubRecord("web", evidence.StatusFail, "Dependabot alert: critical CVE"),
		},
	}

	dryWriter := &fakeWriter{}
	dry, err := newTestEngine(&fakeStore{records: records}, dryWriter).
		Run(context.Background(), RunRequest{OrganizationID: "org-1", DryRun: true})
	require.NoError(t, err)

	wetWriter := &fakeWriter{}
	wet, err := newTestEngine(&fakeStore{records: records}, wetWriter).
		Run(context.Background(), RunRequest{OrganizationID: "org-1"})
	require.NoError(t, err)

	assert.Zero(t, dryWriter.riskCalls)
	assert.Zero(t, dryWriter.taskCalls)
	assert.Len(t, dry.Risks, len(wet.Risks))
	assert.Len(t, dry.Tasks, len(wet.Tasks))
	for _, r := range dry.Risks {
		assert.Equal(t, DryRunID, r.RiskID)
	}
}

func TestEngine_Run_RiskCreationFailureContinues(t *testing.T) {
	store := &fakeStore{records: map[evidence.Source][]evidence.Record{
		evidence.SourceGitHub: {
			githubRecord("api", evidence.StatusFail, "no branch protection on main"),
			githubRecord("web", evidence.StatusFail, "Dependabot alert: critical CVE"),
		},
	}}
	writer := &fakeWriter{riskErrOn: map[string]error{
		"[A.8.25] Secure development life cycle - Compliance Gap": errors.New("backend unavailable"),
	}}

	result, err := newTestEngine(store, writer).Run(context.Background(), RunRequest{OrganizationID: "org-1"})
	require.NoError(t, err, "creation failures never abort the batch")

	require.Len(t, result.Risks, 1)
	assert.Equal(t, "A.8.8", result.Risks[0].ControlID)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "A.8.25", result.Skipped[0].ControlID)
	assert.Contains(t, result.Skipped[0].Reason, "backend unavailable")
}

func TestEngine_Run_TaskFailureKeepsRisk(t *testing.T) {
	store := &fakeStore{records: map[evidence.Source][]evidence.Record{
		evidence.SourceGitHub: {
			githubRecord("api", evidence.StatusFail, "Dependabot alert: critical CVE"),
		},
	}}
	writer := &fakeWriter{taskErr: errors.New("task service down")}

	result, err := newTestEngine(store, writer).Run(context.Background(), RunRequest{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, result.Risks, 1)
	assert.Empty(t, result.Tasks, "failed task is omitted, risk stays")
	assert.Empty(t, result.Skipped)
}

func TestEngine_Run_UnknownSource(t *testing.T) {
	_, err := newTestEngine(&fakeStore{}, &fakeWriter{}).
		Run(context.Background(), RunRequest{OrganizationID: "org-1", Source: "gitlab"})
	require.Error(t, err)
}

func TestEngine_RecordSpansMultipleControls(t *testing.T) {
	store := &fakeStore{records: map[evidence.Source][]evidence.Record{
		evidence.SourceGitHub: {
			githubRecord("api", evidence.StatusFail,
				"no branch protection on main",
				"secret committed in history",
			),
		},
	}}
	writer := &fakeWriter{}
	engine := newTestEngine(store, writer)

	findings, err := engine.correlate(context.Background(), []evidence.Source{evidence.SourceGitHub})
	require.NoError(t, err)
	require.Len(t, findings, 2, "one record can feed several controls")
	assert.Equal(t, "A.8.25", findings[0].ControlID)
	assert.Equal(t, "A.8.12", findings[1].ControlID)
}

func TestMatchActions_AllHitsIncluded(t *testing.T) {
	actions := DefaultRecommendedActions()

	// One issue string can match several remediation categories; every
	// matching action is included, not just the first.
	got := matchActions(actions, []string{"secret pushed without review"})
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "review")
	assert.Contains(t, got[1], "secret store")

	fallback := matchActions(actions, []string{"completely unmapped issue"})
	require.Len(t, fallback, 1)
	assert.Equal(t, fallbackAction, fallback[0])
}

func TestBulletList_Truncation(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}
	out := bulletList(items, 5)
	assert.Contains(t, out, "- e\n")
	assert.NotContains(t, out, "- f\n")
	assert.Contains(t, out, "- +2 more\n")
	assert.Equal(t, 6, strings.Count(out, "- "))
}

func TestClassifySeverity(t *testing.T) {
	cases := []struct {
		issue string
		want  Severity
	}{
		{"Dependabot alert: critical CVE", SeverityHigh},
		{"secret committed to repo", SeverityHigh},
		{"security scanning disabled", SeverityHigh},
		{"known vulnerability in dependency", SeverityHigh},
		{"no branch protection on main", SeverityMedium},
		{"commits merged without review", SeverityMedium},
		{"stale backup configuration", SeverityLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifySeverity(tc.issue), tc.issue)
	}
}

func TestMatchControl_FirstHitWins(t *testing.T) {
	mappings := DefaultControlMappings()

	m, ok := MatchControl(mappings, "No branch protection, public access enabled")
	require.True(t, ok)
	assert.Equal(t, "A.8.25", m.ControlID, "table order is the match priority")

	_, ok = MatchControl(mappings, "nothing relevant here")
	assert.False(t, ok)
}
