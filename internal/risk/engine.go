// Package risk correlates scanner evidence with compliance controls and
// synthesizes deduplicated risk and remediation-task records. The engine is
// a pure function of the evidence set plus injected keyword tables; create
// calls are gated behind dry-run.
package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/compliancehq/comply-agent/internal/comply"
	"github.com/compliancehq/comply-agent/internal/events"
	"github.com/compliancehq/comply-agent/internal/evidence"
)

// RiskWriter is the slice of the compliance API the engine mutates through.
type RiskWriter interface {
	CreateRisk(ctx context.Context, input comply.CreateRiskInput) (*comply.Risk, error)
	CreateTask(ctx context.Context, input comply.CreateTaskInput) (*comply.Task, error)
}

// DryRunID is the placeholder id reported for entities a dry run would
// have created.
const DryRunID = "(dry-run)"

// defaultTreatment is applied to every synthesized risk pending human
// review of the actual treatment decision.
const defaultTreatment = "NEEDS_REVIEW"

// maxListed bounds the repos and issues enumerated in a risk description.
const maxListed = 5

// Config holds the engine's injected tables and bounds.
type Config struct {
	// Mappings is the ordered issue-to-control table.
	Mappings []ControlMapping

	// Actions is the remediation lookup used for task descriptions.
	Actions []RecommendedAction

	// RecordLimit bounds how many records are read per source.
	RecordLimit int

	// MinScopes is the distinct-resource threshold that lets a
	// low-severity finding through the suppression filter.
	MinScopes int
}

// DefaultConfig returns the production tables and bounds.
func DefaultConfig() Config {
	return Config{
		Mappings:    DefaultControlMappings(),
		Actions:     DefaultRecommendedActions(),
		RecordLimit: 50,
		MinScopes:   3,
	}
}

// Engine runs evidence-to-risk correlation.
type Engine struct {
	store  evidence.Store
	writer RiskWriter
	cfg    Config
	sink   events.Sink
}

// NewEngine creates a correlation engine. sink may be nil, in which case
// events go to the structured log.
func NewEngine(store evidence.Store, writer RiskWriter, cfg Config, sink events.Sink) *Engine {
	if cfg.RecordLimit <= 0 {
		cfg.RecordLimit = 50
	}
	if cfg.MinScopes <= 0 {
		cfg.MinScopes = 3
	}
	if len(cfg.Mappings) == 0 {
		cfg.Mappings = DefaultControlMappings()
	}
	if len(cfg.Actions) == 0 {
		cfg.Actions = DefaultRecommendedActions()
	}
	if sink == nil {
		sink = events.LogSink{Level: zerolog.InfoLevel}
	}
	return &Engine{store: store, writer: writer, cfg: cfg, sink: sink}
}

// RunRequest parameterizes one correlation run.
type RunRequest struct {
	OrganizationID string

	// Source restricts the run to one scanner; empty scans all sources.
	Source evidence.Source

	// DryRun previews the plan without calling the API.
	DryRun bool
}

// CreatedRisk reports one risk the run created (or would create).
type CreatedRisk struct {
	RiskID    string `json:"riskId"`
	Name      string `json:"name"`
	ControlID string `json:"controlId"`
}

// CreatedTask reports one remediation task the run created.
type CreatedTask struct {
	TaskID string `json:"taskId"`
	Name   string `json:"name"`
}

// SkippedFinding reports one control the run considered but did not open a
// risk for, with the reason.
type SkippedFinding struct {
	ControlID string `json:"controlId"`
	Reason    string `json:"reason"`
}

// Result is the terminal output of one correlation run. It always covers
// every control considered; partial failures are recorded, never raised.
type Result struct {
	Risks   []CreatedRisk    `json:"risks"`
	Tasks   []CreatedTask    `json:"tasks"`
	Skipped []SkippedFinding `json:"skipped"`
}

// AggregatedFinding is the per-control rollup built during one run.
type AggregatedFinding struct {
	ControlID   string
	ControlName string
	Issues      []string // distinct, insertion-ordered
	Scopes      []string // distinct affected resources, insertion-ordered
	Severity    Severity

	issueSet map[string]struct{}
	scopeSet map[string]struct{}
}

func newAggregatedFinding(m ControlMapping) *AggregatedFinding {
	return &AggregatedFinding{
		ControlID:   m.ControlID,
		ControlName: m.ControlName,
		Severity:    SeverityLow,
		issueSet:    make(map[string]struct{}),
		scopeSet:    make(map[string]struct{}),
	}
}

// merge folds one issue into the finding. Severity only escalates.
func (f *AggregatedFinding) merge(issue, scope string, sev Severity) {
	if _, dup := f.issueSet[issue]; !dup {
		f.issueSet[issue] = struct{}{}
		f.Issues = append(f.Issues, issue)
	}
	if scope != "" {
		if _, dup := f.scopeSet[scope]; !dup {
			f.scopeSet[scope] = struct{}{}
			f.Scopes = append(f.Scopes, scope)
		}
	}
	if sev > f.Severity {
		f.Severity = sev
	}
}

// Run executes one correlation pass: read evidence, aggregate findings per
// control, filter, and create risks plus companion tasks. Creation
// failures are recorded in the result and never abort the batch.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*Result, error) {
	if req.Source != "" && !req.Source.Valid() {
		return nil, fmt.Errorf("unknown evidence source %q", req.Source)
	}

	sources := evidence.Sources
	if req.Source != "" {
		sources = []evidence.Source{req.Source}
	}

	findings, err := e.correlate(ctx, sources)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Risks:   []CreatedRisk{},
		Tasks:   []CreatedTask{},
		Skipped: []SkippedFinding{},
	}

	for _, f := range findings {
		if reason, suppressed := e.suppress(f); suppressed {
			result.Skipped = append(result.Skipped, SkippedFinding{ControlID: f.ControlID, Reason: reason})
			e.sink.Emit(events.New(events.TypeRiskSkipped, map[string]interface{}{
				"control_id": f.ControlID,
				"reason":     reason,
			}))
			continue
		}
		e.createForFinding(ctx, req, f, result)
	}

	log.Info().
		Int("risks", len(result.Risks)).
		Int("tasks", len(result.Tasks)).
		Int("skipped", len(result.Skipped)).
		Bool("dry_run", req.DryRun).
		Msg("correlation run completed")
	return result, nil
}

// correlate reads bounded evidence per source and builds the per-control
// rollups in first-seen control order.
func (e *Engine) correlate(ctx context.Context, sources []evidence.Source) ([]*AggregatedFinding, error) {
	byControl := make(map[string]*AggregatedFinding)
	var ordered []*AggregatedFinding

	for _, src := range sources {
		records, err := e.store.ListEvidence(ctx, evidence.Query{Source: src, Limit: e.cfg.RecordLimit})
		if err != nil {
			return nil, fmt.Errorf("list %s evidence: %w", src, err)
		}

		for _, rec := range records {
			if rec.Summary.Status == evidence.StatusPass {
				continue
			}
			if rec.IsOrganizationSummary() {
				continue
			}

			scope := rec.Scope()
			for _, issue := range rec.Summary.Issues {
				mapping, ok := MatchControl(e.cfg.Mappings, issue)
				if !ok {
					log.Debug().Str("issue", issue).Msg("issue matched no control, skipping")
					continue
				}

				f, exists := byControl[mapping.ControlID]
				if !exists {
					f = newAggregatedFinding(mapping)
					byControl[mapping.ControlID] = f
					ordered = append(ordered, f)
				}
				f.merge(issue, scope, ClassifySeverity(issue))
			}
		}
	}
	return ordered, nil
}

// suppress applies the low-value filter: a finding survives when its
// severity is at least medium or it spans enough distinct resources.
func (e *Engine) suppress(f *AggregatedFinding) (string, bool) {
	if f.Severity >= SeverityMedium || len(f.Scopes) >= e.cfg.MinScopes {
		return "", false
	}
	return fmt.Sprintf("low severity and only %d affected resource(s)", len(f.Scopes)), true
}

// createForFinding synthesizes and (unless dry-run) creates the risk and
// its companion remediation task for one surviving finding.
func (e *Engine) createForFinding(ctx context.Context, req RunRequest, f *AggregatedFinding, result *Result) {
	riskName := fmt.Sprintf("[%s] %s - Compliance Gap", f.ControlID, f.ControlName)
	likelihood, impact := f.Severity.LikelihoodImpact()
	taskName := "Remediate " + riskName

	if req.DryRun {
		result.Risks = append(result.Risks, CreatedRisk{RiskID: DryRunID, Name: riskName, ControlID: f.ControlID})
		result.Tasks = append(result.Tasks, CreatedTask{TaskID: DryRunID, Name: taskName})
		e.sink.Emit(events.New(events.TypeRiskCreated, map[string]interface{}{
			"control_id": f.ControlID,
			"risk_name":  riskName,
			"dry_run":    true,
		}))
		return
	}

	risk, err := e.writer.CreateRisk(ctx, comply.CreateRiskInput{
		OrganizationID: req.OrganizationID,
		Name:           riskName,
		Description:    buildRiskDescription(f),
		Treatment:      defaultTreatment,
		Likelihood:     likelihood,
		Impact:         impact,
	})
	if err != nil {
		log.Error().Err(err).Str("control_id", f.ControlID).Msg("risk creation failed")
		result.Skipped = append(result.Skipped, SkippedFinding{
			ControlID: f.ControlID,
			Reason:    fmt.Sprintf("risk creation failed: %s", err),
		})
		e.sink.Emit(events.New(events.TypeRiskSkipped, map[string]interface{}{
			"control_id": f.ControlID,
			"error":      err.Error(),
		}))
		return
	}

	result.Risks = append(result.Risks, CreatedRisk{RiskID: risk.ID, Name: riskName, ControlID: f.ControlID})
	e.sink.Emit(events.New(events.TypeRiskCreated, map[string]interface{}{
		"control_id": f.ControlID,
		"risk_id":    risk.ID,
		"risk_name":  riskName,
		"severity":   f.Severity.String(),
	}))

	task, err := e.writer.CreateTask(ctx, comply.CreateTaskInput{
		OrganizationID: req.OrganizationID,
		Name:           taskName,
		Description:    buildTaskDescription(riskName, matchActions(e.cfg.Actions, f.Issues)),
	})
	if err != nil {
		// The risk exists; only the companion task is absent.
		log.Warn().Err(err).Str("control_id", f.ControlID).Msg("task creation failed, risk kept")
		e.sink.Emit(events.New(events.TypeTaskFailed, map[string]interface{}{
			"control_id": f.ControlID,
			"risk_id":    risk.ID,
			"error":      err.Error(),
		}))
		return
	}

	result.Tasks = append(result.Tasks, CreatedTask{TaskID: task.ID, Name: taskName})
	e.sink.Emit(events.New(events.TypeTaskCreated, map[string]interface{}{
		"task_id":   task.ID,
		"task_name": taskName,
	}))
}

// bulletList renders up to max items as Markdown bullets with a "+N more"
// suffix for the remainder.
func bulletList(items []string, max int) string {
	var b strings.Builder
	for i, item := range items {
		if i == max {
			fmt.Fprintf(&b, "- +%d more\n", len(items)-max)
			break
		}
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return b.String()
}

func buildRiskDescription(f *AggregatedFinding) string {
	var b strings.Builder
	b.WriteString("Automated compliance gap detected from collected security evidence.\n\n")
	fmt.Fprintf(&b, "**Severity:** %s\n\n", f.Severity)
	if len(f.Scopes) > 0 {
		b.WriteString("**Affected resources:**\n")
		b.WriteString(bulletList(f.Scopes, maxListed))
		b.WriteString("\n")
	}
	b.WriteString("**Issues found:**\n")
	b.WriteString(bulletList(f.Issues, maxListed))
	return b.String()
}

func buildTaskDescription(riskName string, actions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Remediation steps for %q:\n\n", riskName)
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	return b.String()
}
