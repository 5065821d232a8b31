package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compliancehq/comply-agent/internal/comply"
)

// fakeAPI implements ComplianceAPI with overridable behavior per method.
type fakeAPI struct {
	listFrameworks func(ctx context.Context, orgID string, first int) (*comply.Connection[comply.Framework], error)
	createRisk     func(ctx context.Context, input comply.CreateRiskInput) (*comply.Risk, error)
	createDocument func(ctx context.Context, input comply.CreateDocumentInput) (*comply.Document, error)
	firstProfileID func(ctx context.Context, orgID string) (string, error)
}

func (f *fakeAPI) ListFrameworks(ctx context.Context, orgID string, first int) (*comply.Connection[comply.Framework], error) {
	if f.listFrameworks != nil {
		return f.listFrameworks(ctx, orgID, first)
	}
	return &comply.Connection[comply.Framework]{}, nil
}

func (f *fakeAPI) ListControls(context.Context, string, int) (*comply.Connection[comply.Control], error) {
	return &comply.Connection[comply.Control]{}, nil
}

func (f *fakeAPI) ListMeasures(context.Context, string, int) (*comply.Connection[comply.Measure], error) {
	return &comply.Connection[comply.Measure]{}, nil
}

func (f *fakeAPI) ListRisks(context.Context, string, int) (*comply.Connection[comply.Risk], error) {
	return &comply.Connection[comply.Risk]{}, nil
}

func (f *fakeAPI) ListTasks(context.Context, string, int) (*comply.Connection[comply.Task], error) {
	return &comply.Connection[comply.Task]{}, nil
}

func (f *fakeAPI) ListDocuments(context.Context, string, int) (*comply.Connection[comply.Document], error) {
	return &comply.Connection[comply.Document]{}, nil
}

func (f *fakeAPI) ListVendors(context.Context, string, int) (*comply.Connection[comply.Vendor], error) {
	return &comply.Connection[comply.Vendor]{}, nil
}

func (f *fakeAPI) CreateFramework(context.Context, comply.CreateFrameworkInput) (*comply.Framework, error) {
	return &comply.Framework{ID: "fw-1"}, nil
}

func (f *fakeAPI) CreateControl(context.Context, comply.CreateControlInput) (*comply.Control, error) {
	return &comply.Control{ID: "ctrl-1"}, nil
}

func (f *fakeAPI) CreateMeasure(context.Context, comply.CreateMeasureInput) (*comply.Measure, error) {
	return &comply.Measure{ID: "measure-1"}, nil
}

func (f *fakeAPI) CreateRisk(ctx context.Context, input comply.CreateRiskInput) (*comply.Risk, error) {
	if f.createRisk != nil {
		return f.createRisk(ctx, input)
	}
	return &comply.Risk{ID: "risk-1"}, nil
}

func (f *fakeAPI) CreateTask(context.Context, comply.CreateTaskInput) (*comply.Task, error) {
	return &comply.Task{ID: "task-1"}, nil
}

func (f *fakeAPI) CreateDocument(ctx context.Context, input comply.CreateDocumentInput) (*comply.Document, error) {
	if f.createDocument != nil {
		return f.createDocument(ctx, input)
	}
	return &comply.Document{ID: "doc-1"}, nil
}

func (f *fakeAPI) CreateVendor(context.Context, comply.CreateVendorInput) (*comply.Vendor, error) {
	return &comply.Vendor{ID: "vendor-1"}, nil
}

func (f *fakeAPI) TriggerVendorAssessment(context.Context, string) (string, error) {
	return "assessment-1", nil
}

func (f *fakeAPI) GetNode(_ context.Context, id string) (*comply.Node, error) {
	return &comply.Node{ID: id, Typename: "Risk", Fields: map[string]interface{}{"id": id}}, nil
}

func (f *fakeAPI) FirstProfileID(ctx context.Context, orgID string) (string, error) {
	if f.firstProfileID != nil {
		return f.firstProfileID(ctx, orgID)
	}
	return "profile-1", nil
}

func TestExecutor_CatalogIsStable(t *testing.T) {
	e := NewExecutor(&fakeAPI{})
	toolList := e.Tools()
	require.NotEmpty(t, toolList)

	names := make(map[string]bool)
	for _, tool := range toolList {
		assert.False(t, names[tool.Name], "duplicate tool name %s", tool.Name)
		names[tool.Name] = true
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.InputSchema["type"], tool.Name)
	}
	for _, want := range []string{
		"list_frameworks", "create_framework", "list_controls", "create_control",
		"list_risks", "create_risk", "list_tasks", "create_task",
		"list_documents", "create_document", "list_vendors", "create_vendor",
		"trigger_vendor_assessment", "get_node",
	} {
		assert.True(t, names[want], "catalog missing %s", want)
	}
}

func TestExecutor_UnknownTool(t *testing.T) {
	e := NewExecutor(&fakeAPI{})
	res := e.Execute(context.Background(), "drop_database", map[string]interface{}{})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, `unknown tool "drop_database"`)
}

func TestExecutor_MissingRequiredArgFailsClosed(t *testing.T) {
	e := NewExecutor(&fakeAPI{})
	res := e.Execute(context.Background(), "list_frameworks", map[string]interface{}{})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "organizationId")
}

func TestExecutor_HandlerErrorBecomesErrorResult(t *testing.T) {
	api := &fakeAPI{
		createRisk: func(context.Context, comply.CreateRiskInput) (*comply.Risk, error) {
			return nil, errors.New("backend exploded")
		},
	}
	e := NewExecutor(api)
	res := e.Execute(context.Background(), "create_risk", map[string]interface{}{
		"organizationId": "org-1",
		"name":           "test risk",
	})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "backend exploded")
}

func TestExecutor_SuccessSerializesJSON(t *testing.T) {
	api := &fakeAPI{
		listFrameworks: func(_ context.Context, orgID string, first int) (*comply.Connection[comply.Framework], error) {
			assert.Equal(t, "org-1", orgID)
			return &comply.Connection[comply.Framework]{
				Edges: []comply.Edge[comply.Framework]{{Node: comply.Framework{ID: "fw-1", Name: "ISO 27001"}}},
			}, nil
		},
	}
	e := NewExecutor(api)
	res := e.Execute(context.Background(), "list_frameworks", map[string]interface{}{
		"organizationId": "org-1",
	})
	require.False(t, res.IsError, res.Content)
	assert.Contains(t, res.Content, `"ISO 27001"`)
}

func TestExecutor_CreateDocumentDefaultsOwner(t *testing.T) {
	var gotOwner string
	api := &fakeAPI{
		createDocument: func(_ context.Context, input comply.CreateDocumentInput) (*comply.Document, error) {
			gotOwner = input.OwnerID
			return &comply.Document{ID: "doc-1", Title: input.Title}, nil
		},
	}
	e := NewExecutor(api)
	res := e.Execute(context.Background(), "create_document", map[string]interface{}{
		"organizationId": "org-1",
		"title":          "Acceptable Use Policy",
	})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "profile-1", gotOwner)
}

func TestExecutor_CreateDocumentNoProfiles(t *testing.T) {
	api := &fakeAPI{
		firstProfileID: func(context.Context, string) (string, error) {
			return "", comply.ErrNotFound
		},
	}
	e := NewExecutor(api)
	res := e.Execute(context.Background(), "create_document", map[string]interface{}{
		"organizationId": "org-1",
		"title":          "Policy",
	})
	assert.True(t, res.IsError)
}

func TestExecutor_DeclaresParam(t *testing.T) {
	e := NewExecutor(&fakeAPI{})
	assert.True(t, e.DeclaresParam("list_frameworks", "organizationId"))
	assert.False(t, e.DeclaresParam("get_node", "organizationId"))
	assert.False(t, e.DeclaresParam("no_such_tool", "organizationId"))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 600)
	assert.Len(t, truncate(long, 500), 503)
	assert.Equal(t, "short", truncate("short", 500))
}
