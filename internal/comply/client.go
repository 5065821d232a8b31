// Package comply is a typed client for the compliance platform's GraphQL
// API. It issues organization-scoped queries and mutations, resolves opaque
// node ids, and unwraps mutation payloads into typed entities. It performs
// no retries and no caching beyond the session-lifetime profile id; errors
// propagate unmodified to the caller.
package comply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout = 30 * time.Second

	// MaxPageSize bounds every list operation. Callers needing more
	// re-page explicitly with cursors.
	MaxPageSize = 100

	defaultPageSize = 50
)

// Client issues GraphQL operations against the compliance backend.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client

	// profileIDs caches the first profile id per organization for the
	// lifetime of the client. Optimization only: lookups are idempotent.
	mu         sync.Mutex
	profileIDs map[string]string
}

// NewClient creates a compliance API client. timeout is optional - pass 0
// to use the default 30 second timeout.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		profileIDs: make(map[string]string),
	}
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlErrorEntry struct {
	Message string `json:"message"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlErrorEntry `json:"errors,omitempty"`
}

// do executes one GraphQL operation and decodes the data envelope into out.
// Backend-reported errors become *GraphQLError; transport errors are
// wrapped and returned as-is.
func (c *Client) do(ctx context.Context, operation, query string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: API error (%d): %s", operation, resp.StatusCode, string(respBody))
	}

	var envelope gqlEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("parse %s response: %w", operation, err)
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			messages[i] = e.Message
		}
		return &GraphQLError{Operation: operation, Messages: messages}
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", operation, err)
		}
	}

	log.Debug().Str("operation", operation).Msg("graphql operation completed")
	return nil
}

// clampFirst applies the page-size bounds to a caller-supplied first value.
func clampFirst(first int) int {
	if first <= 0 {
		return defaultPageSize
	}
	if first > MaxPageSize {
		return MaxPageSize
	}
	return first
}

const connectionFields = `pageInfo { hasNextPage endCursor }`

// --- Queries ---

const listFrameworksQuery = `
query ListFrameworks($organizationId: ID!, $first: Int!) {
  organization: node(id: $organizationId) {
    ... on Organization {
      frameworks(first: $first) {
        edges { node { id name description } }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

// ListFrameworks returns the organization's compliance frameworks.
func (c *Client) ListFrameworks(ctx context.Context, organizationID string, first int) (*Connection[Framework], error) {
	var out struct {
		Organization struct {
			Frameworks Connection[Framework] `json:"frameworks"`
		} `json:"organization"`
	}
	err := c.do(ctx, "ListFrameworks", listFrameworksQuery, map[string]interface{}{
		"organizationId": organizationID,
		"first":          clampFirst(first),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Organization.Frameworks, nil
}

const listControlsQuery = `
query ListControls($frameworkId: ID!, $first: Int!) {
  framework: node(id: $frameworkId) {
    ... on Framework {
      controls(first: $first) {
        edges { node { id sectionTitle name description } }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

// ListControls returns the controls of one framework.
func (c *Client) ListControls(ctx context.Context, frameworkID string, first int) (*Connection[Control], error) {
	var out struct {
		Framework struct {
			Controls Connection[Control] `json:"controls"`
		} `json:"framework"`
	}
	err := c.do(ctx, "ListControls", listControlsQuery, map[string]interface{}{
		"frameworkId": frameworkID,
		"first":       clampFirst(first),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Framework.Controls, nil
}

const listMeasuresQuery = `
query ListMeasures($organizationId: ID!, $first: Int!) {
  organization: node(id: $organizationId) {
    ... on Organization {
      measures(first: $first) {
        edges { node { id name description category state } }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

// ListMeasures returns the organization's measures (mitigations).
func (c *Client) ListMeasures(ctx context.Context, organizationID string, first int) (*Connection[Measure], error) {
	var out struct {
		Organization struct {
			Measures Connection[Measure] `json:"measures"`
		} `json:"organization"`
	}
	err := c.do(ctx, "ListMeasures", listMeasuresQuery, map[string]interface{}{
		"organizationId": organizationID,
		"first":          clampFirst(first),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Organization.Measures, nil
}

const listRisksQuery = `
query ListRisks($organizationId: ID!, $first: Int!) {
  organization: node(id: $organizationId) {
    ... on Organization {
      risks(first: $first) {
        edges { node { id name inherentLikelihood inherentImpact treatment } }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

// ListRisks returns the organization's risk register entries.
func (c *Client) ListRisks(ctx context.Context, organizationID string, first int) (*Connection[Risk], error) {
	var out struct {
		Organization struct {
			Risks Connection[Risk] `json:"risks"`
		} `json:"organization"`
	}
	err := c.do(ctx, "ListRisks", listRisksQuery, map[string]interface{}{
		"organizationId": organizationID,
		"first":          clampFirst(first),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Organization.Risks, nil
}

const listTasksQuery = `
query ListTasks($organizationId: ID!, $first: Int!) {
  organization: node(id: $organizationId) {
    ... on Organization {
      tasks(first: $first) {
        edges { node { id name state } }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

// ListTasks returns the organization's tasks.
func (c *Client) ListTasks(ctx context.Context, organizationID string, first int) (*Connection[Task], error) {
	var out struct {
		Organization struct {
			Tasks Connection[Task] `json:"tasks"`
		} `json:"organization"`
	}
	err := c.do(ctx, "ListTasks", listTasksQuery, map[string]interface{}{
		"organizationId": organizationID,
		"first":          clampFirst(first),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Organization.Tasks, nil
}

const listDocumentsQuery = `
query ListDocuments($organizationId: ID!, $first: Int!) {
  organization: node(id: $organizationId) {
    ... on Organization {
      documents(first: $first) {
        edges { node { id title documentType classification } }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

// ListDocuments returns the organization's policy documents.
func (c *Client) ListDocuments(ctx context.Context, organizationID string, first int) (*Connection[Document], error) {
	var out struct {
		Organization struct {
			Documents Connection[Document] `json:"documents"`
		} `json:"organization"`
	}
	err := c.do(ctx, "ListDocuments", listDocumentsQuery, map[string]interface{}{
		"organizationId": organizationID,
		"first":          clampFirst(first),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Organization.Documents, nil
}

const listVendorsQuery = `
query ListVendors($organizationId: ID!, $first: Int!) {
  organization: node(id: $organizationId) {
    ... on Organization {
      vendors(first: $first) {
        edges { node { id name websiteUrl } }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

// ListVendors returns the organization's vendors.
func (c *Client) ListVendors(ctx context.Context, organizationID string, first int) (*Connection[Vendor], error) {
	var out struct {
		Organization struct {
			Vendors Connection[Vendor] `json:"vendors"`
		} `json:"organization"`
	}
	err := c.do(ctx, "ListVendors", listVendorsQuery, map[string]interface{}{
		"organizationId": organizationID,
		"first":          clampFirst(first),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Organization.Vendors, nil
}

const listProfilesQuery = `
query ListProfiles($organizationId: ID!, $first: Int!) {
  organization: node(id: $organizationId) {
    ... on Organization {
      profiles(first: $first) {
        edges { node { id fullName } }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

// ListProfiles returns the organization's member profiles.
func (c *Client) ListProfiles(ctx context.Context, organizationID string, first int) (*Connection[Profile], error) {
	var out struct {
		Organization struct {
			Profiles Connection[Profile] `json:"profiles"`
		} `json:"organization"`
	}
	err := c.do(ctx, "ListProfiles", listProfilesQuery, map[string]interface{}{
		"organizationId": organizationID,
		"first":          clampFirst(first),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Organization.Profiles, nil
}

// FirstProfileID returns the organization's first profile id, used as the
// default approver/owner. The result is cached for the client's lifetime;
// repeated calls are idempotent. Returns ErrNotFound when the organization
// has no profiles.
func (c *Client) FirstProfileID(ctx context.Context, organizationID string) (string, error) {
	c.mu.Lock()
	if id, ok := c.profileIDs[organizationID]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	conn, err := c.ListProfiles(ctx, organizationID, 1)
	if err != nil {
		return "", err
	}
	if len(conn.Edges) == 0 {
		return "", fmt.Errorf("organization %s has no profiles: %w", organizationID, ErrNotFound)
	}

	id := conn.Edges[0].Node.ID
	c.mu.Lock()
	c.profileIDs[organizationID] = id
	c.mu.Unlock()
	return id, nil
}

const getNodeQuery = `
query GetNode($id: ID!) {
  node(id: $id) {
    id
    __typename
  }
}`

// GetNode fetches any backend entity by its opaque global id. Only the id
// and typename are decoded; the caller interprets the rest.
func (c *Client) GetNode(ctx context.Context, id string) (*Node, error) {
	var out struct {
		Node map[string]interface{} `json:"node"`
	}
	if err := c.do(ctx, "GetNode", getNodeQuery, map[string]interface{}{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Node == nil {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}

	node := &Node{Fields: out.Node}
	if v, ok := out.Node["id"].(string); ok {
		node.ID = v
	}
	if v, ok := out.Node["__typename"].(string); ok {
		node.Typename = v
	}
	return node, nil
}

// --- Mutations ---

const createFrameworkMutation = `
mutation CreateFramework($input: CreateFrameworkInput!) {
  createFramework(input: $input) {
    frameworkEdge { node { id name description } }
  }
}`

// CreateFramework creates a compliance framework.
func (c *Client) CreateFramework(ctx context.Context, input CreateFrameworkInput) (*Framework, error) {
	var out struct {
		CreateFramework frameworkPayload `json:"createFramework"`
	}
	if err := c.do(ctx, "CreateFramework", createFrameworkMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if _, err := out.CreateFramework.frameworkID(); err != nil {
		return nil, err
	}
	return &out.CreateFramework.FrameworkEdge.Node, nil
}

const createControlMutation = `
mutation CreateControl($input: CreateControlInput!) {
  createControl(input: $input) {
    controlEdge { node { id sectionTitle name description } }
  }
}`

// CreateControl creates a control under a framework.
func (c *Client) CreateControl(ctx context.Context, input CreateControlInput) (*Control, error) {
	var out struct {
		CreateControl controlPayload `json:"createControl"`
	}
	if err := c.do(ctx, "CreateControl", createControlMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if _, err := out.CreateControl.controlID(); err != nil {
		return nil, err
	}
	return &out.CreateControl.ControlEdge.Node, nil
}

const createMeasureMutation = `
mutation CreateMeasure($input: CreateMeasureInput!) {
  createMeasure(input: $input) {
    measureEdge { node { id name description category state } }
  }
}`

// CreateMeasure creates a measure.
func (c *Client) CreateMeasure(ctx context.Context, input CreateMeasureInput) (*Measure, error) {
	var out struct {
		CreateMeasure measurePayload `json:"createMeasure"`
	}
	if err := c.do(ctx, "CreateMeasure", createMeasureMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if _, err := out.CreateMeasure.measureID(); err != nil {
		return nil, err
	}
	return &out.CreateMeasure.MeasureEdge.Node, nil
}

const createRiskMutation = `
mutation CreateRisk($input: CreateRiskInput!) {
  createRisk(input: $input) {
    riskEdge { node { id name inherentLikelihood inherentImpact treatment } }
  }
}`

// CreateRisk creates a risk register entry.
func (c *Client) CreateRisk(ctx context.Context, input CreateRiskInput) (*Risk, error) {
	var out struct {
		CreateRisk riskPayload `json:"createRisk"`
	}
	if err := c.do(ctx, "CreateRisk", createRiskMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if _, err := out.CreateRisk.riskID(); err != nil {
		return nil, err
	}
	return &out.CreateRisk.RiskEdge.Node, nil
}

const createTaskMutation = `
mutation CreateTask($input: CreateTaskInput!) {
  createTask(input: $input) {
    taskEdge { node { id name state } }
  }
}`

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, input CreateTaskInput) (*Task, error) {
	var out struct {
		CreateTask taskPayload `json:"createTask"`
	}
	if err := c.do(ctx, "CreateTask", createTaskMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if _, err := out.CreateTask.taskID(); err != nil {
		return nil, err
	}
	return &out.CreateTask.TaskEdge.Node, nil
}

const createDocumentMutation = `
mutation CreateDocument($input: CreateDocumentInput!) {
  createDocument(input: $input) {
    documentEdge { node { id title documentType classification } }
  }
}`

// CreateDocument creates a policy document. Server-side-safe defaults are
// applied when the caller omits them: empty approver list, INTERNAL
// classification.
func (c *Client) CreateDocument(ctx context.Context, input CreateDocumentInput) (*Document, error) {
	if input.ApproverIDs == nil {
		input.ApproverIDs = []string{}
	}
	if input.Classification == "" {
		input.Classification = "INTERNAL"
	}

	var out struct {
		CreateDocument documentPayload `json:"createDocument"`
	}
	if err := c.do(ctx, "CreateDocument", createDocumentMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if _, err := out.CreateDocument.documentID(); err != nil {
		return nil, err
	}
	return &out.CreateDocument.DocumentEdge.Node, nil
}

const createVendorMutation = `
mutation CreateVendor($input: CreateVendorInput!) {
  createVendor(input: $input) {
    vendorEdge { node { id name websiteUrl } }
  }
}`

// CreateVendor creates a vendor record.
func (c *Client) CreateVendor(ctx context.Context, input CreateVendorInput) (*Vendor, error) {
	var out struct {
		CreateVendor vendorPayload `json:"createVendor"`
	}
	if err := c.do(ctx, "CreateVendor", createVendorMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if _, err := out.CreateVendor.vendorID(); err != nil {
		return nil, err
	}
	return &out.CreateVendor.VendorEdge.Node, nil
}

const assessVendorMutation = `
mutation AssessVendor($input: AssessVendorInput!) {
  assessVendor(input: $input) {
    vendorAssessment { id }
  }
}`

// TriggerVendorAssessment starts a security assessment for a vendor and
// returns the assessment id.
func (c *Client) TriggerVendorAssessment(ctx context.Context, vendorID string) (string, error) {
	var out struct {
		AssessVendor struct {
			VendorAssessment *struct {
				ID string `json:"id"`
			} `json:"vendorAssessment"`
		} `json:"assessVendor"`
	}
	err := c.do(ctx, "AssessVendor", assessVendorMutation, map[string]interface{}{
		"input": map[string]interface{}{"vendorId": vendorID},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AssessVendor.VendorAssessment == nil || out.AssessVendor.VendorAssessment.ID == "" {
		return "", fmt.Errorf("assessVendor payload missing assessment: %w", ErrMalformedPayload)
	}
	return out.AssessVendor.VendorAssessment.ID, nil
}
