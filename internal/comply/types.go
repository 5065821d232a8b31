package comply

import "fmt"

// PageInfo is the standard connection pagination block.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor,omitempty"`
}

// Edge wraps one node of a connection.
type Edge[T any] struct {
	Cursor string `json:"cursor,omitempty"`
	Node   T      `json:"node"`
}

// Connection is the paginated list shape returned by every list operation.
// The client returns it raw; callers re-page explicitly when needed.
type Connection[T any] struct {
	Edges    []Edge[T] `json:"edges"`
	PageInfo PageInfo  `json:"pageInfo"`
}

// Nodes flattens the connection's edges into a node slice.
func (c *Connection[T]) Nodes() []T {
	nodes := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		nodes = append(nodes, e.Node)
	}
	return nodes
}

// Backend entities. Fields mirror the compliance schema; ids are opaque
// global node identifiers.

type Framework struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Control struct {
	ID           string `json:"id"`
	SectionTitle string `json:"sectionTitle"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
}

type Measure struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	State       string `json:"state,omitempty"`
}

type Risk struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Likelihood int    `json:"inherentLikelihood"`
	Impact     int    `json:"inherentImpact"`
	Treatment  string `json:"treatment,omitempty"`
}

type Task struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

type Document struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	DocumentType   string `json:"documentType,omitempty"`
	Classification string `json:"classification,omitempty"`
}

type Vendor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	WebsiteURL string `json:"websiteUrl,omitempty"`
}

type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"fullName,omitempty"`
}

// Mutation inputs. OrganizationID is required on every create.

type CreateFrameworkInput struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
}

type CreateControlInput struct {
	FrameworkID  string `json:"frameworkId"`
	SectionTitle string `json:"sectionTitle"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
}

type CreateMeasureInput struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Category       string `json:"category,omitempty"`
}

type CreateRiskInput struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Treatment      string `json:"treatment,omitempty"`
	Likelihood     int    `json:"inherentLikelihood"`
	Impact         int    `json:"inherentImpact"`
}

type CreateTaskInput struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
}

type CreateDocumentInput struct {
	OrganizationID string   `json:"organizationId"`
	Title          string   `json:"title"`
	Content        string   `json:"content,omitempty"`
	DocumentType   string   `json:"documentType,omitempty"`
	Classification string   `json:"classification,omitempty"`
	ApproverIDs    []string `json:"approverIds"`
	OwnerID        string   `json:"ownerId,omitempty"`
}

type CreateVendorInput struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	WebsiteURL     string `json:"websiteUrl,omitempty"`
}

// Mutation payloads. The backend wraps new entities in an edge; the typed
// accessors below replace duck-typed unwrapping with an explicit
// payload -> edge -> node -> id walk that fails with a decode error instead
// of a blind cast.

type frameworkPayload struct {
	FrameworkEdge *Edge[Framework] `json:"frameworkEdge"`
}

func (p *frameworkPayload) frameworkID() (string, error) {
	if p == nil || p.FrameworkEdge == nil || p.FrameworkEdge.Node.ID == "" {
		return "", fmt.Errorf("createFramework payload missing framework edge: %w", ErrMalformedPayload)
	}
	return p.FrameworkEdge.Node.ID, nil
}

type controlPayload struct {
	ControlEdge *Edge[Control] `json:"controlEdge"`
}

func (p *controlPayload) controlID() (string, error) {
	if p == nil || p.ControlEdge == nil || p.ControlEdge.Node.ID == "" {
		return "", fmt.Errorf("createControl payload missing control edge: %w", ErrMalformedPayload)
	}
	return p.ControlEdge.Node.ID, nil
}

type measurePayload struct {
	MeasureEdge *Edge[Measure] `json:"measureEdge"`
}

func (p *measurePayload) measureID() (string, error) {
	if p == nil || p.MeasureEdge == nil || p.MeasureEdge.Node.ID == "" {
		return "", fmt.Errorf("createMeasure payload missing measure edge: %w", ErrMalformedPayload)
	}
	return p.MeasureEdge.Node.ID, nil
}

type riskPayload struct {
	RiskEdge *Edge[Risk] `json:"riskEdge"`
}

func (p *riskPayload) riskID() (string, error) {
	if p == nil || p.RiskEdge == nil || p.RiskEdge.Node.ID == "" {
		return "", fmt.Errorf("createRisk payload missing risk edge: %w", ErrMalformedPayload)
	}
	return p.RiskEdge.Node.ID, nil
}

type taskPayload struct {
	TaskEdge *Edge[Task] `json:"taskEdge"`
}

func (p *taskPayload) taskID() (string, error) {
	if p == nil || p.TaskEdge == nil || p.TaskEdge.Node.ID == "" {
		return "", fmt.Errorf("createTask payload missing task edge: %w", ErrMalformedPayload)
	}
	return p.TaskEdge.Node.ID, nil
}

type documentPayload struct {
	DocumentEdge *Edge[Document] `json:"documentEdge"`
}

func (p *documentPayload) documentID() (string, error) {
	if p == nil || p.DocumentEdge == nil || p.DocumentEdge.Node.ID == "" {
		return "", fmt.Errorf("createDocument payload missing document edge: %w", ErrMalformedPayload)
	}
	return p.DocumentEdge.Node.ID, nil
}

type vendorPayload struct {
	VendorEdge *Edge[Vendor] `json:"vendorEdge"`
}

func (p *vendorPayload) vendorID() (string, error) {
	if p == nil || p.VendorEdge == nil || p.VendorEdge.Node.ID == "" {
		return "", fmt.Errorf("createVendor payload missing vendor edge: %w", ErrMalformedPayload)
	}
	return p.VendorEdge.Node.ID, nil
}

// Node is the result of a generic node-by-id fetch: the typename plus the
// raw field set, left undecoded for the caller.
type Node struct {
	ID       string                 `json:"id"`
	Typename string                 `json:"__typename"`
	Fields   map[string]interface{} `json:"-"`
}
