package tools

import (
	"context"

	"github.com/compliancehq/comply-agent/internal/comply"
	"github.com/compliancehq/comply-agent/internal/providers"
)

// Tool is the definition shape handed to the completion service.
type Tool = providers.Tool

// Schema building helpers. Schemas stay loose maps because the completion
// service consumes them as raw JSON Schema.

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func strProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func intProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": desc}
}

const (
	orgIDDesc = "Organization node id. Injected automatically when omitted."
	firstDesc = "Page size, at most 100. Defaults to 50."
)

// catalog declares the fixed tool set. Order here is the order the model
// sees.
func catalog() []Definition {
	return []Definition{
		{
			Tool: Tool{
				Name:        "list_frameworks",
				Description: "List the organization's compliance frameworks.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"first":          intProp(firstDesc),
				}, "organizationId"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				return api.ListFrameworks(ctx, orgID, intArg(input, "first", 0))
			},
		},
		{
			Tool: Tool{
				Name:        "create_framework",
				Description: "Create a new compliance framework for the organization.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"name":           strProp("Framework name, e.g. \"SOC 2\"."),
					"description":    strProp("Optional framework description."),
				}, "organizationId", "name"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				name, err := stringArg(input, "name")
				if err != nil {
					return nil, err
				}
				return api.CreateFramework(ctx, comply.CreateFrameworkInput{
					OrganizationID: orgID,
					Name:           name,
					Description:    optStringArg(input, "description"),
				})
			},
		},
		{
			Tool: Tool{
				Name:        "list_controls",
				Description: "List the controls of one compliance framework.",
				InputSchema: objectSchema(map[string]interface{}{
					"frameworkId": strProp("Framework node id."),
					"first":       intProp(firstDesc),
				}, "frameworkId"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				fwID, err := stringArg(input, "frameworkId")
				if err != nil {
					return nil, err
				}
				return api.ListControls(ctx, fwID, intArg(input, "first", 0))
			},
		},
		{
			Tool: Tool{
				Name:        "create_control",
				Description: "Create a control under a framework.",
				InputSchema: objectSchema(map[string]interface{}{
					"frameworkId":  strProp("Framework node id."),
					"sectionTitle": strProp("Control identifier, e.g. \"A.8.8\"."),
					"name":         strProp("Control name."),
					"description":  strProp("Optional control description."),
				}, "frameworkId", "sectionTitle", "name"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				fwID, err := stringArg(input, "frameworkId")
				if err != nil {
					return nil, err
				}
				section, err := stringArg(input, "sectionTitle")
				if err != nil {
					return nil, err
				}
				name, err := stringArg(input, "name")
				if err != nil {
					return nil, err
				}
				return api.CreateControl(ctx, comply.CreateControlInput{
					FrameworkID:  fwID,
					SectionTitle: section,
					Name:         name,
					Description:  optStringArg(input, "description"),
				})
			},
		},
		{
			Tool: Tool{
				Name:        "list_measures",
				Description: "List the organization's measures (mitigations).",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"first":          intProp(firstDesc),
				}, "organizationId"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				return api.ListMeasures(ctx, orgID, intArg(input, "first", 0))
			},
		},
		{
			Tool: Tool{
				Name:        "create_measure",
				Description: "Create a measure (mitigation) for the organization.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"name":           strProp("Measure name."),
					"description":    strProp("Optional measure description."),
					"category":       strProp("Optional category."),
				}, "organizationId", "name"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				name, err := stringArg(input, "name")
				if err != nil {
					return nil, err
				}
				return api.CreateMeasure(ctx, comply.CreateMeasureInput{
					OrganizationID: orgID,
					Name:           name,
					Description:    optStringArg(input, "description"),
					Category:       optStringArg(input, "category"),
				})
			},
		},
		{
			Tool: Tool{
				Name:        "list_risks",
				Description: "List the organization's risk register entries.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"first":          intProp(firstDesc),
				}, "organizationId"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				return api.ListRisks(ctx, orgID, intArg(input, "first", 0))
			},
		},
		{
			Tool: Tool{
				Name:        "create_risk",
				Description: "Create a risk register entry. Likelihood and impact range 1-5.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"name":           strProp("Risk name."),
					"description":    strProp("Optional risk description (Markdown)."),
					"treatment":      strProp("Treatment: MITIGATED, ACCEPTED, TRANSFERRED, AVOIDED or NEEDS_REVIEW."),
					"likelihood":     intProp("Inherent likelihood, 1-5."),
					"impact":         intProp("Inherent impact, 1-5."),
				}, "organizationId", "name"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				name, err := stringArg(input, "name")
				if err != nil {
					return nil, err
				}
				return api.CreateRisk(ctx, comply.CreateRiskInput{
					OrganizationID: orgID,
					Name:           name,
					Description:    optStringArg(input, "description"),
					Treatment:      optStringArg(input, "treatment"),
					Likelihood:     intArg(input, "likelihood", 3),
					Impact:         intArg(input, "impact", 3),
				})
			},
		},
		{
			Tool: Tool{
				Name:        "list_tasks",
				Description: "List the organization's tasks.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"first":          intProp(firstDesc),
				}, "organizationId"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				return api.ListTasks(ctx, orgID, intArg(input, "first", 0))
			},
		},
		{
			Tool: Tool{
				Name:        "create_task",
				Description: "Create a task for the organization.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"name":           strProp("Task name."),
					"description":    strProp("Optional task description."),
				}, "organizationId", "name"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				name, err := stringArg(input, "name")
				if err != nil {
					return nil, err
				}
				return api.CreateTask(ctx, comply.CreateTaskInput{
					OrganizationID: orgID,
					Name:           name,
					Description:    optStringArg(input, "description"),
				})
			},
		},
		{
			Tool: Tool{
				Name:        "list_documents",
				Description: "List the organization's policy documents.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"first":          intProp(firstDesc),
				}, "organizationId"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				return api.ListDocuments(ctx, orgID, intArg(input, "first", 0))
			},
		},
		{
			Tool: Tool{
				Name:        "create_document",
				Description: "Create a policy document. The organization's first profile becomes the owner when none is given.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"title":          strProp("Document title."),
					"content":        strProp("Document body (Markdown)."),
					"documentType":   strProp("Document type, e.g. POLICY or PROCEDURE."),
					"classification": strProp("Classification. Defaults to INTERNAL."),
				}, "organizationId", "title"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				title, err := stringArg(input, "title")
				if err != nil {
					return nil, err
				}
				ownerID, err := api.FirstProfileID(ctx, orgID)
				if err != nil {
					return nil, err
				}
				return api.CreateDocument(ctx, comply.CreateDocumentInput{
					OrganizationID: orgID,
					Title:          title,
					Content:        optStringArg(input, "content"),
					DocumentType:   optStringArg(input, "documentType"),
					Classification: optStringArg(input, "classification"),
					OwnerID:        ownerID,
				})
			},
		},
		{
			Tool: Tool{
				Name:        "list_vendors",
				Description: "List the organization's vendors.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"first":          intProp(firstDesc),
				}, "organizationId"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				return api.ListVendors(ctx, orgID, intArg(input, "first", 0))
			},
		},
		{
			Tool: Tool{
				Name:        "create_vendor",
				Description: "Create a vendor record.",
				InputSchema: objectSchema(map[string]interface{}{
					"organizationId": strProp(orgIDDesc),
					"name":           strProp("Vendor name."),
					"websiteUrl":     strProp("Vendor website URL."),
				}, "organizationId", "name"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				orgID, err := stringArg(input, "organizationId")
				if err != nil {
					return nil, err
				}
				name, err := stringArg(input, "name")
				if err != nil {
					return nil, err
				}
				return api.CreateVendor(ctx, comply.CreateVendorInput{
					OrganizationID: orgID,
					Name:           name,
					WebsiteURL:     optStringArg(input, "websiteUrl"),
				})
			},
		},
		{
			Tool: Tool{
				Name:        "trigger_vendor_assessment",
				Description: "Start a security assessment for a vendor.",
				InputSchema: objectSchema(map[string]interface{}{
					"vendorId": strProp("Vendor node id."),
				}, "vendorId"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				vendorID, err := stringArg(input, "vendorId")
				if err != nil {
					return nil, err
				}
				assessmentID, err := api.TriggerVendorAssessment(ctx, vendorID)
				if err != nil {
					return nil, err
				}
				return map[string]string{"vendorAssessmentId": assessmentID}, nil
			},
		},
		{
			Tool: Tool{
				Name:        "get_node",
				Description: "Fetch any entity by its opaque node id.",
				InputSchema: objectSchema(map[string]interface{}{
					"id": strProp("Global node id."),
				}, "id"),
			},
			Handler: func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error) {
				id, err := stringArg(input, "id")
				if err != nil {
					return nil, err
				}
				node, err := api.GetNode(ctx, id)
				if err != nil {
					return nil, err
				}
				return node.Fields, nil
			},
		},
	}
}
